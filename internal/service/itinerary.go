package service

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"flight-booking-service/internal/models"
)

// ErrInvalidInput marks caller mistakes the HTTP layer should report as a
// bad request rather than a server failure.
var ErrInvalidInput = errors.New("invalid input")

// Leg is one priced flight segment inside an itinerary candidate.
type Leg struct {
	FlightID       int64     `json:"flight_id"`
	FlightNumber   string    `json:"flight_number"`
	DepartureIATA  string    `json:"departure_iata"`
	ArrivalIATA    string    `json:"arrival_iata"`
	DepartsAt      time.Time `json:"departs_at"`
	ArrivesAt      time.Time `json:"arrives_at"`
	FromPriceCents int64     `json:"from_price_cents,omitempty"`
	CheapestClass  string    `json:"cheapest_class,omitempty"`
	SoldOut        bool      `json:"sold_out"`
}

// Candidate is a search-time itinerary of 1–2 legs. It is never persisted;
// its ID is the ordered flight-id chain ("10" or "10-25") and doubles as
// the booking handle.
type Candidate struct {
	ID         string    `json:"id"`
	Legs       []Leg     `json:"legs"`
	Stops      int       `json:"stops"`
	TotalCents int64     `json:"total_cents,omitempty"`
	SoldOut    bool      `json:"sold_out"`
	DepartsAt  time.Time `json:"departs_at"`
	ArrivesAt  time.Time `json:"arrives_at"`
}

// newCandidate assembles a candidate from priced legs. A candidate is sold
// out as soon as any leg has no sellable class; its price is then
// meaningless and left at zero for display while ranking pushes it last.
func newCandidate(legs []Leg) Candidate {
	ids := make([]string, len(legs))
	var total int64
	soldOut := false
	for i, leg := range legs {
		ids[i] = strconv.FormatInt(leg.FlightID, 10)
		if leg.SoldOut {
			soldOut = true
		}
		total += leg.FromPriceCents
	}
	if soldOut {
		total = 0
	}
	return Candidate{
		ID:         strings.Join(ids, "-"),
		Legs:       legs,
		Stops:      len(legs) - 1,
		TotalCents: total,
		SoldOut:    soldOut,
		DepartsAt:  legs[0].DepartsAt,
		ArrivesAt:  legs[len(legs)-1].ArrivesAt,
	}
}

// connects reports whether leg2 is a valid continuation of leg1: same
// transfer airport and a connection gap within [minGap, maxGap] inclusive.
func connects(leg1, leg2 models.Flight, minGap, maxGap time.Duration) bool {
	if leg1.ArrivalAirportID != leg2.DepartureAirportID {
		return false
	}
	gap := leg2.DepartsAt.Sub(leg1.ArrivesAt)
	return gap >= minGap && gap <= maxGap
}

// buildConnectionPairs pairs every departure leg with every arrival leg
// that continues it. The double loop is fine at the data scale this runs
// at; the arrival legs are indexed by departure airport to skip the bulk
// of non-matches.
func buildConnectionPairs(starts, ends []models.Flight, minGap, maxGap time.Duration) [][2]models.Flight {
	byDeparture := make(map[int64][]models.Flight)
	for _, leg := range ends {
		byDeparture[leg.DepartureAirportID] = append(byDeparture[leg.DepartureAirportID], leg)
	}

	var pairs [][2]models.Flight
	for _, leg1 := range starts {
		for _, leg2 := range byDeparture[leg1.ArrivalAirportID] {
			if leg1.ID == leg2.ID {
				continue
			}
			if connects(leg1, leg2, minGap, maxGap) {
				pairs = append(pairs, [2]models.Flight{leg1, leg2})
			}
		}
	}
	return pairs
}

// rankCandidates orders candidates for display: sellable before sold-out,
// then earliest departure, then total price, then the flight-id chain so
// ties resolve the same way on every request.
func rankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.SoldOut != b.SoldOut {
			return !a.SoldOut
		}
		if !a.DepartsAt.Equal(b.DepartsAt) {
			return a.DepartsAt.Before(b.DepartsAt)
		}
		if a.TotalCents != b.TotalCents {
			return a.TotalCents < b.TotalCents
		}
		return chainLess(a, b)
	})
}

func chainLess(a, b Candidate) bool {
	for i := 0; i < len(a.Legs) && i < len(b.Legs); i++ {
		if a.Legs[i].FlightID != b.Legs[i].FlightID {
			return a.Legs[i].FlightID < b.Legs[i].FlightID
		}
	}
	return len(a.Legs) < len(b.Legs)
}

// paginate slices one page out of the fully ranked result set.
func paginate(candidates []Candidate, page, pageSize int) []Candidate {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(candidates) {
		return []Candidate{}
	}
	end := start + pageSize
	if end > len(candidates) {
		end = len(candidates)
	}
	return candidates[start:end]
}

// ParseItineraryID splits a flight-id chain ("10" or "10-25") back into
// its ordered flight IDs.
func ParseItineraryID(id string) ([]int64, error) {
	parts := strings.Split(id, "-")
	if len(parts) == 0 || len(parts) > 2 {
		return nil, fmt.Errorf("itinerary id %q: %w", id, ErrInvalidInput)
	}
	ids := make([]int64, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("itinerary id %q: %w", id, ErrInvalidInput)
		}
		ids[i] = n
	}
	return ids, nil
}

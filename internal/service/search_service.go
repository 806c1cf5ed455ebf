package service

import (
	"context"
	"time"

	"flight-booking-service/config"
	"flight-booking-service/internal/models"
	"flight-booking-service/internal/store"
	"flight-booking-service/internal/util"

	"go.uber.org/zap"
)

// SearchService builds priced itinerary candidates out of the flight graph.
type SearchService struct {
	store     *store.Store
	inventory *InventoryService
	booking   *BookingService
	cfg       config.BookingConfig
	logger    *zap.Logger
}

// NewSearchService creates a new search service
func NewSearchService(store *store.Store, inventory *InventoryService, booking *BookingService, cfg config.BookingConfig) *SearchService {
	return &SearchService{
		store:     store,
		inventory: inventory,
		booking:   booking,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// ListAirports returns all airports for search forms.
func (ss *SearchService) ListAirports(ctx context.Context) ([]models.Airport, error) {
	return ss.store.ListAirports(ctx)
}

// SearchQuery narrows the itinerary search. All filters are optional, but
// connections are only searched when both endpoints are known.
type SearchQuery struct {
	OriginID      *int64
	DestinationID *int64
	EarliestDate  *time.Time
	Page          int
}

// SearchResult is one page of ranked candidates.
type SearchResult struct {
	Candidates []Candidate `json:"candidates"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

// Search returns direct and one-stop candidates for the query, priced by
// the cheapest available class per leg, ranked, and paged. Sold-out direct
// flights stay in the result flagged unavailable; sold-out connections are
// dropped entirely, mirroring the product's display rule.
func (ss *SearchService) Search(ctx context.Context, query SearchQuery) (*SearchResult, error) {
	ctx, span := util.StartSpan(ctx, "SearchService.Search")
	defer span.End()

	util.SearchesTotal.Inc()
	start := time.Now()
	defer func() {
		util.SearchLatency.Observe(time.Since(start).Seconds())
	}()

	// Stale pending reservations hold seats; sweep before pricing so the
	// availability shown matches what a booking attempt will find.
	ss.booking.SweepExpired(ctx)

	directs, err := ss.store.FindDirectFlights(ctx, query.OriginID, query.DestinationID, query.EarliestDate)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(directs))
	for _, flight := range directs {
		leg, err := ss.priceLeg(ctx, flight)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, newCandidate([]Leg{leg}))
	}

	if query.OriginID != nil && query.DestinationID != nil {
		connections, err := ss.searchConnections(ctx, *query.OriginID, *query.DestinationID, query.EarliestDate)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, connections...)
	}

	rankCandidates(candidates)

	page := query.Page
	if page < 1 {
		page = 1
	}
	result := &SearchResult{
		Candidates: paginate(candidates, page, ss.cfg.PageSize),
		Total:      len(candidates),
		Page:       page,
		PageSize:   ss.cfg.PageSize,
	}

	ss.logger.Info("Itinerary search completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("page", page))
	return result, nil
}

func (ss *SearchService) searchConnections(ctx context.Context, originID, destinationID int64, earliest *time.Time) ([]Candidate, error) {
	starts, err := ss.store.FindDepartures(ctx, originID, earliest)
	if err != nil {
		return nil, err
	}
	ends, err := ss.store.FindArrivals(ctx, destinationID, earliest)
	if err != nil {
		return nil, err
	}

	pairs := buildConnectionPairs(starts, ends, ss.cfg.MinConnection, ss.cfg.MaxConnection)

	// Price each leg once even when it appears in several pairs.
	priced := make(map[int64]Leg)
	var candidates []Candidate
	for _, pair := range pairs {
		legs := make([]Leg, 2)
		for i, flight := range pair {
			leg, ok := priced[flight.ID]
			if !ok {
				var err error
				leg, err = ss.priceLeg(ctx, flight)
				if err != nil {
					return nil, err
				}
				priced[flight.ID] = leg
			}
			legs[i] = leg
		}

		candidate := newCandidate(legs)
		if candidate.SoldOut {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

func (ss *SearchService) priceLeg(ctx context.Context, flight models.Flight) (Leg, error) {
	leg := Leg{
		FlightID:      flight.ID,
		FlightNumber:  flight.FlightNumber,
		DepartureIATA: flight.DepartureIATA,
		ArrivalIATA:   flight.ArrivalIATA,
		DepartsAt:     flight.DepartsAt,
		ArrivesAt:     flight.ArrivesAt,
	}

	cheapest, err := ss.inventory.CheapestAvailableClass(ctx, flight.ID)
	if err != nil {
		return Leg{}, err
	}
	if cheapest == nil {
		leg.SoldOut = true
		return leg, nil
	}
	leg.FromPriceCents = cheapest.PriceCents
	leg.CheapestClass = cheapest.ClassName
	return leg, nil
}

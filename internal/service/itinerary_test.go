package service

import (
	"testing"
	"time"

	"flight-booking-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	minGap = 1 * time.Hour
	maxGap = 24 * time.Hour
)

func flightBetween(id, from, to int64, departs, arrives time.Time) models.Flight {
	return models.Flight{
		ID:                 id,
		DepartureAirportID: from,
		ArrivalAirportID:   to,
		DepartsAt:          departs,
		ArrivesAt:          arrives,
	}
}

func TestConnects(t *testing.T) {
	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	arrival := base.Add(2 * time.Hour)

	first := flightBetween(1, 10, 20, base, arrival)

	tests := []struct {
		name string
		gap  time.Duration
		want bool
	}{
		{"ninety minutes", 90 * time.Minute, true},
		{"exactly one hour", time.Hour, true},
		{"exactly twenty-four hours", 24 * time.Hour, true},
		{"one minute short", 59 * time.Minute, false},
		{"one minute over", 24*time.Hour + time.Minute, false},
		{"departs before arrival", -30 * time.Minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			second := flightBetween(2, 20, 30, arrival.Add(tt.gap), arrival.Add(tt.gap+2*time.Hour))
			assert.Equal(t, tt.want, connects(first, second, minGap, maxGap))
		})
	}

	t.Run("wrong transfer airport", func(t *testing.T) {
		second := flightBetween(2, 99, 30, arrival.Add(2*time.Hour), arrival.Add(4*time.Hour))
		assert.False(t, connects(first, second, minGap, maxGap))
	})
}

func TestBuildConnectionPairs(t *testing.T) {
	// Prague -> Paris -> Rome with a 1h30m layover should connect;
	// the tight and the day-late Paris departures should not.
	prague, paris, rome := int64(1), int64(2), int64(3)
	base := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)

	outbound := flightBetween(10, prague, paris, base, base.Add(90*time.Minute))
	good := flightBetween(25, paris, rome, base.Add(3*time.Hour), base.Add(5*time.Hour))
	tooTight := flightBetween(26, paris, rome, base.Add(2*time.Hour), base.Add(4*time.Hour))
	tooLate := flightBetween(27, paris, rome, base.Add(26*time.Hour), base.Add(28*time.Hour))
	wrongAirport := flightBetween(28, prague, rome, base.Add(3*time.Hour), base.Add(5*time.Hour))

	pairs := buildConnectionPairs(
		[]models.Flight{outbound},
		[]models.Flight{good, tooTight, tooLate, wrongAirport},
		minGap, maxGap,
	)

	require.Len(t, pairs, 1)
	assert.Equal(t, int64(10), pairs[0][0].ID)
	assert.Equal(t, int64(25), pairs[0][1].ID)
}

func TestBuildConnectionPairsSkipsSelfPairing(t *testing.T) {
	// A flight looping back to its own departure airport must not pair
	// with itself even if the times would fit.
	base := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	loop := flightBetween(10, 1, 1, base, base.Add(time.Hour))

	pairs := buildConnectionPairs([]models.Flight{loop}, []models.Flight{loop}, minGap, maxGap)
	assert.Empty(t, pairs)
}

func TestNewCandidate(t *testing.T) {
	departs := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	t.Run("direct", func(t *testing.T) {
		c := newCandidate([]Leg{
			{FlightID: 10, DepartsAt: departs, ArrivesAt: departs.Add(2 * time.Hour), FromPriceCents: 12000},
		})
		assert.Equal(t, "10", c.ID)
		assert.Equal(t, 0, c.Stops)
		assert.Equal(t, int64(12000), c.TotalCents)
		assert.False(t, c.SoldOut)
	})

	t.Run("connection sums leg prices", func(t *testing.T) {
		c := newCandidate([]Leg{
			{FlightID: 10, DepartsAt: departs, ArrivesAt: departs.Add(2 * time.Hour), FromPriceCents: 12000},
			{FlightID: 25, DepartsAt: departs.Add(4 * time.Hour), ArrivesAt: departs.Add(6 * time.Hour), FromPriceCents: 8000},
		})
		assert.Equal(t, "10-25", c.ID)
		assert.Equal(t, 1, c.Stops)
		assert.Equal(t, int64(20000), c.TotalCents)
		assert.Equal(t, departs, c.DepartsAt)
		assert.Equal(t, departs.Add(6*time.Hour), c.ArrivesAt)
	})

	t.Run("one sold-out leg zeroes the total", func(t *testing.T) {
		c := newCandidate([]Leg{
			{FlightID: 10, DepartsAt: departs, FromPriceCents: 12000},
			{FlightID: 25, DepartsAt: departs.Add(4 * time.Hour), SoldOut: true},
		})
		assert.True(t, c.SoldOut)
		assert.Zero(t, c.TotalCents)
	})
}

func TestRankCandidates(t *testing.T) {
	early := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	late := early.Add(3 * time.Hour)

	soldOutEarly := newCandidate([]Leg{{FlightID: 1, DepartsAt: early, SoldOut: true}})
	cheapLate := newCandidate([]Leg{{FlightID: 2, DepartsAt: late, FromPriceCents: 5000}})
	priceyEarly := newCandidate([]Leg{{FlightID: 3, DepartsAt: early, FromPriceCents: 20000}})
	cheapEarly := newCandidate([]Leg{{FlightID: 4, DepartsAt: early, FromPriceCents: 9000}})
	tiedChain := newCandidate([]Leg{{FlightID: 5, DepartsAt: early, FromPriceCents: 9000}})

	candidates := []Candidate{soldOutEarly, cheapLate, priceyEarly, tiedChain, cheapEarly}
	rankCandidates(candidates)

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.ID
	}

	// Sellable first even when the sold-out one departs earliest; within
	// the same departure, cheaper first; full tie falls to the id chain.
	assert.Equal(t, []string{"4", "5", "3", "2", "1"}, got)
}

func TestChainLessComparesNumerically(t *testing.T) {
	a := newCandidate([]Leg{{FlightID: 9}})
	b := newCandidate([]Leg{{FlightID: 10}})
	assert.True(t, chainLess(a, b))
	assert.False(t, chainLess(b, a))

	direct := newCandidate([]Leg{{FlightID: 9}})
	connection := newCandidate([]Leg{{FlightID: 9}, {FlightID: 12}})
	assert.True(t, chainLess(direct, connection))
}

func TestPaginate(t *testing.T) {
	candidates := make([]Candidate, 25)
	for i := range candidates {
		candidates[i].ID = string(rune('a' + i))
	}

	assert.Len(t, paginate(candidates, 1, 10), 10)
	assert.Len(t, paginate(candidates, 3, 10), 5)
	assert.Empty(t, paginate(candidates, 4, 10))
	// page zero and negatives clamp to the first page
	assert.Equal(t, paginate(candidates, 1, 10), paginate(candidates, 0, 10))
}

func TestParseItineraryID(t *testing.T) {
	ids, err := ParseItineraryID("10")
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ids)

	ids, err = ParseItineraryID("10-25")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 25}, ids)

	for _, bad := range []string{"", "abc", "10-25-40", "10-"} {
		_, err := ParseItineraryID(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, "expected %q to be rejected", bad)
	}
}

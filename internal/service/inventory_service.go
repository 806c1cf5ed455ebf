package service

import (
	"context"
	"time"

	"flight-booking-service/internal/models"
	"flight-booking-service/internal/redisclient"
	"flight-booking-service/internal/store"
	"flight-booking-service/internal/util"

	"go.uber.org/zap"
)

// availabilityCacheTTL bounds staleness of cached seat counts used by
// search pricing. Booking transactions never read the cache.
const availabilityCacheTTL = 30 * time.Second

// InventoryService is the inventory ledger: sellable capacity and price
// per (flight, class), with a Redis read-through cache in front of the
// derived occupancy counts.
type InventoryService struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store *store.Store, redis *redisclient.Client) *InventoryService {
	return &InventoryService{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// ClassAvailability returns all inventory rows of a flight with live
// availability, cheapest first.
func (is *InventoryService) ClassAvailability(ctx context.Context, flightID int64) ([]models.ClassAvailability, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ClassAvailability")
	defer span.End()

	rows, err := is.store.GetClassAvailability(ctx, flightID)
	if err != nil {
		return nil, err
	}
	is.warmCache(ctx, rows)
	return rows, nil
}

// CheapestAvailableClass returns the lowest-priced class with seats left,
// or nil when the whole flight is sold out. Cached counts answer the "any
// seats left" question; prices and class metadata come from the database
// on every cache miss.
func (is *InventoryService) CheapestAvailableClass(ctx context.Context, flightID int64) (*models.ClassAvailability, error) {
	rows, err := is.store.GetClassAvailability(ctx, flightID)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		row := &rows[i]
		if cached, ok, err := is.redis.GetAvailability(ctx, flightID, row.SeatClassID); err == nil && ok {
			if cached > 0 {
				return row, nil
			}
			continue
		}
		available := row.Available()
		if err := is.redis.SetAvailability(ctx, flightID, row.SeatClassID, available, availabilityCacheTTL); err != nil {
			is.logger.Warn("Failed to cache availability",
				zap.Int64("flight_id", flightID),
				zap.Error(err))
		}
		if available > 0 {
			return row, nil
		}
	}
	return nil, nil
}

// AvailableSeats returns offered minus sold for one (flight, class) pair.
func (is *InventoryService) AvailableSeats(ctx context.Context, flightID, seatClassID int64) (int, error) {
	return is.store.AvailableSeats(ctx, flightID, seatClassID)
}

// OccupiedSeats lists active seat numbers on a flight for seat pickers.
func (is *InventoryService) OccupiedSeats(ctx context.Context, flightID, excludeTicketID int64) ([]string, error) {
	return is.store.OccupiedSeats(ctx, flightID, excludeTicketID)
}

// SetSeatsOffered applies an administrative allotment change after the
// store validates the aircraft-capacity invariant under lock.
func (is *InventoryService) SetSeatsOffered(ctx context.Context, inventoryID int64, seatsOffered int) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.SetSeatsOffered")
	defer span.End()

	flightID, err := is.store.UpdateSeatsOffered(ctx, inventoryID, seatsOffered)
	if err != nil {
		return err
	}
	is.InvalidateFlights(ctx, []int64{flightID})
	return nil
}

// RecordSeatsSold lowers the cached availability for each sold ticket's
// (flight, class) pair. A failed adjustment falls back to invalidating the
// whole flight so the cache can never overstate availability.
func (is *InventoryService) RecordSeatsSold(ctx context.Context, tickets []models.Ticket) {
	for _, t := range tickets {
		if err := is.redis.DecrAvailability(ctx, t.FlightID, t.SeatClassID, 1); err != nil {
			is.logger.Warn("Failed to adjust cached availability",
				zap.Int64("flight_id", t.FlightID),
				zap.Error(err))
			is.InvalidateFlights(ctx, []int64{t.FlightID})
		}
	}
}

// RecordSeatsReleased raises the cached availability for each released
// ticket's (flight, class) pair, with the same invalidation fallback.
func (is *InventoryService) RecordSeatsReleased(ctx context.Context, tickets []models.Ticket) {
	for _, t := range tickets {
		if err := is.redis.IncrAvailability(ctx, t.FlightID, t.SeatClassID, 1); err != nil {
			is.logger.Warn("Failed to adjust cached availability",
				zap.Int64("flight_id", t.FlightID),
				zap.Error(err))
			is.InvalidateFlights(ctx, []int64{t.FlightID})
		}
	}
}

// InvalidateFlights drops cached availability for the given flights after
// tickets were created or released.
func (is *InventoryService) InvalidateFlights(ctx context.Context, flightIDs []int64) {
	for _, flightID := range flightIDs {
		if err := is.redis.InvalidateFlight(ctx, flightID); err != nil {
			is.logger.Warn("Failed to invalidate availability cache",
				zap.Int64("flight_id", flightID),
				zap.Error(err))
		}
	}
}

func (is *InventoryService) warmCache(ctx context.Context, rows []models.ClassAvailability) {
	for _, row := range rows {
		if err := is.redis.SetAvailability(ctx, row.FlightID, row.SeatClassID, row.Available(), availabilityCacheTTL); err != nil {
			is.logger.Warn("Failed to cache availability",
				zap.Int64("flight_id", row.FlightID),
				zap.Error(err))
			return
		}
	}
}

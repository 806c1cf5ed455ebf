package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flight-booking-service/config"
	"flight-booking-service/internal/broker"
	"flight-booking-service/internal/models"
	"flight-booking-service/internal/redisclient"
	"flight-booking-service/internal/store"
	"flight-booking-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService owns the reservation lifecycle: create, pay, edit,
// seat change, cancel, expiry sweep, plus detail and listing reads.
type BookingService struct {
	store          *store.Store
	redis          *redisclient.Client
	inventory      *InventoryService
	eventPublisher *broker.EventPublisher
	cfg            config.BookingConfig
	logger         *zap.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	store *store.Store,
	redis *redisclient.Client,
	inventory *InventoryService,
	eventPublisher *broker.EventPublisher,
	cfg config.BookingConfig,
) *BookingService {
	return &BookingService{
		store:          store,
		redis:          redis,
		inventory:      inventory,
		eventPublisher: eventPublisher,
		cfg:            cfg,
		logger:         util.GetLogger(),
	}
}

// CreateReservationRequest represents a request to book an itinerary
type CreateReservationRequest struct {
	ItineraryID    string               `json:"itinerary_id" binding:"required"`
	Legs           []store.LegSelection `json:"legs" binding:"required,min=1,max=2"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// ReservationDetail is a reservation with its tickets and, when PAID, the
// advisory refund a cancellation would earn right now.
type ReservationDetail struct {
	Reservation models.Reservation `json:"reservation"`
	Tickets     []models.Ticket    `json:"tickets"`
	Refund      *RefundAdvisory    `json:"refund,omitempty"`
}

// RefundAdvisory is informational output only; it never gates a
// transition.
type RefundAdvisory struct {
	Percent     int   `json:"percent"`
	AmountCents int64 `json:"amount_cents"`
}

// ComputeRefundAdvisory returns the advisable refund for cancelling a PAID
// reservation: the full total with more than the cutoff left before the
// earliest departure, half otherwise. Returns nil for unpaid reservations
// and for reservations with no legs.
func ComputeRefundAdvisory(status string, totalCents int64, earliestDeparture time.Time, now time.Time, cutoff time.Duration) *RefundAdvisory {
	if status != models.ReservationStatusPaid || earliestDeparture.IsZero() {
		return nil
	}
	if earliestDeparture.Sub(now) > cutoff {
		return &RefundAdvisory{Percent: 100, AmountCents: totalCents}
	}
	return &RefundAdvisory{Percent: 50, AmountCents: totalCents / 2}
}

// CreateReservation books every leg of an itinerary in one atomic step.
// The store transaction locks each leg's inventory, re-checks availability
// and seat uniqueness, and rolls everything back on the first failure, so
// no partial reservation ever persists.
func (bs *BookingService) CreateReservation(ctx context.Context, userID int64, req *CreateReservationRequest) (*ReservationDetail, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.CreateReservation")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReservationCreateLatency.Observe(time.Since(start).Seconds())
	}()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	// A hold that expired seconds ago still counts against availability
	// until swept; sweep first so it cannot bounce a live customer.
	bs.SweepExpired(ctx)

	// Redis flags the common retry quickly; the unique index on
	// idempotency_key in postgres is the real guarantee either way.
	if seen, err := bs.redis.CheckIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		bs.logger.Warn("Idempotency cache check failed", zap.Error(err))
	} else if seen {
		bs.logger.Info("Duplicate reservation request detected",
			zap.String("idempotency_key", req.IdempotencyKey))
	}
	existing, err := bs.store.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		return bs.detail(ctx, existing)
	}

	flightIDs, err := ParseItineraryID(req.ItineraryID)
	if err != nil {
		return nil, err
	}
	if err := bs.validateLegs(ctx, flightIDs, req.Legs); err != nil {
		return nil, err
	}

	reservation, tickets, err := bs.store.CreateReservation(ctx, userID, req.IdempotencyKey, req.Legs)
	if err != nil {
		// Lost the insert race against a concurrent request carrying the
		// same key; the winner's reservation is the response for both.
		if errors.Is(err, store.ErrDuplicateRequest) {
			winner, lookupErr := bs.store.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && winner != nil {
				bs.logger.Info("Duplicate reservation request detected",
					zap.String("idempotency_key", req.IdempotencyKey),
					zap.Int64("reservation_id", winner.ID))
				return bs.detail(ctx, winner)
			}
			util.ReservationsFailedTotal.WithLabelValues("db_error").Inc()
			return nil, err
		}
		switch {
		case errors.Is(err, store.ErrSoldOut):
			util.SoldOutRejectionsTotal.Inc()
			util.ReservationsFailedTotal.WithLabelValues("sold_out").Inc()
		case errors.Is(err, store.ErrSeatTaken):
			util.SeatConflictsTotal.Inc()
			util.ReservationsFailedTotal.WithLabelValues("seat_taken").Inc()
		case errors.Is(err, store.ErrNotFound):
			util.ReservationsFailedTotal.WithLabelValues("not_found").Inc()
		default:
			util.ReservationsFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	if err := bs.redis.SetIdempotencyKey(ctx, req.IdempotencyKey, reservation.ID, bs.cfg.PendingTTL); err != nil {
		bs.logger.Warn("Failed to cache idempotency key", zap.Error(err))
	}

	util.ReservationsCreatedTotal.Inc()
	bs.logger.Info("Reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("user_id", userID),
		zap.Int("legs", len(tickets)))

	bs.inventory.RecordSeatsSold(ctx, tickets)

	event := &models.ReservationCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeReservationCreated),
		ReservationID: reservation.ID,
		UserID:        userID,
		TotalCents:    reservation.TotalCents,
		Tickets:       ticketData(tickets),
	}
	if err := bs.eventPublisher.PublishReservationCreated(ctx, event); err != nil {
		bs.logger.Error("Failed to publish ReservationCreated event", zap.Error(err))
	}

	return bs.detail(ctx, reservation)
}

// validateLegs checks the selections cover exactly the itinerary's flights.
func (bs *BookingService) validateLegs(ctx context.Context, flightIDs []int64, legs []store.LegSelection) error {
	if len(legs) != len(flightIDs) {
		return fmt.Errorf("itinerary has %d legs, got %d selections: %w", len(flightIDs), len(legs), ErrInvalidInput)
	}
	// Each itinerary flight must be covered exactly once; a second
	// selection for the same flight means another leg went unselected.
	remaining := make(map[int64]int, len(flightIDs))
	for _, id := range flightIDs {
		remaining[id]++
	}
	for _, leg := range legs {
		if remaining[leg.FlightID] == 0 {
			return fmt.Errorf("flight %d is not part of the itinerary or selected twice: %w", leg.FlightID, ErrInvalidInput)
		}
		remaining[leg.FlightID]--
		if leg.SeatNumber == "" {
			return fmt.Errorf("flight %d: seat number is required: %w", leg.FlightID, ErrInvalidInput)
		}
	}

	flights, err := bs.store.GetFlightsByIDs(ctx, flightIDs)
	if err != nil {
		return err
	}
	if len(flights) != len(flightIDs) {
		return fmt.Errorf("itinerary references unknown flights: %w", store.ErrNotFound)
	}
	return nil
}

// Pay transitions a reservation to PAID. Paying an already-PAID
// reservation returns it unchanged; no ticket or charge is duplicated.
func (bs *BookingService) Pay(ctx context.Context, reservationID, userID int64) (*models.Reservation, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.Pay")
	defer span.End()

	current, err := bs.store.GetReservationForUser(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.ReservationStatusPaid {
		return current, nil
	}

	reservation, err := bs.store.MarkPaid(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}

	util.ReservationsPaidTotal.Inc()
	bs.logger.Info("Reservation paid",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("total_cents", reservation.TotalCents))

	event := &models.ReservationPaidEvent{
		BaseEvent:     newBaseEvent(models.EventTypeReservationPaid),
		ReservationID: reservation.ID,
		UserID:        userID,
		TotalCents:    reservation.TotalCents,
	}
	if err := bs.eventPublisher.PublishReservationPaid(ctx, event); err != nil {
		bs.logger.Error("Failed to publish ReservationPaid event", zap.Error(err))
	}

	return reservation, nil
}

// EditTicket changes a ticket's class and seat while the reservation is
// PENDING, recomputing the reservation total from its tickets.
func (bs *BookingService) EditTicket(ctx context.Context, ticketID, userID, newInventoryID int64, newSeat string) (*ReservationDetail, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.EditTicket")
	defer span.End()

	reservation, err := bs.store.UpdateTicket(ctx, ticketID, userID, newInventoryID, newSeat)
	if err != nil {
		if errors.Is(err, store.ErrSeatTaken) {
			util.SeatConflictsTotal.Inc()
		}
		return nil, err
	}

	util.TicketEditsTotal.WithLabelValues("class_and_seat").Inc()
	bs.publishTicketChanged(ctx, ticketID, reservation.ID)

	detail, err := bs.detail(ctx, reservation)
	if err != nil {
		return nil, err
	}
	// A class move shifts two per-class counts on the same flight; drop
	// them both rather than adjusting.
	for _, t := range detail.Tickets {
		if t.ID == ticketID {
			bs.inventory.InvalidateFlights(ctx, []int64{t.FlightID})
			break
		}
	}
	return detail, nil
}

// ChangeSeat reassigns a ticket's seat at any payment status; only seat
// uniqueness is re-validated.
func (bs *BookingService) ChangeSeat(ctx context.Context, ticketID, userID int64, newSeat string) (*models.Ticket, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ChangeSeat")
	defer span.End()

	ticket, err := bs.store.ChangeSeat(ctx, ticketID, userID, newSeat)
	if err != nil {
		if errors.Is(err, store.ErrSeatTaken) {
			util.SeatConflictsTotal.Inc()
		}
		return nil, err
	}

	util.TicketEditsTotal.WithLabelValues("seat").Inc()
	bs.publishTicketChanged(ctx, ticket.ID, ticket.ReservationID)
	return ticket, nil
}

// Cancel deletes a reservation and its tickets, releasing their seats.
// Whether PAID reservations may be cancelled is a policy switch; the
// refund advisory on the detail view tells the customer what a paid
// cancellation is worth.
func (bs *BookingService) Cancel(ctx context.Context, reservationID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "BookingService.Cancel")
	defer span.End()

	// Snapshot the tickets first; after the delete they are gone and the
	// cache adjustment needs their (flight, class) pairs.
	tickets, err := bs.store.GetTicketsByReservationID(ctx, reservationID)
	if err != nil {
		return err
	}

	status, _, err := bs.store.DeleteReservation(ctx, reservationID, userID, bs.cfg.CancelPaidReservations)
	if err != nil {
		return err
	}

	util.ReservationsCancelledTotal.Inc()
	bs.logger.Info("Reservation cancelled",
		zap.Int64("reservation_id", reservationID),
		zap.String("prior_status", status))

	bs.inventory.RecordSeatsReleased(ctx, tickets)

	event := &models.ReservationCancelledEvent{
		BaseEvent:     newBaseEvent(models.EventTypeReservationCancelled),
		ReservationID: reservationID,
		UserID:        userID,
		Status:        status,
		Reason:        "customer_cancelled",
	}
	if err := bs.eventPublisher.PublishReservationCancelled(ctx, event); err != nil {
		bs.logger.Error("Failed to publish ReservationCancelled event", zap.Error(err))
	}
	return nil
}

// GetReservation returns the detail view including the refund advisory.
func (bs *BookingService) GetReservation(ctx context.Context, reservationID, userID int64) (*ReservationDetail, error) {
	reservation, err := bs.store.GetReservationForUser(ctx, reservationID, userID)
	if err != nil {
		return nil, err
	}
	return bs.detail(ctx, reservation)
}

// ListReservationsRequest narrows and pages a reservation listing.
type ListReservationsRequest struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	IncludePast bool
	Page        int
}

// ListReservationsResult is one page of reservation summaries.
type ListReservationsResult struct {
	Reservations []models.ReservationSummary `json:"reservations"`
	Total        int                         `json:"total"`
	Page         int                         `json:"page"`
	PageSize     int                         `json:"page_size"`
}

// ListMyReservations sweeps expired reservations and returns one page of
// the user's remaining ones, earliest departure first.
func (bs *BookingService) ListMyReservations(ctx context.Context, userID int64, req ListReservationsRequest) (*ListReservationsResult, error) {
	ctx, span := util.StartSpan(ctx, "BookingService.ListMyReservations")
	defer span.End()

	bs.SweepExpired(ctx)

	page := req.Page
	if page < 1 {
		page = 1
	}
	filter := store.ListFilter{
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		IncludePast: req.IncludePast,
		Now:         time.Now(),
	}
	summaries, total, err := bs.store.ListReservationsForUser(ctx, userID, filter, bs.cfg.PageSize, (page-1)*bs.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	return &ListReservationsResult{
		Reservations: summaries,
		Total:        total,
		Page:         page,
		PageSize:     bs.cfg.PageSize,
	}, nil
}

// SweepExpired removes PENDING reservations older than the configured TTL.
// It is best-effort maintenance: failures are logged, never surfaced to
// the caller.
func (bs *BookingService) SweepExpired(ctx context.Context) {
	start := time.Now()
	defer func() {
		util.ExpirySweepLatency.Observe(time.Since(start).Seconds())
	}()

	cutoff := time.Now().Add(-bs.cfg.PendingTTL)
	removed, flightIDs, err := bs.store.DeleteExpiredPending(ctx, cutoff)
	if err != nil {
		bs.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if removed == 0 {
		return
	}

	util.ReservationsExpiredTotal.Add(float64(removed))
	bs.logger.Info("Expired pending reservations removed",
		zap.Int("removed", removed),
		zap.Int64s("flight_ids", flightIDs))

	bs.inventory.InvalidateFlights(ctx, flightIDs)

	event := &models.ReservationsExpiredEvent{
		BaseEvent: newBaseEvent(models.EventTypeReservationsExpired),
		Removed:   removed,
		FlightIDs: flightIDs,
	}
	if err := bs.eventPublisher.PublishReservationsExpired(ctx, event); err != nil {
		bs.logger.Error("Failed to publish ReservationsExpired event", zap.Error(err))
	}
}

func (bs *BookingService) detail(ctx context.Context, reservation *models.Reservation) (*ReservationDetail, error) {
	tickets, err := bs.store.GetTicketsByReservationID(ctx, reservation.ID)
	if err != nil {
		return nil, err
	}

	var earliest time.Time
	if len(tickets) > 0 {
		earliest = tickets[0].DepartsAt
	}
	return &ReservationDetail{
		Reservation: *reservation,
		Tickets:     tickets,
		Refund:      ComputeRefundAdvisory(reservation.Status, reservation.TotalCents, earliest, time.Now(), bs.cfg.RefundCutoff),
	}, nil
}

func (bs *BookingService) publishTicketChanged(ctx context.Context, ticketID, reservationID int64) {
	tickets, err := bs.store.GetTicketsByReservationID(ctx, reservationID)
	if err != nil {
		bs.logger.Error("Failed to load tickets for event", zap.Error(err))
		return
	}
	for _, ticket := range tickets {
		if ticket.ID != ticketID {
			continue
		}
		event := &models.TicketChangedEvent{
			BaseEvent:     newBaseEvent(models.EventTypeTicketChanged),
			TicketID:      ticket.ID,
			ReservationID: reservationID,
			FlightID:      ticket.FlightID,
			SeatClassID:   ticket.SeatClassID,
			SeatNumber:    ticket.SeatNumber,
		}
		if err := bs.eventPublisher.PublishTicketChanged(ctx, event); err != nil {
			bs.logger.Error("Failed to publish TicketChanged event", zap.Error(err))
		}
		return
	}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func ticketData(tickets []models.Ticket) []models.TicketData {
	data := make([]models.TicketData, len(tickets))
	for i, t := range tickets {
		data[i] = models.TicketData{
			TicketID:    t.ID,
			FlightID:    t.FlightID,
			SeatClassID: t.SeatClassID,
			SeatNumber:  t.SeatNumber,
			PriceCents:  t.PriceCents,
		}
	}
	return data
}

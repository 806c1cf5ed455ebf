package worker

import (
	"context"
	"log"
	"time"

	"flight-booking-service/config"
	"flight-booking-service/internal/broker"
	"flight-booking-service/internal/models"
	"flight-booking-service/internal/service"
	"flight-booking-service/internal/store"

	"github.com/segmentio/kafka-go"
)

// ExpiryWorker periodically removes pending reservations that outlived
// their payment window, so held seats return to sale even when no search
// or listing triggers a sweep.
type ExpiryWorker struct {
	booking  *service.BookingService
	interval time.Duration
	stop     chan struct{}
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(booking *service.BookingService, cfg config.BookingConfig) *ExpiryWorker {
	return &ExpiryWorker{
		booking:  booking,
		interval: cfg.SweepInterval,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called
func (w *ExpiryWorker) Start(ctx context.Context) error {
	log.Println("Starting expiry worker...")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.booking.SweepExpired(ctx)
		}
	}
}

// Stop stops the worker
func (w *ExpiryWorker) Stop() error {
	log.Println("Stopping expiry worker...")
	close(w.stop)
	return nil
}

// AuditWorker consumes booking events and records them in the audit
// trail, deduplicating by event ID so redelivered messages are recorded
// once.
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer, st *store.Store) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		store:    st,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnReservationCreated(func(ctx context.Context, event *models.ReservationCreatedEvent) error {
		return w.record(ctx, event.EventID, event.EventType, func() {
			log.Printf("Audit: reservation %d created, %d tickets, total %d cents",
				event.ReservationID, len(event.Tickets), event.TotalCents)
		})
	})
	eventHandler.OnReservationPaid(func(ctx context.Context, event *models.ReservationPaidEvent) error {
		return w.record(ctx, event.EventID, event.EventType, func() {
			log.Printf("Audit: reservation %d paid, total %d cents", event.ReservationID, event.TotalCents)
		})
	})
	eventHandler.OnReservationCancelled(func(ctx context.Context, event *models.ReservationCancelledEvent) error {
		return w.record(ctx, event.EventID, event.EventType, func() {
			log.Printf("Audit: reservation %d cancelled (was %s)", event.ReservationID, event.Status)
		})
	})
	eventHandler.OnReservationsExpired(func(ctx context.Context, event *models.ReservationsExpiredEvent) error {
		return w.record(ctx, event.EventID, event.EventType, func() {
			log.Printf("Audit: %d pending reservations expired, flights %v", event.Removed, event.FlightIDs)
		})
	})
	eventHandler.OnTicketChanged(func(ctx context.Context, event *models.TicketChangedEvent) error {
		return w.record(ctx, event.EventID, event.EventType, func() {
			log.Printf("Audit: ticket %d on reservation %d moved to seat %s",
				event.TicketID, event.ReservationID, event.SeatNumber)
		})
	})
	w.eventHandler = eventHandler

	return w
}

func (w *AuditWorker) record(ctx context.Context, eventID, eventType string, apply func()) error {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return err
	}
	if processed {
		log.Printf("Skipping already processed event: %s", eventID)
		return nil
	}

	apply()

	return w.store.MarkEventProcessed(ctx, eventID, eventType)
}

// Start starts the audit worker
func (w *AuditWorker) Start(ctx context.Context) error {
	log.Println("Starting audit worker...")
	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		return w.eventHandler.HandleMessage(ctx, msg)
	})
}

// Stop stops the audit worker
func (w *AuditWorker) Stop() error {
	log.Println("Stopping audit worker...")
	return w.consumer.Close()
}

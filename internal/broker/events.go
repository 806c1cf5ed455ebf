package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"flight-booking-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing reservation domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishReservationCreated publishes ReservationCreated event
func (ep *EventPublisher) PublishReservationCreated(ctx context.Context, event *models.ReservationCreatedEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationPaid publishes ReservationPaid event
func (ep *EventPublisher) PublishReservationPaid(ctx context.Context, event *models.ReservationPaidEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationCancelled publishes ReservationCancelled event
func (ep *EventPublisher) PublishReservationCancelled(ctx context.Context, event *models.ReservationCancelledEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishReservationsExpired publishes ReservationsExpired event
func (ep *EventPublisher) PublishReservationsExpired(ctx context.Context, event *models.ReservationsExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, "expiry-sweep", event)
}

// PublishTicketChanged publishes TicketChanged event
func (ep *EventPublisher) PublishTicketChanged(ctx context.Context, event *models.TicketChangedEvent) error {
	key := fmt.Sprintf("reservation-%d", event.ReservationID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler routes incoming reservation events to registered callbacks
type EventHandler struct {
	onReservationCreated   func(context.Context, *models.ReservationCreatedEvent) error
	onReservationPaid      func(context.Context, *models.ReservationPaidEvent) error
	onReservationCancelled func(context.Context, *models.ReservationCancelledEvent) error
	onReservationsExpired  func(context.Context, *models.ReservationsExpiredEvent) error
	onTicketChanged        func(context.Context, *models.TicketChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnReservationCreated registers a handler for ReservationCreated events
func (eh *EventHandler) OnReservationCreated(handler func(context.Context, *models.ReservationCreatedEvent) error) {
	eh.onReservationCreated = handler
}

// OnReservationPaid registers a handler for ReservationPaid events
func (eh *EventHandler) OnReservationPaid(handler func(context.Context, *models.ReservationPaidEvent) error) {
	eh.onReservationPaid = handler
}

// OnReservationCancelled registers a handler for ReservationCancelled events
func (eh *EventHandler) OnReservationCancelled(handler func(context.Context, *models.ReservationCancelledEvent) error) {
	eh.onReservationCancelled = handler
}

// OnReservationsExpired registers a handler for ReservationsExpired events
func (eh *EventHandler) OnReservationsExpired(handler func(context.Context, *models.ReservationsExpiredEvent) error) {
	eh.onReservationsExpired = handler
}

// OnTicketChanged registers a handler for TicketChanged events
func (eh *EventHandler) OnTicketChanged(handler func(context.Context, *models.TicketChangedEvent) error) {
	eh.onTicketChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeReservationCreated:
		if eh.onReservationCreated != nil {
			var event models.ReservationCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReservationCreated event: %w", err)
			}
			return eh.onReservationCreated(ctx, &event)
		}

	case models.EventTypeReservationPaid:
		if eh.onReservationPaid != nil {
			var event models.ReservationPaidEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReservationPaid event: %w", err)
			}
			return eh.onReservationPaid(ctx, &event)
		}

	case models.EventTypeReservationCancelled:
		if eh.onReservationCancelled != nil {
			var event models.ReservationCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReservationCancelled event: %w", err)
			}
			return eh.onReservationCancelled(ctx, &event)
		}

	case models.EventTypeReservationsExpired:
		if eh.onReservationsExpired != nil {
			var event models.ReservationsExpiredEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ReservationsExpired event: %w", err)
			}
			return eh.onReservationsExpired(ctx, &event)
		}

	case models.EventTypeTicketChanged:
		if eh.onTicketChanged != nil {
			var event models.TicketChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal TicketChanged event: %w", err)
			}
			return eh.onTicketChanged(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

package models

import "time"

// Event types
const (
	EventTypeReservationCreated   = "RESERVATION_CREATED"
	EventTypeReservationPaid      = "RESERVATION_PAID"
	EventTypeReservationCancelled = "RESERVATION_CANCELLED"
	EventTypeReservationsExpired  = "RESERVATIONS_EXPIRED"
	EventTypeTicketChanged        = "TICKET_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketData represents ticket data carried in events
type TicketData struct {
	TicketID    int64  `json:"ticket_id"`
	FlightID    int64  `json:"flight_id"`
	SeatClassID int64  `json:"seat_class_id"`
	SeatNumber  string `json:"seat_number"`
	PriceCents  int64  `json:"price_cents"`
}

// ReservationCreatedEvent published when a reservation and its tickets commit
type ReservationCreatedEvent struct {
	BaseEvent
	ReservationID int64        `json:"reservation_id"`
	UserID        int64        `json:"user_id"`
	TotalCents    int64        `json:"total_cents"`
	Tickets       []TicketData `json:"tickets"`
}

// ReservationPaidEvent published when payment status flips to PAID
type ReservationPaidEvent struct {
	BaseEvent
	ReservationID int64 `json:"reservation_id"`
	UserID        int64 `json:"user_id"`
	TotalCents    int64 `json:"total_cents"`
}

// ReservationCancelledEvent published when a reservation is deleted by its owner
type ReservationCancelledEvent struct {
	BaseEvent
	ReservationID int64  `json:"reservation_id"`
	UserID        int64  `json:"user_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

// ReservationsExpiredEvent published after an expiry sweep removed stale
// pending reservations and released their seats
type ReservationsExpiredEvent struct {
	BaseEvent
	Removed   int     `json:"removed"`
	FlightIDs []int64 `json:"flight_ids"`
}

// TicketChangedEvent published when a ticket's class or seat changes
type TicketChangedEvent struct {
	BaseEvent
	TicketID      int64  `json:"ticket_id"`
	ReservationID int64  `json:"reservation_id"`
	FlightID      int64  `json:"flight_id"`
	SeatClassID   int64  `json:"seat_class_id"`
	SeatNumber    string `json:"seat_number"`
}

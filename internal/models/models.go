package models

import "time"

// Airport is reference data maintained by admin tooling.
type Airport struct {
	ID       int64  `db:"id" json:"id"`
	IATACode string `db:"iata_code" json:"iata_code"`
	Name     string `db:"name" json:"name"`
	City     string `db:"city" json:"city"`
	Country  string `db:"country" json:"country"`
}

// Airline operates flights and may define its own seat classes.
type Airline struct {
	ID       int64  `db:"id" json:"id"`
	IATACode string `db:"iata_code" json:"iata_code"`
	Name     string `db:"name" json:"name"`
}

// Aircraft fixes the total seat capacity available to a flight.
type Aircraft struct {
	ID           int64  `db:"id" json:"id"`
	Model        string `db:"model" json:"model"`
	SeatCapacity int    `db:"seat_capacity" json:"seat_capacity"`
	AirlineID    int64  `db:"airline_id" json:"airline_id"`
}

// SeatClass is either airline-specific or global (nil airline).
type SeatClass struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	AirlineID   *int64 `db:"airline_id" json:"airline_id,omitempty"`
}

// Flight is one schedulable leg. Immutable from the booking engine's
// perspective; edits happen in admin tooling.
type Flight struct {
	ID                 int64     `db:"id" json:"id"`
	FlightNumber       string    `db:"flight_number" json:"flight_number"`
	DepartureAirportID int64     `db:"departure_airport_id" json:"departure_airport_id"`
	ArrivalAirportID   int64     `db:"arrival_airport_id" json:"arrival_airport_id"`
	DepartsAt          time.Time `db:"departs_at" json:"departs_at"`
	ArrivesAt          time.Time `db:"arrives_at" json:"arrives_at"`
	AircraftID         int64     `db:"aircraft_id" json:"aircraft_id"`
	AirlineID          int64     `db:"airline_id" json:"airline_id"`

	// Denormalized display fields populated by joined queries.
	DepartureIATA string `db:"departure_iata" json:"departure_iata,omitempty"`
	ArrivalIATA   string `db:"arrival_iata" json:"arrival_iata,omitempty"`
	SeatCapacity  int    `db:"seat_capacity" json:"seat_capacity,omitempty"`
}

// FlightInventory is the seats-for-sale allotment of one class on one flight.
// Occupancy is never stored; it is derived by counting ticket rows.
type FlightInventory struct {
	ID           int64  `db:"id" json:"id"`
	FlightID     int64  `db:"flight_id" json:"flight_id"`
	SeatClassID  int64  `db:"seat_class_id" json:"seat_class_id"`
	SeatsOffered int    `db:"seats_offered" json:"seats_offered"`
	PriceCents   int64  `db:"price_cents" json:"price_cents"`
	ClassName    string `db:"class_name" json:"class_name,omitempty"`
}

// ClassAvailability is an inventory row annotated with its live sold count.
type ClassAvailability struct {
	InventoryID  int64  `db:"inventory_id" json:"inventory_id"`
	FlightID     int64  `db:"flight_id" json:"flight_id"`
	SeatClassID  int64  `db:"seat_class_id" json:"seat_class_id"`
	ClassName    string `db:"class_name" json:"class_name"`
	SeatsOffered int    `db:"seats_offered" json:"seats_offered"`
	PriceCents   int64  `db:"price_cents" json:"price_cents"`
	Sold         int    `db:"sold" json:"sold"`
}

// Available returns the sellable remainder, never negative.
func (a ClassAvailability) Available() int {
	if a.Sold >= a.SeatsOffered {
		return 0
	}
	return a.SeatsOffered - a.Sold
}

// Reservation is the purchase unit grouping one ticket per itinerary leg.
type Reservation struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Status         string    `db:"status" json:"status"`
	TotalCents     int64     `db:"total_cents" json:"total_cents"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Ticket is one purchased seat on one flight at a locked-in price.
type Ticket struct {
	ID            int64  `db:"id" json:"id"`
	ReservationID int64  `db:"reservation_id" json:"reservation_id"`
	FlightID      int64  `db:"flight_id" json:"flight_id"`
	SeatClassID   int64  `db:"seat_class_id" json:"seat_class_id"`
	SeatNumber    string `db:"seat_number" json:"seat_number"`
	PriceCents    int64  `db:"price_cents" json:"price_cents"`

	FlightNumber  string    `db:"flight_number" json:"flight_number,omitempty"`
	DepartureIATA string    `db:"departure_iata" json:"departure_iata,omitempty"`
	ArrivalIATA   string    `db:"arrival_iata" json:"arrival_iata,omitempty"`
	DepartsAt     time.Time `db:"departs_at" json:"departs_at"`
	ArrivesAt     time.Time `db:"arrives_at" json:"arrives_at"`
	ClassName     string    `db:"class_name" json:"class_name,omitempty"`
}

// Reservation statuses. Cancellation and expiry delete the row, so there is
// no terminal status constant for them.
const (
	ReservationStatusPending = "PENDING"
	ReservationStatusPaid    = "PAID"
)

// ReservationSummary is a listing row: the reservation plus the departure
// time of its earliest leg, which drives the listing sort order.
type ReservationSummary struct {
	Reservation
	EarliestDeparture *time.Time `db:"earliest_departure" json:"earliest_departure,omitempty"`
	TicketCount       int        `db:"ticket_count" json:"ticket_count"`
}

// ProcessedEvent for consumer idempotency.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

package store

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned at the store boundary. Services and handlers
// match on these with errors.Is; everything else is an infrastructure
// failure wrapped with context.
var (
	// ErrNotFound is returned when a flight, inventory, reservation or
	// ticket does not exist or does not belong to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrSoldOut is returned when the requested (flight, class) has no
	// seats left at reservation time.
	ErrSoldOut = errors.New("seat class sold out")

	// ErrSeatTaken is returned when the requested seat number is already
	// held by another active ticket on the same flight.
	ErrSeatTaken = errors.New("seat already taken")

	// ErrInvalidState is returned when an operation is attempted against a
	// reservation whose payment status forbids it.
	ErrInvalidState = errors.New("reservation state forbids operation")

	// ErrCapacityExceeded is returned when an inventory change would push
	// the per-flight sum of offered seats past the aircraft capacity.
	ErrCapacityExceeded = errors.New("aircraft capacity exceeded")

	// ErrDuplicateRequest is returned when an insert loses a race on the
	// reservations idempotency key; the caller re-reads by key to get the
	// winner's row.
	ErrDuplicateRequest = errors.New("duplicate idempotency key")
)

// Unique indexes backing the application-level checks. Two transactions can
// both pass a check before either commits; the index then rejects the loser
// and constraintSentinel turns that rejection back into the sentinel the
// check would have returned.
const (
	ticketSeatConstraint     = "tickets_flight_id_seat_number_key"
	idempotencyKeyConstraint = "reservations_idempotency_key_key"
)

func constraintSentinel(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case ticketSeatConstraint:
		return ErrSeatTaken
	case idempotencyKeyConstraint:
		return ErrDuplicateRequest
	}
	return nil
}

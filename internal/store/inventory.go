package store

import (
	"context"
	"database/sql"
	"fmt"

	"flight-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// Inventory queries. The sold count is always derived from ticket rows so
// that occupancy can never drift from the tickets that actually exist.

const availabilityQuery = `
	SELECT fi.id AS inventory_id, fi.flight_id, fi.seat_class_id,
	       sc.name AS class_name, fi.seats_offered, fi.price_cents,
	       (SELECT COUNT(*) FROM tickets t
	         WHERE t.flight_id = fi.flight_id AND t.seat_class_id = fi.seat_class_id) AS sold
	FROM flight_inventories fi
	JOIN seat_classes sc ON sc.id = fi.seat_class_id`

// GetClassAvailability returns every inventory row of a flight with its
// live sold count, cheapest first.
func (s *Store) GetClassAvailability(ctx context.Context, flightID int64) ([]models.ClassAvailability, error) {
	var rows []models.ClassAvailability
	err := s.db.SelectContext(ctx, &rows,
		availabilityQuery+" WHERE fi.flight_id = $1 ORDER BY fi.price_cents, fi.id", flightID)
	return rows, err
}

// AvailableSeats returns offered minus sold for one (flight, class) pair,
// never negative. ErrNotFound when the pair has no inventory row.
func (s *Store) AvailableSeats(ctx context.Context, flightID, seatClassID int64) (int, error) {
	var row models.ClassAvailability
	err := s.db.GetContext(ctx, &row,
		availabilityQuery+" WHERE fi.flight_id = $1 AND fi.seat_class_id = $2", flightID, seatClassID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return row.Available(), nil
}

// CheapestAvailableClass returns the lowest-priced class with seats left on
// a flight, or nil when every class is sold out.
func (s *Store) CheapestAvailableClass(ctx context.Context, flightID int64) (*models.ClassAvailability, error) {
	rows, err := s.GetClassAvailability(ctx, flightID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Available() > 0 {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// OccupiedSeats returns the seat numbers of all active tickets on a flight.
// excludeTicketID skips one ticket so that seat pickers can offer the
// caller's current seat back; pass 0 to exclude nothing.
func (s *Store) OccupiedSeats(ctx context.Context, flightID, excludeTicketID int64) ([]string, error) {
	var seats []string
	err := s.db.SelectContext(ctx, &seats,
		"SELECT seat_number FROM tickets WHERE flight_id = $1 AND id <> $2 ORDER BY seat_number",
		flightID, excludeTicketID)
	return seats, err
}

// UpdateSeatsOffered changes the allotment of one inventory row after
// validating the per-flight capacity invariant. All inventory rows of the
// flight are locked so that two concurrent admin edits cannot both pass the
// check. Returns the flight ID of the changed row, ErrCapacityExceeded when
// the new sum would exceed the aircraft capacity, and ErrSoldOut when the
// new allotment would fall below the seats already sold in that class.
func (s *Store) UpdateSeatsOffered(ctx context.Context, inventoryID int64, seatsOffered int) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var inv models.FlightInventory
	err = tx.GetContext(ctx, &inv,
		"SELECT id, flight_id, seat_class_id, seats_offered, price_cents FROM flight_inventories WHERE id = $1 FOR UPDATE",
		inventoryID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock inventory: %w", err)
	}

	// Lock sibling rows too; their sum is part of the invariant.
	var offeredElsewhere int
	err = tx.GetContext(ctx, &offeredElsewhere, `
		SELECT COALESCE(SUM(seats_offered), 0) FROM (
			SELECT seats_offered FROM flight_inventories
			WHERE flight_id = $1 AND id <> $2 FOR UPDATE
		) siblings`,
		inv.FlightID, inventoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to lock sibling inventories: %w", err)
	}

	var capacity int
	err = tx.GetContext(ctx, &capacity, `
		SELECT ac.seat_capacity FROM flights f
		JOIN aircraft ac ON ac.id = f.aircraft_id WHERE f.id = $1`,
		inv.FlightID)
	if err != nil {
		return 0, fmt.Errorf("failed to read aircraft capacity: %w", err)
	}

	if offeredElsewhere+seatsOffered > capacity {
		return 0, fmt.Errorf("%w: capacity=%d, other classes=%d, requested=%d",
			ErrCapacityExceeded, capacity, offeredElsewhere, seatsOffered)
	}

	var sold int
	err = tx.GetContext(ctx, &sold,
		"SELECT COUNT(*) FROM tickets WHERE flight_id = $1 AND seat_class_id = $2",
		inv.FlightID, inv.SeatClassID)
	if err != nil {
		return 0, err
	}
	if seatsOffered < sold {
		return 0, fmt.Errorf("%w: %d seats already sold in class", ErrSoldOut, sold)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE flight_inventories SET seats_offered = $1 WHERE id = $2",
		seatsOffered, inventoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to update inventory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inv.FlightID, nil
}

// lockInventoryTx locks one inventory row by ID and verifies it belongs to
// the expected flight. Used by the reservation transactions; the returned
// row carries the price and class that get locked into the ticket.
func lockInventoryTx(ctx context.Context, tx *sqlx.Tx, inventoryID, flightID int64) (*models.FlightInventory, error) {
	var inv models.FlightInventory
	err := tx.GetContext(ctx, &inv,
		"SELECT id, flight_id, seat_class_id, seats_offered, price_cents FROM flight_inventories WHERE id = $1 FOR UPDATE",
		inventoryID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory: %w", err)
	}
	if inv.FlightID != flightID {
		return nil, ErrNotFound
	}
	return &inv, nil
}

// soldCountTx counts active tickets for a (flight, class) pair, optionally
// excluding one ticket (for edits of that same ticket).
func soldCountTx(ctx context.Context, tx *sqlx.Tx, flightID, seatClassID, excludeTicketID int64) (int, error) {
	var sold int
	err := tx.GetContext(ctx, &sold,
		"SELECT COUNT(*) FROM tickets WHERE flight_id = $1 AND seat_class_id = $2 AND id <> $3",
		flightID, seatClassID, excludeTicketID)
	return sold, err
}

// seatTakenTx reports whether a seat number is already active on a flight,
// optionally excluding one ticket.
func seatTakenTx(ctx context.Context, tx *sqlx.Tx, flightID int64, seatNumber string, excludeTicketID int64) (bool, error) {
	var taken bool
	err := tx.GetContext(ctx, &taken,
		"SELECT EXISTS(SELECT 1 FROM tickets WHERE flight_id = $1 AND seat_number = $2 AND id <> $3)",
		flightID, seatNumber, excludeTicketID)
	return taken, err
}

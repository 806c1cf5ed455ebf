package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"flight-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// LegSelection is the caller's choice for one itinerary leg: which
// inventory (class) to buy on which flight, and which seat to sit in.
type LegSelection struct {
	FlightID    int64  `json:"flight_id"`
	InventoryID int64  `json:"inventory_id"`
	SeatNumber  string `json:"seat_number"`
}

const ticketColumns = `
	t.id, t.reservation_id, t.flight_id, t.seat_class_id, t.seat_number, t.price_cents,
	f.flight_number, dep.iata_code AS departure_iata, arr.iata_code AS arrival_iata,
	f.departs_at, f.arrives_at, sc.name AS class_name`

const ticketJoins = `
	FROM tickets t
	JOIN flights f ON f.id = t.flight_id
	JOIN airports dep ON dep.id = f.departure_airport_id
	JOIN airports arr ON arr.id = f.arrival_airport_id
	JOIN seat_classes sc ON sc.id = t.seat_class_id`

// CreateReservation creates a reservation with one ticket per leg inside a
// single transaction. For every leg it locks the chosen inventory row,
// re-derives the sold count and checks the seat number against active
// tickets, so two concurrent requests for the last seat cannot both
// succeed. Any failed leg rolls the whole reservation back.
//
// Legs are processed in (flight, inventory) order regardless of the order
// the caller sent them, so concurrent multi-leg requests take their row
// locks in a consistent order and cannot deadlock each other.
func (s *Store) CreateReservation(ctx context.Context, userID int64, idempotencyKey string, legs []LegSelection) (*models.Reservation, []models.Ticket, error) {
	if len(legs) == 0 {
		return nil, nil, fmt.Errorf("reservation needs at least one leg")
	}

	ordered := make([]LegSelection, len(legs))
	copy(ordered, legs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].FlightID != ordered[j].FlightID {
			return ordered[i].FlightID < ordered[j].FlightID
		}
		return ordered[i].InventoryID < ordered[j].InventoryID
	})

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation, `
		INSERT INTO reservations (user_id, status, total_cents, idempotency_key)
		VALUES ($1, $2, 0, $3)
		RETURNING id, user_id, status, total_cents, idempotency_key, created_at, updated_at`,
		userID, models.ReservationStatusPending, idempotencyKey)
	if err != nil {
		if sentinel := constraintSentinel(err); sentinel != nil {
			return nil, nil, fmt.Errorf("reservation key %s: %w", idempotencyKey, sentinel)
		}
		return nil, nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	var total int64
	tickets := make([]models.Ticket, 0, len(ordered))
	for _, leg := range ordered {
		inv, err := lockInventoryTx(ctx, tx, leg.InventoryID, leg.FlightID)
		if err != nil {
			return nil, nil, err
		}

		sold, err := soldCountTx(ctx, tx, inv.FlightID, inv.SeatClassID, 0)
		if err != nil {
			return nil, nil, err
		}
		if sold >= inv.SeatsOffered {
			return nil, nil, fmt.Errorf("flight %d class %d: %w", inv.FlightID, inv.SeatClassID, ErrSoldOut)
		}

		taken, err := seatTakenTx(ctx, tx, inv.FlightID, leg.SeatNumber, 0)
		if err != nil {
			return nil, nil, err
		}
		if taken {
			return nil, nil, fmt.Errorf("flight %d seat %s: %w", inv.FlightID, leg.SeatNumber, ErrSeatTaken)
		}

		var ticket models.Ticket
		err = tx.GetContext(ctx, &ticket, `
			INSERT INTO tickets (reservation_id, flight_id, seat_class_id, seat_number, price_cents)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, reservation_id, flight_id, seat_class_id, seat_number, price_cents`,
			reservation.ID, inv.FlightID, inv.SeatClassID, leg.SeatNumber, inv.PriceCents)
		if err != nil {
			// A racer holding a different class's inventory lock slips past
			// seatTakenTx; the unique index catches it here.
			if sentinel := constraintSentinel(err); sentinel != nil {
				return nil, nil, fmt.Errorf("flight %d seat %s: %w", inv.FlightID, leg.SeatNumber, sentinel)
			}
			return nil, nil, fmt.Errorf("failed to create ticket: %w", err)
		}

		total += inv.PriceCents
		tickets = append(tickets, ticket)
	}

	err = tx.GetContext(ctx, &reservation, `
		UPDATE reservations SET total_cents = $1, updated_at = NOW() WHERE id = $2
		RETURNING id, user_id, status, total_cents, idempotency_key, created_at, updated_at`,
		total, reservation.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set reservation total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &reservation, tickets, nil
}

// GetReservationByIdempotencyKey retrieves a reservation by idempotency key
func (s *Store) GetReservationByIdempotencyKey(ctx context.Context, key string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.GetContext(ctx, &reservation,
		"SELECT * FROM reservations WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetReservationForUser retrieves a reservation owned by the given user.
// A reservation belonging to someone else is indistinguishable from a
// missing one.
func (s *Store) GetReservationForUser(ctx context.Context, reservationID, userID int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.GetContext(ctx, &reservation,
		"SELECT * FROM reservations WHERE id = $1 AND user_id = $2", reservationID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// GetTicketsByReservationID retrieves all tickets of a reservation with
// flight detail, earliest departure first.
func (s *Store) GetTicketsByReservationID(ctx context.Context, reservationID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.SelectContext(ctx, &tickets,
		"SELECT"+ticketColumns+ticketJoins+" WHERE t.reservation_id = $1 ORDER BY f.departs_at, t.id",
		reservationID)
	return tickets, err
}

// MarkPaid transitions a PENDING reservation to PAID. Calling it on an
// already-PAID reservation is a no-op that returns the current row, so
// retried payment callbacks cannot double-charge.
func (s *Store) MarkPaid(ctx context.Context, reservationID, userID int64) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.GetContext(ctx, &reservation, `
		UPDATE reservations SET status = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING id, user_id, status, total_cents, idempotency_key, created_at, updated_at`,
		models.ReservationStatusPaid, reservationID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// UpdateTicket changes a ticket's class and seat while the parent
// reservation is still PENDING. Availability of the new class and
// uniqueness of the new seat are re-checked under lock, excluding the
// ticket itself, and the reservation total is recomputed from its tickets.
func (s *Store) UpdateTicket(ctx context.Context, ticketID, userID, newInventoryID int64, newSeat string) (*models.Reservation, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var ticket models.Ticket
	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT t.id, t.reservation_id, t.flight_id, t.seat_class_id, r.status
		FROM tickets t
		JOIN reservations r ON r.id = t.reservation_id
		WHERE t.id = $1 AND r.user_id = $2
		FOR UPDATE OF t, r`,
		ticketID, userID).Scan(&ticket.ID, &ticket.ReservationID, &ticket.FlightID, &ticket.SeatClassID, &status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if status != models.ReservationStatusPending {
		return nil, fmt.Errorf("ticket %d: %w", ticketID, ErrInvalidState)
	}

	inv, err := lockInventoryTx(ctx, tx, newInventoryID, ticket.FlightID)
	if err != nil {
		return nil, err
	}

	sold, err := soldCountTx(ctx, tx, inv.FlightID, inv.SeatClassID, ticket.ID)
	if err != nil {
		return nil, err
	}
	if sold >= inv.SeatsOffered {
		return nil, fmt.Errorf("flight %d class %d: %w", inv.FlightID, inv.SeatClassID, ErrSoldOut)
	}

	taken, err := seatTakenTx(ctx, tx, ticket.FlightID, newSeat, ticket.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("flight %d seat %s: %w", ticket.FlightID, newSeat, ErrSeatTaken)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE tickets SET seat_class_id = $1, seat_number = $2, price_cents = $3 WHERE id = $4",
		inv.SeatClassID, newSeat, inv.PriceCents, ticket.ID)
	if err != nil {
		if sentinel := constraintSentinel(err); sentinel != nil {
			return nil, fmt.Errorf("flight %d seat %s: %w", ticket.FlightID, newSeat, sentinel)
		}
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	var reservation models.Reservation
	err = tx.GetContext(ctx, &reservation, `
		UPDATE reservations
		SET total_cents = (SELECT COALESCE(SUM(price_cents), 0) FROM tickets WHERE reservation_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id, user_id, status, total_cents, idempotency_key, created_at, updated_at`,
		ticket.ReservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute reservation total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ChangeSeat reassigns a ticket's seat with no payment-status gate; only
// seat uniqueness is re-checked. Class and price stay untouched.
func (s *Store) ChangeSeat(ctx context.Context, ticketID, userID int64, newSeat string) (*models.Ticket, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var flightID int64
	err = tx.QueryRowContext(ctx, `
		SELECT t.flight_id FROM tickets t
		JOIN reservations r ON r.id = t.reservation_id
		WHERE t.id = $1 AND r.user_id = $2
		FOR UPDATE OF t`,
		ticketID, userID).Scan(&flightID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	taken, err := seatTakenTx(ctx, tx, flightID, newSeat, ticketID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("flight %d seat %s: %w", flightID, newSeat, ErrSeatTaken)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE tickets SET seat_number = $1 WHERE id = $2", newSeat, ticketID)
	if err != nil {
		if sentinel := constraintSentinel(err); sentinel != nil {
			return nil, fmt.Errorf("flight %d seat %s: %w", flightID, newSeat, sentinel)
		}
		return nil, fmt.Errorf("failed to change seat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var ticket models.Ticket
	err = s.db.GetContext(ctx, &ticket,
		"SELECT"+ticketColumns+ticketJoins+" WHERE t.id = $1", ticketID)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// DeleteReservation removes a reservation and its tickets, which releases
// the derived occupancy in the same statement. When allowPaid is false a
// PAID reservation is refused with ErrInvalidState. Returns the prior
// status and the flight IDs whose availability changed.
func (s *Store) DeleteReservation(ctx context.Context, reservationID, userID int64, allowPaid bool) (string, []int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM reservations WHERE id = $1 AND user_id = $2 FOR UPDATE",
		reservationID, userID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	if !allowPaid && status == models.ReservationStatusPaid {
		return "", nil, fmt.Errorf("reservation %d: %w", reservationID, ErrInvalidState)
	}

	var flightIDs []int64
	err = tx.SelectContext(ctx, &flightIDs,
		"SELECT DISTINCT flight_id FROM tickets WHERE reservation_id = $1", reservationID)
	if err != nil {
		return "", nil, err
	}

	// Tickets cascade via FK, the explicit delete keeps intent readable.
	if _, err := tx.ExecContext(ctx, "DELETE FROM tickets WHERE reservation_id = $1", reservationID); err != nil {
		return "", nil, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE id = $1", reservationID); err != nil {
		return "", nil, err
	}

	if err := tx.Commit(); err != nil {
		return "", nil, err
	}
	return status, flightIDs, nil
}

// ListFilter narrows a user's reservation listing.
type ListFilter struct {
	DateFrom    *time.Time
	DateTo      *time.Time
	IncludePast bool
	Now         time.Time
}

// ListReservationsForUser returns one page of the user's reservations with
// their earliest departure, sorted (earliest departure asc, id asc) so the
// order is stable across pages. The second return value is the total match
// count before paging.
func (s *Store) ListReservationsForUser(ctx context.Context, userID int64, filter ListFilter, limit, offset int) ([]models.ReservationSummary, int, error) {
	base := `
		FROM reservations r
		LEFT JOIN tickets t ON t.reservation_id = r.id
		LEFT JOIN flights f ON f.id = t.flight_id
		WHERE r.user_id = $1`
	args := []interface{}{userID}

	if !filter.IncludePast {
		args = append(args, filter.Now)
		base += fmt.Sprintf(" AND f.departs_at >= $%d", len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		base += fmt.Sprintf(" AND f.departs_at >= $%d", len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		base += fmt.Sprintf(" AND f.departs_at <= $%d", len(args))
	}

	var total int
	countQuery := "SELECT COUNT(DISTINCT r.id) " + base
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT r.id, r.user_id, r.status, r.total_cents, r.idempotency_key,
		       r.created_at, r.updated_at,
		       MIN(f.departs_at) AS earliest_departure,
		       COUNT(t.id) AS ticket_count ` + base + `
		GROUP BY r.id
		ORDER BY MIN(f.departs_at) ASC NULLS LAST, r.id ASC`
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var summaries []models.ReservationSummary
	if err := s.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// DeleteExpiredPending removes every PENDING reservation created before the
// cutoff, cascading to its tickets. Returns how many reservations were
// removed and the affected flight IDs so caches can be invalidated.
func (s *Store) DeleteExpiredPending(ctx context.Context, cutoff time.Time) (int, []int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback()

	var ids []int64
	err = tx.SelectContext(ctx, &ids, `
		SELECT id FROM reservations
		WHERE status = $1 AND created_at < $2
		FOR UPDATE SKIP LOCKED`,
		models.ReservationStatusPending, cutoff)
	if err != nil {
		return 0, nil, err
	}
	if len(ids) == 0 {
		return 0, nil, tx.Commit()
	}

	query, args, err := sqlx.In("SELECT DISTINCT flight_id FROM tickets WHERE reservation_id IN (?)", ids)
	if err != nil {
		return 0, nil, err
	}
	var flightIDs []int64
	if err := tx.SelectContext(ctx, &flightIDs, s.db.Rebind(query), args...); err != nil {
		return 0, nil, err
	}

	query, args, err = sqlx.In("DELETE FROM tickets WHERE reservation_id IN (?)", ids)
	if err != nil {
		return 0, nil, err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return 0, nil, err
	}

	query, args, err = sqlx.In("DELETE FROM reservations WHERE id IN (?)", ids)
	if err != nil {
		return 0, nil, err
	}
	if _, err := tx.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return len(ids), flightIDs, nil
}

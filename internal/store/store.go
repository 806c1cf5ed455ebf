package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flight-booking-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

const flightColumns = `
	f.id, f.flight_number, f.departure_airport_id, f.arrival_airport_id,
	f.departs_at, f.arrives_at, f.aircraft_id, f.airline_id,
	dep.iata_code AS departure_iata, arr.iata_code AS arrival_iata,
	ac.seat_capacity`

const flightJoins = `
	FROM flights f
	JOIN airports dep ON dep.id = f.departure_airport_id
	JOIN airports arr ON arr.id = f.arrival_airport_id
	JOIN aircraft ac ON ac.id = f.aircraft_id`

// ListAirports returns all airports ordered by city for search forms.
func (s *Store) ListAirports(ctx context.Context) ([]models.Airport, error) {
	var airports []models.Airport
	err := s.db.SelectContext(ctx, &airports,
		"SELECT id, iata_code, name, city, country FROM airports ORDER BY city, iata_code")
	return airports, err
}

// GetFlightByID retrieves a flight with airport and capacity detail.
func (s *Store) GetFlightByID(ctx context.Context, id int64) (*models.Flight, error) {
	var flight models.Flight
	err := s.db.GetContext(ctx, &flight,
		"SELECT"+flightColumns+flightJoins+" WHERE f.id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &flight, nil
}

// GetFlightsByIDs retrieves multiple flights by ID. Missing IDs are simply
// absent from the result; callers decide whether that is an error.
func (s *Store) GetFlightsByIDs(ctx context.Context, ids []int64) ([]models.Flight, error) {
	if len(ids) == 0 {
		return []models.Flight{}, nil
	}

	query, args, err := sqlx.In("SELECT"+flightColumns+flightJoins+" WHERE f.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var flights []models.Flight
	err = s.db.SelectContext(ctx, &flights, query, args...)
	return flights, err
}

// FindDirectFlights returns flights matching the optional origin,
// destination and earliest-departure filters, ordered by departure time.
func (s *Store) FindDirectFlights(ctx context.Context, originID, destinationID *int64, earliest *time.Time) ([]models.Flight, error) {
	query := "SELECT" + flightColumns + flightJoins + " WHERE 1=1"
	args := []interface{}{}

	if originID != nil {
		args = append(args, *originID)
		query += fmt.Sprintf(" AND f.departure_airport_id = $%d", len(args))
	}
	if destinationID != nil {
		args = append(args, *destinationID)
		query += fmt.Sprintf(" AND f.arrival_airport_id = $%d", len(args))
	}
	if earliest != nil {
		args = append(args, *earliest)
		query += fmt.Sprintf(" AND f.departs_at >= $%d", len(args))
	}
	query += " ORDER BY f.departs_at, f.id"

	var flights []models.Flight
	err := s.db.SelectContext(ctx, &flights, query, args...)
	return flights, err
}

// FindDepartures returns flights leaving the given airport, used as the
// first leg of connection candidates.
func (s *Store) FindDepartures(ctx context.Context, originID int64, earliest *time.Time) ([]models.Flight, error) {
	origin := originID
	return s.FindDirectFlights(ctx, &origin, nil, earliest)
}

// FindArrivals returns flights landing at the given airport, used as the
// second leg of connection candidates.
func (s *Store) FindArrivals(ctx context.Context, destinationID int64, earliest *time.Time) ([]models.Flight, error) {
	dest := destinationID
	return s.FindDirectFlights(ctx, nil, &dest, earliest)
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConstraintSentinel(t *testing.T) {
	t.Run("seat backstop maps to SeatTaken", func(t *testing.T) {
		err := &pq.Error{Code: "23505", Constraint: ticketSeatConstraint}
		assert.ErrorIs(t, constraintSentinel(err), ErrSeatTaken)
	})

	t.Run("idempotency backstop maps to DuplicateRequest", func(t *testing.T) {
		err := &pq.Error{Code: "23505", Constraint: idempotencyKeyConstraint}
		assert.ErrorIs(t, constraintSentinel(err), ErrDuplicateRequest)
	})

	t.Run("wrapped errors still match", func(t *testing.T) {
		err := fmt.Errorf("insert failed: %w",
			&pq.Error{Code: "23505", Constraint: ticketSeatConstraint})
		assert.ErrorIs(t, constraintSentinel(err), ErrSeatTaken)
	})

	t.Run("other unique violations pass through", func(t *testing.T) {
		err := &pq.Error{Code: "23505", Constraint: "airports_iata_code_key"}
		assert.Nil(t, constraintSentinel(err))
	})

	t.Run("non-unique pq errors pass through", func(t *testing.T) {
		err := &pq.Error{Code: "23503", Constraint: ticketSeatConstraint}
		assert.Nil(t, constraintSentinel(err))
	})

	t.Run("non-pq errors pass through", func(t *testing.T) {
		assert.Nil(t, constraintSentinel(errors.New("connection reset")))
	})
}

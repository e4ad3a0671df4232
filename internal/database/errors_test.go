package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "nil", err: nil, want: ErrorClassPermanent},
		{name: "serialization", err: &pq.Error{Code: "40001"}, want: ErrorClassSerialization},
		{name: "deadlock", err: &pq.Error{Code: "40P01"}, want: ErrorClassDeadlock},
		{name: "lock not available", err: &pq.Error{Code: "55P03"}, want: ErrorClassTransient},
		{name: "unique wrapped", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: ErrorClassUniqueViolation},
		{name: "no rows", err: sql.ErrNoRows, want: ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert order: %w", &pq.Error{Code: "23505", Constraint: "orders_order_id_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "orders_order_id_key"))
	assert.False(t, IsUniqueViolation(err, "other_key"))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(sql.ErrNoRows, ""))
}

func TestMarkTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "deadlock", err: fmt.Errorf("update order: %w", &pq.Error{Code: "40P01"}), transient: true},
		{name: "serialization", err: &pq.Error{Code: "40001"}, transient: true},
		{name: "lock not available", err: &pq.Error{Code: "55P03"}, transient: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}, transient: false},
		{name: "not found", err: ErrOrderNotFound, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkTransient(tt.err)
			assert.Equal(t, tt.transient, errors.Is(got, ErrTransient))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, MarkTransient(nil))

	once := MarkTransient(&pq.Error{Code: "40P01"})
	assert.Equal(t, once.Error(), MarkTransient(once).Error())
}

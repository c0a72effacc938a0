package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"sourcing/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestInsertSQL(t *testing.T) {
	query := insertSQL("orders", []string{"id", "quotation_id", "status"})
	require.Equal(t,
		"INSERT INTO orders (id, quotation_id, status) VALUES (:id, :quotation_id, :status) RETURNING seq",
		query)
}

func TestUpdateSQLSkipsImmutable(t *testing.T) {
	query := updateSQL("rfqs", []string{"id", "buyer_id", "title", "status", "version", "created_at", "updated_at"})
	require.Equal(t,
		"UPDATE rfqs SET title = :title, status = :status, updated_at = :updated_at, version = version + 1 "+
			"WHERE id = :id AND version = :version",
		query)
}

func TestWhereQuery(t *testing.T) {
	w := (&where{}).eq("buyer_id", "b1").eq("category", "").eq("status", "quoted")
	query, args := w.query("rfqs", Page{Limit: 20, Offset: 40})
	require.Equal(t,
		"SELECT * FROM rfqs WHERE buyer_id = $1 AND status = $2 ORDER BY created_at DESC, seq DESC LIMIT 20 OFFSET 40",
		query)
	require.Equal(t, []interface{}{"b1", "quoted"}, args)

	w = (&where{}).contains("categories", "Electronics")
	query, args = w.query("suppliers", Page{})
	require.Equal(t, "SELECT * FROM suppliers WHERE $1 = ANY(categories) ORDER BY created_at DESC, seq DESC", query)
	require.Len(t, args, 1)
}

func TestMapError(t *testing.T) {
	err := mapError(&pq.Error{Code: "23505", Constraint: "orders_quotation_id_key"})
	require.ErrorIs(t, err, models.ErrDuplicateOrder)

	err = mapError(&pq.Error{Code: "23505", Constraint: "users_email_key"})
	require.ErrorIs(t, err, models.ErrValidation)

	err = mapError(&pq.Error{Code: "23505", Constraint: "quotations_one_accepted_per_rfq"})
	require.ErrorIs(t, err, models.ErrConflict)

	other := &pq.Error{Code: "23503"}
	require.Equal(t, error(other), mapError(other))
	require.NoError(t, mapError(nil))
}

func TestIsTransient(t *testing.T) {
	require.True(t, isTransient(&pq.Error{Code: "40001"}))
	require.True(t, isTransient(fmt.Errorf("commit: %w", &pq.Error{Code: "40P01"})))
	require.True(t, isTransient(driver.ErrBadConn))
	require.False(t, isTransient(&pq.Error{Code: "23505"}))
	require.False(t, isTransient(models.ErrNotFound))
	require.False(t, isTransient(nil))
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		return retryable(models.NotFound("rfq", "r1"))
	})
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Equal(t, 1, calls)
}

func TestWithRetryRepeatsTransientError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return retryable(&pq.Error{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)

	calls = 0
	err = withRetry(context.Background(), func(context.Context) error {
		calls++
		return retryable(&pq.Error{Code: "40P01"})
	})
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	require.Equal(t, 4, calls)
}

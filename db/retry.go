package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// Коды Postgres, после которых транзакцию можно повторить целиком.
var transientCodes = map[pq.ErrorCode]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"08001": true, // sqlclient_unable_to_establish_sqlconnection
	"08004": true, // sqlserver_rejected_establishment_of_sqlconnection
	"08006": true, // connection_failure
	"57P03": true, // cannot_connect_now
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientCodes[pqErr.Code]
	}
	return false
}

// retryable помечает временные ошибки для go-retry, остальные возвращает как есть.
func retryable(err error) error {
	if isTransient(err) {
		return retry.RetryableError(err)
	}
	return err
}

func newBackoff() retry.Backoff {
	b := retry.NewExponential(50 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(time.Second, b)
	return retry.WithMaxRetries(3, b)
}

func withRetry(ctx context.Context, fn retry.RetryFunc) error {
	return retry.Do(ctx, newBackoff(), fn)
}

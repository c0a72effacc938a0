package expiry_test

import (
	"context"
	"testing"
	"time"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/expiry"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"github.com/stretchr/testify/require"
)

func TestSweepOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	store := db.NewMemStorage()
	auth := lifecycle.NewAuthority(store, config.Default())
	auth.Now = func() time.Time { return now }
	sweeper := expiry.NewSweeper(store, auth, time.Minute)

	mk := func(status models.RFQStatus, expires time.Time) string {
		r := &models.RFQ{BuyerID: "b1", Title: "t", Category: "Chemicals", Quantity: 1, Unit: "kg",
			Status: status, ExpiresAt: expires}
		require.NoError(t, store.CreateRFQ(ctx, r))
		return r.ID
	}
	stalePending := mk(models.RFQPendingApproval, now.Add(-time.Hour))
	staleQuoted := mk(models.RFQQuoted, now)
	fresh := mk(models.RFQMatched, now.Add(time.Hour))
	rejected := mk(models.RFQRejected, now.Add(-time.Hour))

	closed, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, closed)

	for id, want := range map[string]models.RFQStatus{
		stalePending: models.RFQClosed,
		staleQuoted:  models.RFQClosed,
		fresh:        models.RFQMatched,
		rejected:     models.RFQRejected,
	} {
		r, err := store.GetRFQ(ctx, id)
		require.NoError(t, err)
		require.Equal(t, want, r.Status, id)
	}

	// повторный проход ничего не меняет
	closed, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, closed)

	history, err := auth.History(ctx, models.EntityRFQ, staleQuoted)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "system", history[0].Actor)
}

func TestSweepPagesThroughRFQs(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	store := db.NewMemStorage()
	auth := lifecycle.NewAuthority(store, config.Default())
	auth.Now = func() time.Time { return now }

	for i := 0; i < 130; i++ {
		require.NoError(t, store.CreateRFQ(ctx, &models.RFQ{BuyerID: "b1", Title: "t", Category: "Chemicals",
			Quantity: 1, Unit: "kg", Status: models.RFQApproved, ExpiresAt: now.Add(-time.Minute)}))
	}
	closed, err := expiry.NewSweeper(store, auth, time.Minute).SweepOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 130, closed)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := db.NewMemStorage()
	auth := lifecycle.NewAuthority(store, config.Default())
	sweeper := expiry.NewSweeper(store, auth, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	r := &models.RFQ{Status: models.RFQMatched, ExpiresAt: now}
	require.True(t, expiry.Due(r, now))
	require.False(t, expiry.Due(r, now.Add(-time.Second)))
	r.Status = models.RFQClosed
	require.False(t, expiry.Due(r, now))
}

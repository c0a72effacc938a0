package samples_test

import (
	"context"
	"testing"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/lifecycle"
	"sourcing/internal/samples"
	"sourcing/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, quotationStatus models.QuotationStatus, sampleAvailable bool) (*samples.Service, *db.MemStorage, *models.Quotation) {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemStorage()
	cfg := config.Default()
	svc := samples.NewService(store, lifecycle.NewAuthority(store, cfg))

	rfq := &models.RFQ{BuyerID: "b1", Title: "Ceramic mugs", Category: "Home & Garden", Quantity: 300,
		Unit: "pieces", Status: models.RFQQuoted}
	require.NoError(t, store.CreateRFQ(ctx, rfq))
	q := &models.Quotation{RFQID: rfq.ID, SupplierID: "s1", QuotedPrice: decimal.NewFromInt(2), MOQ: 300,
		ValidityDays: 30, SampleAvailable: sampleAvailable, Status: quotationStatus}
	q.RecomputeTotal()
	require.NoError(t, store.CreateQuotation(ctx, q))
	return svc, store, q
}

func TestRequestAndAdvance(t *testing.T) {
	ctx := context.Background()
	svc, store, q := setup(t, models.QuotationSentToBuyer, true)

	req := &models.SampleRequest{QuotationID: q.ID, BuyerID: "b1", Quantity: 2, Notes: "blue glaze"}
	require.NoError(t, svc.Request(ctx, req))
	require.Equal(t, models.SampleRequested, req.Status)
	require.Equal(t, q.RFQID, req.RFQID)
	require.Equal(t, "s1", req.SupplierID)

	_, err := svc.Advance(ctx, req.ID, models.SampleShipped, "", "s1")
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = svc.Advance(ctx, req.ID, models.SampleApproved, "", "s1")
	require.NoError(t, err)
	shipped, err := svc.Advance(ctx, req.ID, models.SampleShipped, "DHL-42", "s1")
	require.NoError(t, err)
	require.Equal(t, "DHL-42", shipped.TrackingNumber)
	_, err = svc.Advance(ctx, req.ID, models.SampleDelivered, "", "b1")
	require.NoError(t, err)

	list, err := svc.List(ctx, db.SampleFilter{BuyerID: "b1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.SampleDelivered, list[0].Status)

	changes, err := store.ListStatusChanges(ctx, models.EntitySample, req.ID)
	require.NoError(t, err)
	require.Len(t, changes, 4)
}

func TestRequestRules(t *testing.T) {
	ctx := context.Background()

	svc, _, q := setup(t, models.QuotationPendingReview, true)
	err := svc.Request(ctx, &models.SampleRequest{QuotationID: q.ID, BuyerID: "b1", Quantity: 1})
	require.ErrorIs(t, err, models.ErrInvalidState)

	svc, _, q = setup(t, models.QuotationSentToBuyer, false)
	err = svc.Request(ctx, &models.SampleRequest{QuotationID: q.ID, BuyerID: "b1", Quantity: 1})
	require.ErrorIs(t, err, models.ErrInvalidState)

	svc, store, q := setup(t, models.QuotationSentToBuyer, true)
	err = svc.Request(ctx, &models.SampleRequest{QuotationID: q.ID, BuyerID: "other", Quantity: 1})
	require.ErrorIs(t, err, models.ErrValidation)

	err = svc.Request(ctx, &models.SampleRequest{QuotationID: q.ID, BuyerID: "b1", Quantity: 0})
	require.ErrorIs(t, err, models.ErrValidation)

	err = svc.Request(ctx, &models.SampleRequest{QuotationID: "missing", BuyerID: "b1", Quantity: 1})
	require.ErrorIs(t, err, models.ErrNotFound)

	list, err := store.ListSamples(ctx, db.SampleFilter{})
	require.NoError(t, err)
	require.Empty(t, list)
}

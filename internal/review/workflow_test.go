package review_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/lifecycle"
	"sourcing/internal/review"
	"sourcing/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx   context.Context
	store *db.MemStorage
	auth  *lifecycle.Authority
	flow  *review.Workflow
	now   time.Time
	rfq   *models.RFQ
	buyer string
}

// setup создает покупателя, n верифицированных поставщиков и RFQ в статусе matched.
func setup(t *testing.T, suppliers int, tweak func(*config.Config)) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
	cfg := config.Default()
	cfg.StorageDriver = config.DriverMemory
	if tweak != nil {
		tweak(&cfg)
	}
	f.store = db.NewMemStorage(db.WithClock(func() time.Time { return f.now }))
	f.auth = lifecycle.NewAuthority(f.store, cfg)
	f.auth.Now = func() time.Time { return f.now }
	f.flow = review.NewWorkflow(f.store, f.auth, cfg)

	buyer := &models.User{Email: "buyer@example.com", Name: "Buyer", UserType: models.UserBuyer}
	require.NoError(t, f.store.CreateUser(f.ctx, buyer))
	f.buyer = buyer.ID
	for i := 1; i <= suppliers; i++ {
		id := fmt.Sprintf("s%02d", i)
		require.NoError(t, f.store.CreateSupplier(f.ctx, &models.Supplier{
			ID: id, CompanyName: id, Categories: []string{"Electronics"}, YearsInBusiness: i,
			VerificationStatus: models.VerificationVerified,
		}))
	}

	f.rfq = &models.RFQ{BuyerID: f.buyer, Title: "PCB assembly", Category: "Electronics", Quantity: 2000,
		Unit: "boards", TargetPrice: decimal.RequireFromString("4.20")}
	require.NoError(t, f.auth.CreateRFQ(f.ctx, f.rfq))
	_, err := f.auth.ReviewRFQ(f.ctx, f.rfq.ID, models.RFQApproved, "admin")
	require.NoError(t, err)
	f.rfq, err = f.auth.ConfirmMatches(f.ctx, f.rfq.ID, nil, "admin")
	require.NoError(t, err)
	return f
}

func (f *fixture) quotation(supplierID, price string, moq int) *models.Quotation {
	return &models.Quotation{RFQID: f.rfq.ID, SupplierID: supplierID, QuotedPrice: decimal.RequireFromString(price),
		MOQ: moq, ValidityDays: 30, LeadTime: "3 weeks"}
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	r, err := f.store.GetRFQ(f.ctx, f.rfq.ID)
	require.NoError(t, err)
	return r.QuotationsCount
}

func TestSubmitAndReview(t *testing.T) {
	f := setup(t, 1, nil)

	q := f.quotation("s01", "8.00", 1000)
	require.NoError(t, f.flow.Submit(f.ctx, q))
	require.Equal(t, models.QuotationPendingReview, q.Status)
	require.True(t, q.TotalValue.Equal(decimal.NewFromInt(8000)))
	require.Equal(t, f.now, q.SubmittedAt)
	require.Nil(t, q.ReviewedAt)
	require.Equal(t, 1, f.count(t))

	reviewed, err := f.flow.Review(f.ctx, q.ID, review.Approve, "", "admin")
	require.NoError(t, err)
	require.Equal(t, models.QuotationSentToBuyer, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)
	require.Equal(t, 1, f.count(t))
}

func TestSubmitValidation(t *testing.T) {
	f := setup(t, 1, nil)

	cases := map[string]func(*models.Quotation){
		"zero price":       func(q *models.Quotation) { q.QuotedPrice = decimal.Zero },
		"negative price":   func(q *models.Quotation) { q.QuotedPrice = decimal.NewFromInt(-1) },
		"price precision":  func(q *models.Quotation) { q.QuotedPrice = decimal.RequireFromString("8.12345") },
		"zero moq":         func(q *models.Quotation) { q.MOQ = 0 },
		"zero validity":    func(q *models.Quotation) { q.ValidityDays = 0 },
		"validity too big": func(q *models.Quotation) { q.ValidityDays = 400 },
		"missing supplier": func(q *models.Quotation) { q.SupplierID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			q := f.quotation("s01", "1.00", 10)
			mutate(q)
			require.ErrorIs(t, f.flow.Submit(f.ctx, q), models.ErrValidation)
		})
	}
	require.Equal(t, 0, f.count(t))
}

func TestSubmitPreconditions(t *testing.T) {
	f := setup(t, 2, nil)

	q := f.quotation("s01", "1.00", 10)
	q.RFQID = "missing"
	require.ErrorIs(t, f.flow.Submit(f.ctx, q), models.ErrNotFound)

	require.ErrorIs(t, f.flow.Submit(f.ctx, f.quotation("ghost", "1.00", 10)), models.ErrNotFound)

	require.NoError(t, f.flow.Submit(f.ctx, f.quotation("s01", "1.00", 10)))
	err := f.flow.Submit(f.ctx, f.quotation("s01", "0.90", 10))
	require.ErrorIs(t, err, models.ErrInvalidState)
	require.Equal(t, 1, f.count(t))

	// не подобранный к RFQ поставщик
	require.NoError(t, f.store.CreateSupplier(f.ctx, &models.Supplier{
		ID: "late", CompanyName: "late", Categories: []string{"Electronics"},
		VerificationStatus: models.VerificationVerified,
	}))
	require.ErrorIs(t, f.flow.Submit(f.ctx, f.quotation("late", "1.00", 10)), models.ErrValidation)

	// истекший RFQ не принимает котировки
	f.now = f.now.AddDate(0, 0, 31)
	require.ErrorIs(t, f.flow.Submit(f.ctx, f.quotation("s02", "1.00", 10)), models.ErrInvalidState)
}

func TestResubmitAfterRejection(t *testing.T) {
	f := setup(t, 1, nil)

	q := f.quotation("s01", "2.00", 10)
	require.NoError(t, f.flow.Submit(f.ctx, q))
	_, err := f.flow.Review(f.ctx, q.ID, review.Reject, "too expensive", "admin")
	require.NoError(t, err)
	require.Equal(t, 0, f.count(t))

	require.NoError(t, f.flow.Submit(f.ctx, f.quotation("s01", "1.50", 10)))
	require.Equal(t, 1, f.count(t))
}

// Сценарий: одиннадцатая котировка при лимите 10 отклоняется.
func TestSubmitCapExceeded(t *testing.T) {
	f := setup(t, 11, nil)

	for i := 1; i <= 10; i++ {
		require.NoError(t, f.flow.Submit(f.ctx, f.quotation(fmt.Sprintf("s%02d", i), "3.00", 100)))
	}
	require.Equal(t, 10, f.count(t))

	err := f.flow.Submit(f.ctx, f.quotation("s11", "2.50", 100))
	require.ErrorIs(t, err, models.ErrCapExceeded)
	require.Equal(t, 10, f.count(t))

	quotations, err := f.store.ListQuotations(f.ctx, db.QuotationFilter{RFQID: f.rfq.ID})
	require.NoError(t, err)
	require.Len(t, quotations, 10)
}

func TestCapCountsOnlyNonRejected(t *testing.T) {
	f := setup(t, 3, func(c *config.Config) { c.MaxQuotationsPerRFQ = 2 })

	first := f.quotation("s01", "3.00", 100)
	require.NoError(t, f.flow.Submit(f.ctx, first))
	require.NoError(t, f.flow.Submit(f.ctx, f.quotation("s02", "3.00", 100)))
	require.ErrorIs(t, f.flow.Submit(f.ctx, f.quotation("s03", "3.00", 100)), models.ErrCapExceeded)

	_, err := f.flow.Review(f.ctx, first.ID, review.Reject, "", "admin")
	require.NoError(t, err)
	require.NoError(t, f.flow.Submit(f.ctx, f.quotation("s03", "3.00", 100)))
	require.Equal(t, 2, f.count(t))
}

func TestRevise(t *testing.T) {
	f := setup(t, 1, nil)
	q := f.quotation("s01", "8.00", 1000)
	require.NoError(t, f.flow.Submit(f.ctx, q))

	price := decimal.RequireFromString("7.25")
	moq := 400
	revised, err := f.flow.Revise(f.ctx, q.ID, models.QuotationPatch{QuotedPrice: &price, MOQ: &moq})
	require.NoError(t, err)
	require.True(t, revised.TotalValue.Equal(decimal.NewFromInt(2900)))

	zero := 0
	_, err = f.flow.Revise(f.ctx, q.ID, models.QuotationPatch{MOQ: &zero})
	require.ErrorIs(t, err, models.ErrValidation)

	precise := decimal.RequireFromString("7.00001")
	_, err = f.flow.Revise(f.ctx, q.ID, models.QuotationPatch{QuotedPrice: &precise})
	require.ErrorIs(t, err, models.ErrValidation)

	stored, err := f.store.GetQuotation(f.ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, 400, stored.MOQ)
	require.True(t, stored.TotalValue.Equal(stored.QuotedPrice.Mul(decimal.NewFromInt(int64(stored.MOQ)))))

	_, err = f.flow.Review(f.ctx, q.ID, review.Approve, "", "admin")
	require.NoError(t, err)
	_, err = f.flow.Revise(f.ctx, q.ID, models.QuotationPatch{MOQ: &moq})
	require.ErrorIs(t, err, models.ErrInvalidState)
}

func TestBuyerDecide(t *testing.T) {
	f := setup(t, 2, nil)
	a := f.quotation("s01", "4.00", 2000)
	b := f.quotation("s02", "4.10", 2000)
	require.NoError(t, f.flow.Submit(f.ctx, a))
	require.NoError(t, f.flow.Submit(f.ctx, b))

	_, _, err := f.flow.BuyerDecide(f.ctx, a.ID, review.Accept, "", f.buyer)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	for _, id := range []string{a.ID, b.ID} {
		_, err := f.flow.Review(f.ctx, id, review.Approve, "", "admin")
		require.NoError(t, err)
	}

	declined, order, err := f.flow.BuyerDecide(f.ctx, b.ID, review.Reject, "slower lead time", f.buyer)
	require.NoError(t, err)
	require.Nil(t, order)
	require.Equal(t, models.QuotationRejected, declined.Status)
	require.Equal(t, 1, f.count(t))

	accepted, order, err := f.flow.BuyerDecide(f.ctx, a.ID, review.Accept, "", f.buyer)
	require.NoError(t, err)
	require.Equal(t, models.QuotationAccepted, accepted.Status)
	require.NotNil(t, order)
	require.True(t, order.OrderValue.Equal(decimal.NewFromInt(8000)))

	_, _, err = f.flow.BuyerDecide(f.ctx, a.ID, review.Approve, "", f.buyer)
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestParseDecision(t *testing.T) {
	d, err := review.ParseDecision("approve", review.Approve, review.Reject)
	require.NoError(t, err)
	require.Equal(t, review.Approve, d)

	_, err = review.ParseDecision("accept", review.Approve, review.Reject)
	require.ErrorIs(t, err, models.ErrValidation)
}

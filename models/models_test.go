package models_test

import (
	"errors"
	"testing"

	"sourcing/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateRFQ(t *testing.T) {
	rfq := models.RFQ{
		BuyerID:  "b1",
		Title:    "Cotton T-Shirts",
		Category: "Textiles & Apparel",
		Quantity: 5000,
		Unit:     "pieces",
	}
	require.NoError(t, models.Validate(&rfq))

	rfq.Quantity = 0
	err := models.Validate(&rfq)
	require.Error(t, err)
	require.True(t, errors.Is(err, models.ErrValidation))

	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "quantity", verr.Field)
}

func TestValidateUserEmail(t *testing.T) {
	u := models.User{Email: "not-an-email", Name: "Buyer", UserType: models.UserBuyer}
	err := models.Validate(&u)
	require.ErrorIs(t, err, models.ErrValidation)
	require.Contains(t, err.Error(), "email")
}

func TestValidateSupplierCategories(t *testing.T) {
	s := models.Supplier{ID: "s1", CompanyName: "Acme"}
	err := models.Validate(&s)
	require.ErrorIs(t, err, models.ErrValidation)
	require.Contains(t, err.Error(), "categories")

	s.Categories = []string{"Electronics"}
	require.NoError(t, models.Validate(&s))
}

func TestRecomputeTotal(t *testing.T) {
	q := models.Quotation{QuotedPrice: decimal.RequireFromString("8.00"), MOQ: 1000}
	q.RecomputeTotal()
	require.True(t, q.TotalValue.Equal(decimal.NewFromInt(8000)))

	q.QuotedPrice = decimal.RequireFromString("0.07")
	q.MOQ = 3
	q.RecomputeTotal()
	require.Equal(t, "0.21", q.TotalValue.String())
}

func TestTransitionErrorUnwrap(t *testing.T) {
	err := &models.TransitionError{Entity: "rfq", ID: "r1", From: "closed", To: "approved"}
	require.ErrorIs(t, err, models.ErrInvalidTransition)
	require.Contains(t, err.Error(), "closed")
	require.Contains(t, err.Error(), "approved")
}

func TestCheckScale(t *testing.T) {
	require.NoError(t, models.CheckScale("quotedPrice", decimal.RequireFromString("8.1234")))
	require.NoError(t, models.CheckScale("quotedPrice", decimal.RequireFromString("8.12340")))
	require.NoError(t, models.CheckScale("quotedPrice", decimal.NewFromInt(8)))

	err := models.CheckScale("quotedPrice", decimal.RequireFromString("8.12345"))
	require.ErrorIs(t, err, models.ErrValidation)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "quotedPrice", verr.Field)

	// при допустимой точности total_value не теряет знаков
	price := decimal.RequireFromString("8.1235")
	q := models.Quotation{QuotedPrice: price, MOQ: 3}
	q.RecomputeTotal()
	require.NoError(t, models.CheckScale("totalValue", q.TotalValue))
	require.True(t, q.TotalValue.Equal(decimal.RequireFromString("24.3705")))
}

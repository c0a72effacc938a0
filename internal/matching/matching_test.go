package matching_test

import (
	"context"
	"testing"

	"sourcing/db"
	"sourcing/internal/matching"
	"sourcing/models"

	"github.com/stretchr/testify/require"
)

func supplier(id string, years int, certs []string, categories ...string) *models.Supplier {
	return &models.Supplier{
		ID:                 id,
		CompanyName:        "Company " + id,
		Categories:         categories,
		Certifications:     certs,
		YearsInBusiness:    years,
		VerificationStatus: models.VerificationVerified,
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		name string
		s    *models.Supplier
		want int
	}{
		{"newcomer", supplier("a", 0, nil, "Electronics"), 20},
		{"veteran", supplier("b", 35, []string{"ISO9001", "CE"}, "Electronics", "Chemicals"), 40 + 16 + 10},
		{"three categories", supplier("c", 5, []string{"ISO9001"}, "A", "B", "C"), 10 + 8 + 6},
		{"clamped", supplier("d", 20, []string{"1", "2", "3", "4", "5", "6"}, "A"), 100},
		{"negative years", supplier("e", -3, nil, "A", "B"), 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reasons := matching.Score(tc.s)
			require.Equal(t, tc.want, got)
			require.NotEmpty(t, reasons)
		})
	}
}

func TestRankTieBreakByID(t *testing.T) {
	ranked := matching.Rank([]models.Supplier{
		*supplier("s3", 10, nil, "Electronics"),
		*supplier("s1", 10, nil, "Electronics"),
		*supplier("s2", 15, nil, "Electronics"),
		*supplier("s4", 30, nil, "Chemicals"),
	}, "Electronics")

	require.Len(t, ranked, 3)
	require.Equal(t, "s2", ranked[0].Supplier.ID)
	require.Equal(t, "s1", ranked[1].Supplier.ID)
	require.Equal(t, "s3", ranked[2].Supplier.ID)
}

func TestMatchFiltersByCategoryAndVerification(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemStorage()

	require.NoError(t, store.CreateSupplier(ctx, supplier("tex-1", 12, []string{"OEKO-TEX"}, "Textiles & Apparel")))
	require.NoError(t, store.CreateSupplier(ctx, supplier("tex-2", 3, nil, "Textiles & Apparel", "Home & Garden")))
	require.NoError(t, store.CreateSupplier(ctx, supplier("elec-1", 20, nil, "Electronics")))
	unverified := supplier("tex-3", 25, nil, "Textiles & Apparel")
	unverified.VerificationStatus = models.VerificationPending
	require.NoError(t, store.CreateSupplier(ctx, unverified))

	rfq := &models.RFQ{BuyerID: "b1", Title: "T-shirts", Category: "Textiles & Apparel", Quantity: 5000,
		Unit: "pieces", Status: models.RFQApproved}
	require.NoError(t, store.CreateRFQ(ctx, rfq))

	engine := matching.NewEngine(store)
	matches, err := engine.Match(ctx, rfq.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "tex-1", matches[0].Supplier.ID)
	require.Equal(t, 24+8+20, matches[0].Score)
	require.Equal(t, "tex-2", matches[1].Supplier.ID)
	for _, m := range matches {
		require.True(t, m.Supplier.HasCategory("Textiles & Apparel"))
	}

	// повторный вызов дает тот же результат
	again, err := engine.Match(ctx, rfq.ID)
	require.NoError(t, err)
	require.Equal(t, matches, again)

	stored, err := store.GetRFQ(ctx, rfq.ID)
	require.NoError(t, err)
	require.Empty(t, stored.MatchedSuppliers)
}

func TestMatchErrors(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemStorage()
	engine := matching.NewEngine(store)

	_, err := engine.Match(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)

	rfq := &models.RFQ{BuyerID: "b1", Title: "t", Category: "Electronics", Quantity: 1, Unit: "u",
		Status: models.RFQPendingApproval}
	require.NoError(t, store.CreateRFQ(ctx, rfq))
	_, err = engine.Match(ctx, rfq.ID)
	require.ErrorIs(t, err, models.ErrInvalidState)
}

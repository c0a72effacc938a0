package analytics

import (
	"context"

	"sourcing/db"
	"sourcing/models"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Summary - сводные показатели площадки.
type Summary struct {
	UsersByType        map[models.UserType]int        `json:"usersByType"`
	VerifiedSuppliers  int                            `json:"verifiedSuppliers"`
	RFQsByStatus       map[models.RFQStatus]int       `json:"rfqsByStatus"`
	QuotationsByStatus map[models.QuotationStatus]int `json:"quotationsByStatus"`
	OrdersByStatus     map[models.OrderStatus]int     `json:"ordersByStatus"`
	SamplesByStatus    map[models.SampleStatus]int    `json:"samplesByStatus"`
	TotalOrderValue    decimal.Decimal                `json:"totalOrderValue"`
	PaymentsReceived   decimal.Decimal                `json:"paymentsReceived"`
	PaymentsPending    decimal.Decimal                `json:"paymentsPending"`
}

// Summarize считает показатели, читая коллекции параллельно.
// Отмененные заказы не входят в денежные суммы.
func Summarize(ctx context.Context, repo db.Repository) (*Summary, error) {
	s := &Summary{
		UsersByType:        map[models.UserType]int{},
		RFQsByStatus:       map[models.RFQStatus]int{},
		QuotationsByStatus: map[models.QuotationStatus]int{},
		OrdersByStatus:     map[models.OrderStatus]int{},
		SamplesByStatus:    map[models.SampleStatus]int{},
		TotalOrderValue:    decimal.Zero,
		PaymentsReceived:   decimal.Zero,
		PaymentsPending:    decimal.Zero,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := repo.ListUsers(ctx, db.UserFilter{})
		for _, u := range users {
			s.UsersByType[u.UserType]++
		}
		return err
	})
	g.Go(func() error {
		suppliers, err := repo.ListSuppliers(ctx, db.SupplierFilter{VerificationStatus: models.VerificationVerified})
		s.VerifiedSuppliers = len(suppliers)
		return err
	})
	g.Go(func() error {
		rfqs, err := repo.ListRFQs(ctx, db.RFQFilter{})
		for _, r := range rfqs {
			s.RFQsByStatus[r.Status]++
		}
		return err
	})
	g.Go(func() error {
		quotations, err := repo.ListQuotations(ctx, db.QuotationFilter{})
		for _, q := range quotations {
			s.QuotationsByStatus[q.Status]++
		}
		return err
	})
	g.Go(func() error {
		orders, err := repo.ListOrders(ctx, db.OrderFilter{})
		for _, o := range orders {
			s.OrdersByStatus[o.Status]++
			if o.Status == models.OrderCancelled {
				continue
			}
			s.TotalOrderValue = s.TotalOrderValue.Add(o.OrderValue)
			s.PaymentsReceived = s.PaymentsReceived.Add(o.PaymentReceived)
			s.PaymentsPending = s.PaymentsPending.Add(o.PaymentPending)
		}
		return err
	})
	g.Go(func() error {
		samples, err := repo.ListSamples(ctx, db.SampleFilter{})
		for _, r := range samples {
			s.SamplesByStatus[r.Status]++
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s, nil
}

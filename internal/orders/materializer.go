package orders

import (
	"context"
	"log"
	"time"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/models"

	"github.com/shopspring/decimal"
)

// Materializer строит Order из принимаемой котировки и ее RFQ.
type Materializer struct {
	ratio        decimal.Decimal
	deliveryDays int
}

func NewMaterializer(cfg config.Config) *Materializer {
	return &Materializer{ratio: cfg.AdvancePaymentRatio, deliveryDays: cfg.OrderDeliveryDays}
}

// SplitPayment делит сумму на аванс (округление до центов) и остаток.
// received + pending == value всегда.
func SplitPayment(value, ratio decimal.Decimal) (received, pending decimal.Decimal) {
	received = value.Mul(ratio).Round(2)
	pending = value.Sub(received)
	return received, pending
}

// Materialize создает заказ в транзакции repo. Если заказ для котировки уже
// есть, он возвращается без изменений.
func (m *Materializer) Materialize(ctx context.Context, repo db.Repository, q *models.Quotation, rfq *models.RFQ, now time.Time) (*models.Order, bool, error) {
	existing, err := repo.ListOrders(ctx, db.OrderFilter{QuotationID: q.ID, Page: db.Page{Limit: 1}})
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		log.Printf("warning: order %s already exists for quotation %s, returning it", existing[0].ID, q.ID)
		return &existing[0], false, nil
	}

	if q.RFQID != rfq.ID {
		return nil, false, models.Invalid("rfqId", "does not match the quotation's rfq")
	}
	if rfq.Status != models.RFQMatched && rfq.Status != models.RFQQuoted {
		return nil, false, models.StateError(models.EntityRFQ, rfq.ID, string(rfq.Status),
			"order requires matched or quoted")
	}
	if q.Status != models.QuotationSentToBuyer && q.Status != models.QuotationAccepted {
		return nil, false, models.StateError(models.EntityQuotation, q.ID, string(q.Status),
			"order requires a quotation being accepted")
	}

	received, pending := SplitPayment(q.TotalValue, m.ratio)
	deliveryTerms := q.ShippingTerms
	if deliveryTerms == "" {
		deliveryTerms = rfq.ShippingTerms
	}
	order := &models.Order{
		RFQID:            rfq.ID,
		QuotationID:      q.ID,
		BuyerID:          rfq.BuyerID,
		SupplierID:       q.SupplierID,
		OrderValue:       q.TotalValue,
		Quantity:         q.MOQ,
		UnitPrice:        q.QuotedPrice,
		PaymentTerms:     q.PaymentTerms,
		DeliveryTerms:    deliveryTerms,
		Status:           models.OrderConfirmed,
		ExpectedDelivery: now.AddDate(0, 0, m.deliveryDays),
		PaymentReceived:  received,
		PaymentPending:   pending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, false, err
	}
	return order, true, nil
}

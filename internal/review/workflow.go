package review

import (
	"context"
	"fmt"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/lifecycle"
	"sourcing/models"
)

type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
	Accept  Decision = "accept"
)

// ParseDecision проверяет решение против допустимого набора.
func ParseDecision(raw string, allowed ...Decision) (Decision, error) {
	for _, d := range allowed {
		if Decision(raw) == d {
			return d, nil
		}
	}
	return "", models.Invalid("decision", fmt.Sprintf("must be one of %v", allowed))
}

// Workflow - путь котировки от поставщика через администратора к покупателю.
type Workflow struct {
	store db.Store
	auth  *lifecycle.Authority
	cfg   config.Config
}

func NewWorkflow(store db.Store, auth *lifecycle.Authority, cfg config.Config) *Workflow {
	return &Workflow{store: store, auth: auth, cfg: cfg}
}

func (w *Workflow) validate(q *models.Quotation) error {
	if err := models.Validate(q); err != nil {
		return err
	}
	if !q.QuotedPrice.IsPositive() {
		return models.Invalid("quotedPrice", "must be greater than 0")
	}
	if err := models.CheckScale("quotedPrice", q.QuotedPrice); err != nil {
		return err
	}
	if q.MOQ <= 0 {
		return models.Invalid("moq", "must be greater than 0")
	}
	if q.ValidityDays <= 0 {
		return models.Invalid("validityDays", "must be greater than 0")
	}
	if r := w.cfg.QuotationValidityDays; !r.Contains(q.ValidityDays) {
		return models.Invalid("validityDays", fmt.Sprintf("must be within [%d, %d] days", r.Min, r.Max))
	}
	return nil
}

// Submit создает котировку в статусе pending_review и увеличивает
// quotations_count RFQ в одной транзакции.
func (w *Workflow) Submit(ctx context.Context, q *models.Quotation) error {
	if err := w.validate(q); err != nil {
		return err
	}
	now := w.auth.Now()
	q.ID = ""
	q.Status = models.QuotationPendingReview
	q.SubmittedAt = now
	q.ReviewedAt = nil
	q.ReviewNotes = ""
	q.CreatedAt = now
	q.UpdatedAt = now
	q.RecomputeTotal()

	return w.store.WithRFQLock(ctx, q.RFQID, func(repo db.Repository) error {
		if _, err := repo.GetSupplier(ctx, q.SupplierID); err != nil {
			return err
		}
		rfq, err := repo.GetRFQ(ctx, q.RFQID)
		if err != nil {
			return err
		}
		if rfq.Status != models.RFQMatched && rfq.Status != models.RFQQuoted {
			return models.StateError(models.EntityRFQ, rfq.ID, string(rfq.Status), "not accepting quotations")
		}
		if !now.Before(rfq.ExpiresAt) {
			return models.StateError(models.EntityRFQ, rfq.ID, string(rfq.Status), "expired")
		}
		if len(rfq.MatchedSuppliers) > 0 && !rfq.IsMatchedSupplier(q.SupplierID) {
			return models.Invalid("supplierId", "is not matched to this rfq")
		}

		own, err := repo.ListQuotations(ctx, db.QuotationFilter{RFQID: rfq.ID, SupplierID: q.SupplierID})
		if err != nil {
			return err
		}
		for _, other := range own {
			if other.Status != models.QuotationRejected {
				return models.StateError(models.EntityQuotation, other.ID, string(other.Status),
					"supplier already has an active quotation for this rfq")
			}
		}

		if rfq.QuotationsCount >= w.cfg.MaxQuotationsPerRFQ {
			return fmt.Errorf("%w: rfq %s already has %d quotations (max %d)",
				models.ErrCapExceeded, rfq.ID, rfq.QuotationsCount, w.cfg.MaxQuotationsPerRFQ)
		}

		if err := repo.CreateQuotation(ctx, q); err != nil {
			return err
		}
		rfq.QuotationsCount++
		if err := repo.UpdateRFQ(ctx, rfq); err != nil {
			return err
		}
		return lifecycle.Record(ctx, repo, models.EntityQuotation, q.ID, "", string(q.Status), q.SupplierID, "", now)
	})
}

// Revise меняет цену и условия, пока котировка ожидает проверки.
func (w *Workflow) Revise(ctx context.Context, id string, patch models.QuotationPatch) (*models.Quotation, error) {
	current, err := w.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}

	var out *models.Quotation
	err = w.store.WithRFQLock(ctx, current.RFQID, func(repo db.Repository) error {
		q, err := repo.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != models.QuotationPendingReview {
			return models.StateError(models.EntityQuotation, id, string(q.Status), "only pending_review can be revised")
		}
		patch.Apply(q)
		if err := w.validate(q); err != nil {
			return err
		}
		if err := repo.UpdateQuotation(ctx, q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// Review - проверка администратором: approve отправляет котировку покупателю.
func (w *Workflow) Review(ctx context.Context, id string, decision Decision, notes, actor string) (*models.Quotation, error) {
	switch decision {
	case Approve:
		return w.auth.ReviewQuotation(ctx, id, true, notes, actor)
	case Reject:
		return w.auth.ReviewQuotation(ctx, id, false, notes, actor)
	}
	return nil, models.Invalid("decision", "must be approve or reject")
}

// BuyerDecide - решение покупателя по отправленной котировке. При accept
// возвращается созданный заказ.
func (w *Workflow) BuyerDecide(ctx context.Context, id string, decision Decision, notes, actor string) (*models.Quotation, *models.Order, error) {
	switch decision {
	case Accept:
		order, err := w.auth.AcceptQuotation(ctx, id, actor)
		if err != nil {
			return nil, nil, err
		}
		q, err := w.store.GetQuotation(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		return q, order, nil
	case Reject:
		q, err := w.auth.DeclineQuotation(ctx, id, notes, actor)
		return q, nil, err
	}
	return nil, nil, models.Invalid("decision", "must be accept or reject")
}

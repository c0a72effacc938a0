package samples

import (
	"context"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"
)

// Service - запросы образцов по котировкам, отправленным покупателю.
type Service struct {
	store db.Store
	auth  *lifecycle.Authority
}

func NewService(store db.Store, auth *lifecycle.Authority) *Service {
	return &Service{store: store, auth: auth}
}

// Request создает запрос образца. Котировка должна быть у покупателя и
// предлагать образцы, запрашивать может только владелец RFQ.
func (s *Service) Request(ctx context.Context, req *models.SampleRequest) error {
	if err := models.Validate(req); err != nil {
		return err
	}
	now := s.auth.Now()
	req.ID = ""
	req.Status = models.SampleRequested
	req.TrackingNumber = ""
	req.CreatedAt = now
	req.UpdatedAt = now

	return s.store.Atomic(ctx, func(repo db.Repository) error {
		q, err := repo.GetQuotation(ctx, req.QuotationID)
		if err != nil {
			return err
		}
		if q.Status != models.QuotationSentToBuyer && q.Status != models.QuotationAccepted {
			return models.StateError(models.EntityQuotation, q.ID, string(q.Status), "samples can be requested only after it is sent to buyer")
		}
		if !q.SampleAvailable {
			return models.StateError(models.EntityQuotation, q.ID, string(q.Status), "supplier does not offer samples")
		}
		rfq, err := repo.GetRFQ(ctx, q.RFQID)
		if err != nil {
			return err
		}
		if rfq.BuyerID != req.BuyerID {
			return models.Invalid("buyerId", "must be the owner of the rfq")
		}

		req.RFQID = rfq.ID
		req.SupplierID = q.SupplierID
		if err := repo.CreateSample(ctx, req); err != nil {
			return err
		}
		return lifecycle.Record(ctx, repo, models.EntitySample, req.ID, "", string(req.Status), req.BuyerID, "", now)
	})
}

// Advance продвигает запрос образца через Authority.
func (s *Service) Advance(ctx context.Context, id string, to models.SampleStatus, trackingNumber, actor string) (*models.SampleRequest, error) {
	return s.auth.AdvanceSample(ctx, id, to, trackingNumber, actor)
}

func (s *Service) List(ctx context.Context, f db.SampleFilter) ([]models.SampleRequest, error) {
	return s.store.ListSamples(ctx, f)
}

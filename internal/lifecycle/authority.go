package lifecycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"sourcing/db"
	"sourcing/internal/config"
	"sourcing/internal/matching"
	"sourcing/internal/orders"
	"sourcing/models"

	"github.com/shopspring/decimal"
)

// Authority - единственный источник изменений статусов. Каждая смена статуса
// записывается в журнал в той же транзакции.
type Authority struct {
	store       db.Store
	matcher     *matching.Engine
	materialize *orders.Materializer
	cfg         config.Config

	Now func() time.Time
}

func NewAuthority(store db.Store, cfg config.Config) *Authority {
	return &Authority{
		store:       store,
		matcher:     matching.NewEngine(store),
		materialize: orders.NewMaterializer(cfg),
		cfg:         cfg,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (a *Authority) Matcher() *matching.Engine { return a.matcher }

// Record добавляет запись в журнал статусов.
func Record(ctx context.Context, repo db.Repository, entityType, id, from, to, actor, note string, at time.Time) error {
	return repo.RecordStatusChange(ctx, &models.StatusChange{
		EntityType: entityType,
		EntityID:   id,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
		CreatedAt:  at,
	})
}

// validateRFQ проверяет поля RFQ, не выражаемые тегами.
func (a *Authority) validateRFQ(r *models.RFQ) error {
	if err := models.Validate(r); err != nil {
		return err
	}
	if !a.cfg.KnownCategory(r.Category) {
		return models.Invalid("category", "is not a known category")
	}
	if !r.TargetPrice.IsPositive() {
		return models.Invalid("targetPrice", "must be greater than 0")
	}
	if err := models.CheckScale("targetPrice", r.TargetPrice); err != nil {
		return err
	}
	if r.MaxPrice.Valid {
		if err := models.CheckScale("maxPrice", r.MaxPrice.Decimal); err != nil {
			return err
		}
	}
	if r.MaxPrice.Valid && r.MaxPrice.Decimal.LessThan(r.TargetPrice) {
		return models.Invalid("maxPrice", "must be greater than or equal to targetPrice")
	}
	return nil
}

// CreateRFQ сохраняет RFQ покупателя в статусе pending_approval.
func (a *Authority) CreateRFQ(ctx context.Context, r *models.RFQ) error {
	if err := a.validateRFQ(r); err != nil {
		return err
	}
	now := a.Now()
	r.ID = ""
	r.Status = models.RFQPendingApproval
	r.CloseReason = ""
	r.MatchedSuppliers = []string{}
	r.QuotationsCount = 0
	r.CreatedAt = now
	r.UpdatedAt = now
	r.ExpiresAt = now.AddDate(0, 0, a.cfg.RFQAutoExpireDays)

	return a.store.Atomic(ctx, func(repo db.Repository) error {
		buyer, err := repo.GetUser(ctx, r.BuyerID)
		if err != nil {
			return err
		}
		if buyer.UserType != models.UserBuyer {
			return models.Invalid("buyerId", "must reference a buyer")
		}
		if err := repo.CreateRFQ(ctx, r); err != nil {
			return err
		}
		return Record(ctx, repo, models.EntityRFQ, r.ID, "", string(r.Status), r.BuyerID, "", now)
	})
}

// EditRFQ меняет поля RFQ, пока он ожидает одобрения.
func (a *Authority) EditRFQ(ctx context.Context, id string, patch models.RFQPatch) (*models.RFQ, error) {
	var out *models.RFQ
	err := a.store.WithRFQLock(ctx, id, func(repo db.Repository) error {
		r, err := repo.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if r.Status != models.RFQPendingApproval {
			return models.StateError(models.EntityRFQ, id, string(r.Status), "only pending_approval can be edited")
		}
		patch.Apply(r)
		if err := a.validateRFQ(r); err != nil {
			return err
		}
		if err := repo.UpdateRFQ(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// ReviewRFQ - решение администратора: approved либо rejected.
func (a *Authority) ReviewRFQ(ctx context.Context, id string, to models.RFQStatus, actor string) (*models.RFQ, error) {
	if to != models.RFQApproved && to != models.RFQRejected {
		return nil, models.Invalid("status", "must be approved or rejected")
	}
	var out *models.RFQ
	err := a.store.WithRFQLock(ctx, id, func(repo db.Repository) error {
		r, err := repo.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckRFQ(id, r.Status, to); err != nil {
			return err
		}
		out, err = a.setRFQStatus(ctx, repo, r, to, actor, "")
		return err
	})
	return out, err
}

func (a *Authority) setRFQStatus(ctx context.Context, repo db.Repository, r *models.RFQ, to models.RFQStatus, actor, note string) (*models.RFQ, error) {
	from := r.Status
	r.Status = to
	if err := repo.UpdateRFQ(ctx, r); err != nil {
		return nil, err
	}
	if err := Record(ctx, repo, models.EntityRFQ, r.ID, string(from), string(to), actor, note, a.Now()); err != nil {
		return nil, err
	}
	return r, nil
}

// ConfirmMatches записывает подобранных поставщиков и переводит RFQ
// approved -> matched. Пустой список означает всех ранжированных.
func (a *Authority) ConfirmMatches(ctx context.Context, id string, supplierIDs []string, actor string) (*models.RFQ, error) {
	ranked, err := a.matcher.Match(ctx, id)
	if err != nil {
		return nil, err
	}
	eligible := make(map[string]bool, len(ranked))
	for _, m := range ranked {
		eligible[m.Supplier.ID] = true
	}

	var chosen []string
	if len(supplierIDs) == 0 {
		for _, m := range ranked {
			chosen = append(chosen, m.Supplier.ID)
		}
	} else {
		seen := make(map[string]bool, len(supplierIDs))
		for _, sid := range supplierIDs {
			if seen[sid] {
				continue
			}
			seen[sid] = true
			if !eligible[sid] {
				return nil, models.Invalid("supplierIds", fmt.Sprintf("supplier %s is not eligible for this rfq", sid))
			}
			chosen = append(chosen, sid)
		}
	}
	if len(chosen) == 0 {
		return nil, models.StateError(models.EntityRFQ, id, string(models.RFQApproved), "no eligible suppliers")
	}

	var out *models.RFQ
	err = a.store.WithRFQLock(ctx, id, func(repo db.Repository) error {
		r, err := repo.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if err := CheckRFQ(id, r.Status, models.RFQMatched); err != nil {
			return err
		}
		r.MatchedSuppliers = chosen
		out, err = a.setRFQStatus(ctx, repo, r, models.RFQMatched, actor,
			fmt.Sprintf("%d suppliers matched", len(chosen)))
		return err
	})
	return out, err
}

// ReviewQuotation - решение администратора. Одобрение сразу отправляет
// котировку покупателю и переводит RFQ matched -> quoted.
func (a *Authority) ReviewQuotation(ctx context.Context, id string, approve bool, notes, actor string) (*models.Quotation, error) {
	q, err := a.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}

	var out *models.Quotation
	err = a.store.WithRFQLock(ctx, q.RFQID, func(repo db.Repository) error {
		q, err := repo.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		r, err := repo.GetRFQ(ctx, q.RFQID)
		if err != nil {
			return err
		}
		now := a.Now()
		from := q.Status

		if !approve {
			if from != models.QuotationPendingReview {
				return &models.TransitionError{
					Entity: models.EntityQuotation, ID: id, From: string(from), To: string(models.QuotationRejected),
					Reason: "admin review applies to pending_review only",
				}
			}
			q.Status = models.QuotationRejected
			q.ReviewedAt = &now
			q.ReviewNotes = notes
			if err := repo.UpdateQuotation(ctx, q); err != nil {
				return err
			}
			if err := Record(ctx, repo, models.EntityQuotation, id, string(from), string(q.Status), actor, notes, now); err != nil {
				return err
			}
			if err := decrementCount(ctx, repo, r); err != nil {
				return err
			}
			out = q
			return nil
		}

		if err := CheckQuotation(id, from, models.QuotationApproved); err != nil {
			return err
		}
		if err := CheckQuotation(id, models.QuotationApproved, models.QuotationSentToBuyer); err != nil {
			return err
		}
		if r.Status != models.RFQMatched && r.Status != models.RFQQuoted {
			return models.StateError(models.EntityRFQ, r.ID, string(r.Status), "quotations can only be sent for matched or quoted")
		}
		if !now.Before(r.ExpiresAt) {
			return models.StateError(models.EntityRFQ, r.ID, string(r.Status), "expired")
		}
		q.Status = models.QuotationSentToBuyer
		q.ReviewedAt = &now
		q.ReviewNotes = notes
		if err := repo.UpdateQuotation(ctx, q); err != nil {
			return err
		}
		if err := Record(ctx, repo, models.EntityQuotation, id, string(from), string(models.QuotationApproved), actor, notes, now); err != nil {
			return err
		}
		if err := Record(ctx, repo, models.EntityQuotation, id, string(models.QuotationApproved), string(models.QuotationSentToBuyer), actor, "", now); err != nil {
			return err
		}
		if r.Status == models.RFQMatched {
			if _, err := a.setRFQStatus(ctx, repo, r, models.RFQQuoted, actor, "quotation sent to buyer"); err != nil {
				return err
			}
		}
		out = q
		return nil
	})
	return out, err
}

// decrementCount поддерживает quotations_count равным числу неотклоненных котировок.
func decrementCount(ctx context.Context, repo db.Repository, r *models.RFQ) error {
	if r.QuotationsCount == 0 {
		return nil
	}
	r.QuotationsCount--
	return repo.UpdateRFQ(ctx, r)
}

// AcceptQuotation принимает котировку, создает заказ и закрывает RFQ одной
// транзакцией под блокировкой RFQ. Повторный вызов для уже принятой
// котировки возвращает существующий заказ.
func (a *Authority) AcceptQuotation(ctx context.Context, id, actor string) (*models.Order, error) {
	q, err := a.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = a.store.WithRFQLock(ctx, q.RFQID, func(repo db.Repository) error {
		q, err := repo.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		if q.Status == models.QuotationAccepted {
			existing, err := repo.ListOrders(ctx, db.OrderFilter{QuotationID: id, Page: db.Page{Limit: 1}})
			if err != nil {
				return err
			}
			if len(existing) == 0 {
				return fmt.Errorf("quotation %s is accepted but has no order", id)
			}
			log.Printf("warning: quotation %s already accepted, returning order %s", id, existing[0].ID)
			order = &existing[0]
			return nil
		}
		if err := CheckQuotation(id, q.Status, models.QuotationAccepted); err != nil {
			return err
		}

		r, err := repo.GetRFQ(ctx, q.RFQID)
		if err != nil {
			return err
		}
		if err := CheckRFQClose(r.ID, r.Status, models.CloseReasonAccepted); err != nil {
			return err
		}
		now := a.Now()
		// до прохода sweeper RFQ может быть просрочен, но еще открыт
		if !now.Before(r.ExpiresAt) {
			return models.StateError(models.EntityRFQ, r.ID, string(r.Status), "expired")
		}
		accepted, err := repo.ListQuotations(ctx, db.QuotationFilter{
			RFQID: r.ID, Status: models.QuotationAccepted, Page: db.Page{Limit: 1},
		})
		if err != nil {
			return err
		}
		if len(accepted) > 0 {
			return &models.TransitionError{
				Entity: models.EntityQuotation, ID: id, From: string(q.Status), To: string(models.QuotationAccepted),
				Reason: "rfq " + r.ID + " already has accepted quotation " + accepted[0].ID,
			}
		}

		from := q.Status
		q.Status = models.QuotationAccepted
		if err := repo.UpdateQuotation(ctx, q); err != nil {
			return err
		}
		if err := Record(ctx, repo, models.EntityQuotation, id, string(from), string(q.Status), actor, "", now); err != nil {
			return err
		}

		o, created, err := a.materialize.Materialize(ctx, repo, q, r, now)
		if err != nil {
			return fmt.Errorf("materialize order: %w", err)
		}
		if created {
			if err := Record(ctx, repo, models.EntityOrder, o.ID, "", string(o.Status), actor, "quotation "+id, now); err != nil {
				return err
			}
		}

		r.CloseReason = models.CloseReasonAccepted
		if _, err := a.setRFQStatus(ctx, repo, r, models.RFQClosed, actor, "quotation "+id+" accepted"); err != nil {
			return err
		}
		order = o
		return nil
	})
	return order, err
}

// DeclineQuotation - отказ покупателя от отправленной котировки.
func (a *Authority) DeclineQuotation(ctx context.Context, id, notes, actor string) (*models.Quotation, error) {
	q, err := a.store.GetQuotation(ctx, id)
	if err != nil {
		return nil, err
	}

	var out *models.Quotation
	err = a.store.WithRFQLock(ctx, q.RFQID, func(repo db.Repository) error {
		q, err := repo.GetQuotation(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != models.QuotationSentToBuyer {
			return &models.TransitionError{
				Entity: models.EntityQuotation, ID: id, From: string(q.Status), To: string(models.QuotationRejected),
				Reason: "buyer can only decline a quotation sent to buyer",
			}
		}
		r, err := repo.GetRFQ(ctx, q.RFQID)
		if err != nil {
			return err
		}
		now := a.Now()
		q.Status = models.QuotationRejected
		if notes != "" {
			q.ReviewNotes = notes
		}
		if err := repo.UpdateQuotation(ctx, q); err != nil {
			return err
		}
		if err := Record(ctx, repo, models.EntityQuotation, id, string(models.QuotationSentToBuyer), string(q.Status), actor, notes, now); err != nil {
			return err
		}
		if err := decrementCount(ctx, repo, r); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// AdvanceOrder продвигает заказ по этапам поставки.
func (a *Authority) AdvanceOrder(ctx context.Context, id string, to models.OrderStatus, trackingNumber, actor string) (*models.Order, error) {
	var out *models.Order
	err := a.store.Atomic(ctx, func(repo db.Repository) error {
		o, err := repo.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		from := o.Status
		if err := CheckOrder(id, from, to); err != nil {
			return err
		}
		o.Status = to
		if trackingNumber != "" {
			o.TrackingNumber = trackingNumber
		}
		if to == models.OrderCompleted {
			// расчет завершен: остаток считается полученным
			o.PaymentReceived = o.OrderValue
			o.PaymentPending = decimal.Zero
		}
		if err := repo.UpdateOrder(ctx, o); err != nil {
			return err
		}
		out = o
		return Record(ctx, repo, models.EntityOrder, id, string(from), string(to), actor, trackingNumber, a.Now())
	})
	return out, err
}

// AdvanceSample продвигает запрос образца.
func (a *Authority) AdvanceSample(ctx context.Context, id string, to models.SampleStatus, trackingNumber, actor string) (*models.SampleRequest, error) {
	var out *models.SampleRequest
	err := a.store.Atomic(ctx, func(repo db.Repository) error {
		s, err := repo.GetSample(ctx, id)
		if err != nil {
			return err
		}
		from := s.Status
		if err := CheckSample(id, from, to); err != nil {
			return err
		}
		s.Status = to
		if trackingNumber != "" {
			s.TrackingNumber = trackingNumber
		}
		if err := repo.UpdateSample(ctx, s); err != nil {
			return err
		}
		out = s
		return Record(ctx, repo, models.EntitySample, id, string(from), string(to), actor, trackingNumber, a.Now())
	})
	return out, err
}

// SetUserVerification меняет статус верификации пользователя.
func (a *Authority) SetUserVerification(ctx context.Context, id string, to models.VerificationStatus, actor string) (*models.User, error) {
	var out *models.User
	err := a.store.Atomic(ctx, func(repo db.Repository) error {
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			return err
		}
		from := u.VerificationStatus
		if from == "" {
			from = models.VerificationPending
		}
		if err := checkVerification("user", id, from, to); err != nil {
			return err
		}
		u.VerificationStatus = to
		if err := repo.UpdateUser(ctx, u); err != nil {
			return err
		}
		out = u
		return Record(ctx, repo, "user", id, string(from), string(to), actor, "", a.Now())
	})
	return out, err
}

// SetSupplierVerification меняет статус верификации профиля поставщика.
func (a *Authority) SetSupplierVerification(ctx context.Context, id string, to models.VerificationStatus, actor string) (*models.Supplier, error) {
	var out *models.Supplier
	err := a.store.Atomic(ctx, func(repo db.Repository) error {
		s, err := repo.GetSupplier(ctx, id)
		if err != nil {
			return err
		}
		from := s.VerificationStatus
		if from == "" {
			from = models.VerificationPending
		}
		if err := checkVerification("supplier", id, from, to); err != nil {
			return err
		}
		s.VerificationStatus = to
		if err := repo.UpdateSupplier(ctx, s); err != nil {
			return err
		}
		out = s
		return Record(ctx, repo, "supplier", id, string(from), string(to), actor, "", a.Now())
	})
	return out, err
}

// ExpireRFQ закрывает RFQ с истекшим сроком. Повторный вызов и вызов для
// терминального или еще действующего RFQ ничего не меняют.
func (a *Authority) ExpireRFQ(ctx context.Context, id string, now time.Time) (bool, error) {
	expired := false
	err := a.store.WithRFQLock(ctx, id, func(repo db.Repository) error {
		r, err := repo.GetRFQ(ctx, id)
		if err != nil {
			return err
		}
		if RFQTerminal(r.Status) || now.Before(r.ExpiresAt) {
			return nil
		}
		if err := CheckRFQClose(id, r.Status, models.CloseReasonExpired); err != nil {
			return err
		}
		r.CloseReason = models.CloseReasonExpired
		if _, err := a.setRFQStatus(ctx, repo, r, models.RFQClosed, "system", "expired"); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// History возвращает журнал статусов сущности в хронологическом порядке.
func (a *Authority) History(ctx context.Context, entityType, id string) ([]models.StatusChange, error) {
	changes, err := a.store.ListStatusChanges(ctx, entityType, id)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(changes)-1; i < j; i, j = i+1, j-1 {
		changes[i], changes[j] = changes[j], changes[i]
	}
	return changes, nil
}

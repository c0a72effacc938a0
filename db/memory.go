package db

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sourcing/models"

	"github.com/lib/pq"
)

// MemStorage - хранилище в памяти процесса. Транзакции буферизуют записи и
// применяют их атомарно при коммите с проверкой версий; WithRFQLock
// сериализует транзакции по id RFQ.
type MemStorage struct {
	mu    sync.RWMutex
	seq   atomic.Int64
	now   func() time.Time
	locks *keyedMutex

	users      *table[models.User]
	suppliers  *table[models.Supplier]
	rfqs       *table[models.RFQ]
	quotations *table[models.Quotation]
	orders     *table[models.Order]
	samples    *table[models.SampleRequest]
	changes    *table[models.StatusChange]
}

var (
	_ Store      = (*MemStorage)(nil)
	_ Repository = (*memTx)(nil)
)

type MemOption func(*MemStorage)

// WithClock задает источник времени для created_at/updated_at.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStorage) { s.now = now }
}

func NewMemStorage(opts ...MemOption) *MemStorage {
	s := &MemStorage{
		now:   func() time.Time { return time.Now().UTC() },
		locks: newKeyedMutex(),
		users: newTable("user", func(u *models.User) fields {
			return fields{&u.ID, &u.Seq, &u.Version, &u.CreatedAt, &u.UpdatedAt}
		}, nil),
		suppliers: newTable("supplier", func(v *models.Supplier) fields {
			return fields{&v.ID, &v.Seq, &v.Version, &v.CreatedAt, &v.UpdatedAt}
		}, func(v *models.Supplier) {
			v.Categories = cloneStrings(v.Categories)
			v.Certifications = cloneStrings(v.Certifications)
		}),
		rfqs: newTable("rfq", func(r *models.RFQ) fields {
			return fields{&r.ID, &r.Seq, &r.Version, &r.CreatedAt, &r.UpdatedAt}
		}, func(r *models.RFQ) {
			r.MatchedSuppliers = cloneStrings(r.MatchedSuppliers)
		}),
		quotations: newTable("quotation", func(q *models.Quotation) fields {
			return fields{&q.ID, &q.Seq, &q.Version, &q.CreatedAt, &q.UpdatedAt}
		}, func(q *models.Quotation) {
			if q.ReviewedAt != nil {
				t := *q.ReviewedAt
				q.ReviewedAt = &t
			}
		}),
		orders: newTable("order", func(o *models.Order) fields {
			return fields{&o.ID, &o.Seq, &o.Version, &o.CreatedAt, &o.UpdatedAt}
		}, nil),
		samples: newTable("sample request", func(v *models.SampleRequest) fields {
			return fields{&v.ID, &v.Seq, &v.Version, &v.CreatedAt, &v.UpdatedAt}
		}, nil),
		changes: newTable("status change", func(c *models.StatusChange) fields {
			return fields{&c.ID, &c.Seq, new(int), &c.CreatedAt, nil}
		}, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cloneStrings(in pq.StringArray) pq.StringArray {
	if in == nil {
		return nil
	}
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}

func (s *MemStorage) begin() *memTx {
	return &memTx{
		s:          s,
		users:      newOverlay(s, s.users),
		suppliers:  newOverlay(s, s.suppliers),
		rfqs:       newOverlay(s, s.rfqs),
		quotations: newOverlay(s, s.quotations),
		orders:     newOverlay(s, s.orders),
		samples:    newOverlay(s, s.samples),
		changes:    newOverlay(s, s.changes),
	}
}

func (s *MemStorage) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, verify := range []func() error{
		tx.users.verify, tx.suppliers.verify, tx.rfqs.verify, tx.quotations.verify,
		tx.orders.verify, tx.samples.verify, tx.changes.verify,
	} {
		if err := verify(); err != nil {
			return err
		}
	}
	for _, check := range tx.checks {
		if err := check(); err != nil {
			return err
		}
	}
	tx.users.apply()
	tx.suppliers.apply()
	tx.rfqs.apply()
	tx.quotations.apply()
	tx.orders.apply()
	tx.samples.apply()
	tx.changes.apply()
	return nil
}

func (s *MemStorage) Atomic(ctx context.Context, fn func(repo Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := s.begin()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *MemStorage) WithRFQLock(ctx context.Context, rfqID string, fn func(repo Repository) error) error {
	unlock := s.locks.Lock(rfqID)
	defer unlock()
	return s.Atomic(ctx, func(repo Repository) error {
		if _, err := repo.GetRFQ(ctx, rfqID); err != nil {
			return err
		}
		return fn(repo)
	})
}

// Операции вне транзакции выполняются как отдельная транзакция.

func (s *MemStorage) CreateUser(ctx context.Context, u *models.User) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateUser(ctx, u) })
}
func (s *MemStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.begin().GetUser(ctx, id)
}
func (s *MemStorage) UpdateUser(ctx context.Context, u *models.User) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateUser(ctx, u) })
}
func (s *MemStorage) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	return s.begin().ListUsers(ctx, f)
}

func (s *MemStorage) CreateSupplier(ctx context.Context, v *models.Supplier) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateSupplier(ctx, v) })
}
func (s *MemStorage) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	return s.begin().GetSupplier(ctx, id)
}
func (s *MemStorage) UpdateSupplier(ctx context.Context, v *models.Supplier) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateSupplier(ctx, v) })
}
func (s *MemStorage) ListSuppliers(ctx context.Context, f SupplierFilter) ([]models.Supplier, error) {
	return s.begin().ListSuppliers(ctx, f)
}

func (s *MemStorage) CreateRFQ(ctx context.Context, v *models.RFQ) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateRFQ(ctx, v) })
}
func (s *MemStorage) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	return s.begin().GetRFQ(ctx, id)
}
func (s *MemStorage) UpdateRFQ(ctx context.Context, v *models.RFQ) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateRFQ(ctx, v) })
}
func (s *MemStorage) ListRFQs(ctx context.Context, f RFQFilter) ([]models.RFQ, error) {
	return s.begin().ListRFQs(ctx, f)
}

func (s *MemStorage) CreateQuotation(ctx context.Context, v *models.Quotation) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateQuotation(ctx, v) })
}
func (s *MemStorage) GetQuotation(ctx context.Context, id string) (*models.Quotation, error) {
	return s.begin().GetQuotation(ctx, id)
}
func (s *MemStorage) UpdateQuotation(ctx context.Context, v *models.Quotation) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateQuotation(ctx, v) })
}
func (s *MemStorage) ListQuotations(ctx context.Context, f QuotationFilter) ([]models.Quotation, error) {
	return s.begin().ListQuotations(ctx, f)
}

func (s *MemStorage) CreateOrder(ctx context.Context, v *models.Order) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateOrder(ctx, v) })
}
func (s *MemStorage) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.begin().GetOrder(ctx, id)
}
func (s *MemStorage) UpdateOrder(ctx context.Context, v *models.Order) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateOrder(ctx, v) })
}
func (s *MemStorage) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	return s.begin().ListOrders(ctx, f)
}

func (s *MemStorage) CreateSample(ctx context.Context, v *models.SampleRequest) error {
	return s.Atomic(ctx, func(r Repository) error { return r.CreateSample(ctx, v) })
}
func (s *MemStorage) GetSample(ctx context.Context, id string) (*models.SampleRequest, error) {
	return s.begin().GetSample(ctx, id)
}
func (s *MemStorage) UpdateSample(ctx context.Context, v *models.SampleRequest) error {
	return s.Atomic(ctx, func(r Repository) error { return r.UpdateSample(ctx, v) })
}
func (s *MemStorage) ListSamples(ctx context.Context, f SampleFilter) ([]models.SampleRequest, error) {
	return s.begin().ListSamples(ctx, f)
}

func (s *MemStorage) RecordStatusChange(ctx context.Context, c *models.StatusChange) error {
	return s.Atomic(ctx, func(r Repository) error { return r.RecordStatusChange(ctx, c) })
}
func (s *MemStorage) ListStatusChanges(ctx context.Context, entityType, entityID string) ([]models.StatusChange, error) {
	return s.begin().ListStatusChanges(ctx, entityType, entityID)
}

// memTx - одна транзакция MemStorage.
type memTx struct {
	s          *MemStorage
	users      *overlay[models.User]
	suppliers  *overlay[models.Supplier]
	rfqs       *overlay[models.RFQ]
	quotations *overlay[models.Quotation]
	orders     *overlay[models.Order]
	samples    *overlay[models.SampleRequest]
	changes    *overlay[models.StatusChange]

	// проверки уникальности, выполняются под блокировкой записи при коммите
	checks []func() error
}

func (tx *memTx) CreateUser(_ context.Context, u *models.User) error {
	if err := tx.checkEmail(u); err != nil {
		return err
	}
	if err := tx.users.create(u); err != nil {
		return err
	}
	tx.addEmailCheck(u.ID, u.Email)
	return nil
}

func (tx *memTx) GetUser(_ context.Context, id string) (*models.User, error) {
	return tx.users.find(id)
}

func (tx *memTx) UpdateUser(_ context.Context, u *models.User) error {
	if err := tx.checkEmail(u); err != nil {
		return err
	}
	if err := tx.users.update(u); err != nil {
		return err
	}
	tx.addEmailCheck(u.ID, u.Email)
	return nil
}

func (tx *memTx) ListUsers(_ context.Context, f UserFilter) ([]models.User, error) {
	return tx.users.list(func(u *models.User) bool {
		return (f.UserType == "" || u.UserType == f.UserType) &&
			(f.Email == "" || u.Email == f.Email) &&
			(f.VerificationStatus == "" || u.VerificationStatus == f.VerificationStatus)
	}, f.Page), nil
}

func (tx *memTx) checkEmail(u *models.User) error {
	taken := tx.users.list(func(o *models.User) bool { return o.Email == u.Email && o.ID != u.ID }, Page{Limit: 1})
	if len(taken) > 0 {
		return models.Invalid("email", "is already registered")
	}
	return nil
}

func (tx *memTx) addEmailCheck(id, email string) {
	tx.checks = append(tx.checks, func() error {
		for otherID, o := range tx.s.users.rows {
			if o.Email == email && otherID != id {
				return models.Invalid("email", "is already registered")
			}
		}
		return nil
	})
}

func (tx *memTx) CreateSupplier(_ context.Context, v *models.Supplier) error {
	return tx.suppliers.create(v)
}

func (tx *memTx) GetSupplier(_ context.Context, id string) (*models.Supplier, error) {
	return tx.suppliers.find(id)
}

func (tx *memTx) UpdateSupplier(_ context.Context, v *models.Supplier) error {
	return tx.suppliers.update(v)
}

func (tx *memTx) ListSuppliers(_ context.Context, f SupplierFilter) ([]models.Supplier, error) {
	return tx.suppliers.list(func(v *models.Supplier) bool {
		return (f.Category == "" || v.HasCategory(f.Category)) &&
			(f.VerificationStatus == "" || v.VerificationStatus == f.VerificationStatus)
	}, f.Page), nil
}

func (tx *memTx) CreateRFQ(_ context.Context, v *models.RFQ) error {
	return tx.rfqs.create(v)
}

func (tx *memTx) GetRFQ(_ context.Context, id string) (*models.RFQ, error) {
	return tx.rfqs.find(id)
}

func (tx *memTx) UpdateRFQ(_ context.Context, v *models.RFQ) error {
	return tx.rfqs.update(v)
}

func (tx *memTx) ListRFQs(_ context.Context, f RFQFilter) ([]models.RFQ, error) {
	return tx.rfqs.list(func(v *models.RFQ) bool {
		return (f.BuyerID == "" || v.BuyerID == f.BuyerID) &&
			(f.Category == "" || v.Category == f.Category) &&
			(f.Status == "" || v.Status == f.Status)
	}, f.Page), nil
}

func (tx *memTx) CreateQuotation(_ context.Context, v *models.Quotation) error {
	if err := tx.quotations.create(v); err != nil {
		return err
	}
	tx.addAcceptedCheck(v)
	return nil
}

func (tx *memTx) GetQuotation(_ context.Context, id string) (*models.Quotation, error) {
	return tx.quotations.find(id)
}

func (tx *memTx) UpdateQuotation(_ context.Context, v *models.Quotation) error {
	if v.Status == models.QuotationAccepted {
		accepted := tx.quotations.list(func(o *models.Quotation) bool {
			return o.RFQID == v.RFQID && o.ID != v.ID && o.Status == models.QuotationAccepted
		}, Page{Limit: 1})
		if len(accepted) > 0 {
			return fmt.Errorf("%w: rfq %s already has accepted quotation %s", models.ErrConflict, v.RFQID, accepted[0].ID)
		}
	}
	if err := tx.quotations.update(v); err != nil {
		return err
	}
	tx.addAcceptedCheck(v)
	return nil
}

// addAcceptedCheck - не более одной принятой котировки на RFQ.
func (tx *memTx) addAcceptedCheck(v *models.Quotation) {
	if v.Status != models.QuotationAccepted {
		return
	}
	id, rfqID := v.ID, v.RFQID
	tx.checks = append(tx.checks, func() error {
		for otherID, o := range tx.s.quotations.rows {
			if otherID != id && o.RFQID == rfqID && o.Status == models.QuotationAccepted {
				return fmt.Errorf("%w: rfq %s already has accepted quotation %s", models.ErrConflict, rfqID, otherID)
			}
		}
		return nil
	})
}

func (tx *memTx) ListQuotations(_ context.Context, f QuotationFilter) ([]models.Quotation, error) {
	return tx.quotations.list(func(v *models.Quotation) bool {
		return (f.RFQID == "" || v.RFQID == f.RFQID) &&
			(f.SupplierID == "" || v.SupplierID == f.SupplierID) &&
			(f.Status == "" || v.Status == f.Status)
	}, f.Page), nil
}

func (tx *memTx) CreateOrder(_ context.Context, v *models.Order) error {
	existing := tx.orders.list(func(o *models.Order) bool { return o.QuotationID == v.QuotationID }, Page{Limit: 1})
	if len(existing) > 0 {
		return fmt.Errorf("%w: quotation %s already has order %s", models.ErrDuplicateOrder, v.QuotationID, existing[0].ID)
	}
	if err := tx.orders.create(v); err != nil {
		return err
	}
	id, quotationID := v.ID, v.QuotationID
	tx.checks = append(tx.checks, func() error {
		for otherID, o := range tx.s.orders.rows {
			if otherID != id && o.QuotationID == quotationID {
				return fmt.Errorf("%w: quotation %s already has order %s", models.ErrDuplicateOrder, quotationID, otherID)
			}
		}
		return nil
	})
	return nil
}

func (tx *memTx) GetOrder(_ context.Context, id string) (*models.Order, error) {
	return tx.orders.find(id)
}

func (tx *memTx) UpdateOrder(_ context.Context, v *models.Order) error {
	return tx.orders.update(v)
}

func (tx *memTx) ListOrders(_ context.Context, f OrderFilter) ([]models.Order, error) {
	return tx.orders.list(func(v *models.Order) bool {
		return (f.RFQID == "" || v.RFQID == f.RFQID) &&
			(f.QuotationID == "" || v.QuotationID == f.QuotationID) &&
			(f.BuyerID == "" || v.BuyerID == f.BuyerID) &&
			(f.SupplierID == "" || v.SupplierID == f.SupplierID) &&
			(f.Status == "" || v.Status == f.Status)
	}, f.Page), nil
}

func (tx *memTx) CreateSample(_ context.Context, v *models.SampleRequest) error {
	return tx.samples.create(v)
}

func (tx *memTx) GetSample(_ context.Context, id string) (*models.SampleRequest, error) {
	return tx.samples.find(id)
}

func (tx *memTx) UpdateSample(_ context.Context, v *models.SampleRequest) error {
	return tx.samples.update(v)
}

func (tx *memTx) ListSamples(_ context.Context, f SampleFilter) ([]models.SampleRequest, error) {
	return tx.samples.list(func(v *models.SampleRequest) bool {
		return (f.QuotationID == "" || v.QuotationID == f.QuotationID) &&
			(f.BuyerID == "" || v.BuyerID == f.BuyerID) &&
			(f.SupplierID == "" || v.SupplierID == f.SupplierID) &&
			(f.Status == "" || v.Status == f.Status)
	}, f.Page), nil
}

func (tx *memTx) RecordStatusChange(_ context.Context, c *models.StatusChange) error {
	return tx.changes.create(c)
}

func (tx *memTx) ListStatusChanges(_ context.Context, entityType, entityID string) ([]models.StatusChange, error) {
	return tx.changes.list(func(c *models.StatusChange) bool {
		return c.EntityType == entityType && c.EntityID == entityID
	}, Page{}), nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sourcing/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

// Storage - Postgres-реализация Store поверх sqlx.
type Storage struct {
	*pgRepo
	db *sqlx.DB
}

var _ Store = (*Storage)(nil)

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		pgRepo: &pgRepo{q: db, now: defaultNow, retry: true},
		db:     db,
	}
}

func defaultNow() time.Time { return time.Now().UTC() }

func (s *Storage) Atomic(ctx context.Context, fn func(repo Repository) error) error {
	return s.inTx(ctx, "", fn)
}

// WithRFQLock держит SELECT ... FOR UPDATE на строке RFQ до конца транзакции.
func (s *Storage) WithRFQLock(ctx context.Context, rfqID string, fn func(repo Repository) error) error {
	return s.inTx(ctx, rfqID, fn)
}

func (s *Storage) inTx(ctx context.Context, rfqID string, fn func(repo Repository) error) error {
	return withRetry(ctx, func(ctx context.Context) (err error) {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return retryable(err)
		}
		defer func() {
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
					err = multierr.Append(err, rbErr)
				}
			}
		}()

		if rfqID != "" {
			var id string
			err = tx.GetContext(ctx, &id, `SELECT id FROM rfqs WHERE id = $1 FOR UPDATE`, rfqID)
			if errors.Is(err, sql.ErrNoRows) {
				return models.NotFound("rfq", rfqID)
			}
			if err != nil {
				return retryable(err)
			}
		}

		if err = fn(&pgRepo{q: tx, now: s.now}); err != nil {
			return retryable(err)
		}
		return retryable(tx.Commit())
	})
}

// pgRepo выполняет запросы через *sqlx.DB либо *sqlx.Tx.
type pgRepo struct {
	q     sqlx.ExtContext
	now   func() time.Time
	retry bool
}

func (r *pgRepo) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !r.retry {
		return fn(ctx)
	}
	return withRetry(ctx, func(ctx context.Context) error { return retryable(fn(ctx)) })
}

var (
	userColumns = []string{"id", "email", "name", "company", "country", "phone", "user_type",
		"profile_completed", "verification_status", "version", "created_at", "updated_at"}
	supplierColumns = []string{"id", "company_name", "country", "categories", "certifications",
		"years_in_business", "verification_status", "version", "created_at", "updated_at"}
	rfqColumns = []string{"id", "buyer_id", "title", "category", "description", "quantity", "unit",
		"target_price", "max_price", "delivery_timeline", "shipping_terms", "status", "close_reason",
		"matched_suppliers", "quotations_count", "expires_at", "version", "created_at", "updated_at"}
	quotationColumns = []string{"id", "rfq_id", "supplier_id", "quoted_price", "moq", "lead_time",
		"payment_terms", "shipping_terms", "validity_days", "quality_guarantee", "sample_available",
		"notes", "status", "submitted_at", "reviewed_at", "review_notes", "total_value", "version",
		"created_at", "updated_at"}
	orderColumns = []string{"id", "rfq_id", "quotation_id", "buyer_id", "supplier_id", "order_value",
		"quantity", "unit_price", "payment_terms", "delivery_terms", "status", "expected_delivery",
		"payment_received", "payment_pending", "tracking_number", "version", "created_at", "updated_at"}
	sampleColumns = []string{"id", "quotation_id", "rfq_id", "buyer_id", "supplier_id", "quantity",
		"notes", "status", "tracking_number", "version", "created_at", "updated_at"}
	statusChangeColumns = []string{"id", "entity_type", "entity_id", "from_status", "to_status",
		"actor", "note", "created_at"}
)

// Неизменяемые после создания колонки не попадают в UPDATE.
var immutable = map[string]bool{
	"id": true, "version": true, "created_at": true, "buyer_id": true, "rfq_id": true,
	"supplier_id": true, "quotation_id": true, "user_type": true, "submitted_at": true,
}

func insertSQL(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s) RETURNING seq",
		table, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

func updateSQL(table string, cols []string) string {
	var set []string
	for _, c := range cols {
		if !immutable[c] {
			set = append(set, fmt.Sprintf("%s = :%s", c, c))
		}
	}
	set = append(set, "version = version + 1")
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id AND version = :version",
		table, strings.Join(set, ", "))
}

// stamp заполняет служебные поля новой записи.
func (r *pgRepo) stamp(id *string, version *int, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	*version = 1
	if created.IsZero() {
		*created = r.now()
	}
	if updated != nil && updated.IsZero() {
		*updated = *created
	}
}

func (r *pgRepo) insert(ctx context.Context, table string, cols []string, arg interface{}, seq *int64) error {
	return r.do(ctx, func(ctx context.Context) error {
		query, args, err := sqlx.Named(insertSQL(table, cols), arg)
		if err != nil {
			return err
		}
		err = r.q.QueryRowxContext(ctx, r.q.Rebind(query), args...).Scan(seq)
		return mapError(err)
	})
}

// update - compare-and-swap по версии.
func (r *pgRepo) update(ctx context.Context, entity, table string, cols []string, arg interface{}, id string, version *int, updated *time.Time) error {
	prev := *updated
	*updated = r.now()
	err := r.do(ctx, func(ctx context.Context) error {
		query, args, err := sqlx.Named(updateSQL(table, cols), arg)
		if err != nil {
			return err
		}
		res, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...)
		if err != nil {
			return mapError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
		var current int
		err = sqlx.GetContext(ctx, r.q, &current, fmt.Sprintf("SELECT version FROM %s WHERE id = $1", table), id)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound(entity, id)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s %s is at version %d, update based on %d",
			models.ErrConflict, entity, id, current, *version)
	})
	if err != nil {
		*updated = prev
		return err
	}
	*version++
	return nil
}

func (r *pgRepo) get(ctx context.Context, entity, table, id string, dest interface{}) error {
	return r.do(ctx, func(ctx context.Context) error {
		err := sqlx.GetContext(ctx, r.q, dest, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table), id)
		if errors.Is(err, sql.ErrNoRows) {
			return models.NotFound(entity, id)
		}
		return err
	})
}

func (r *pgRepo) list(ctx context.Context, table string, w *where, page Page, dest interface{}) error {
	query, args := w.query(table, page)
	return r.do(ctx, func(ctx context.Context) error {
		return sqlx.SelectContext(ctx, r.q, dest, query, args...)
	})
}

// where собирает фильтр по равенству, пустые значения пропускаются.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) eq(col, v string) *where {
	if v != "" {
		w.args = append(w.args, v)
		w.clauses = append(w.clauses, fmt.Sprintf("%s = $%d", col, len(w.args)))
	}
	return w
}

func (w *where) contains(col, v string) *where {
	if v != "" {
		w.args = append(w.args, v)
		w.clauses = append(w.clauses, fmt.Sprintf("$%d = ANY(%s)", len(w.args), col))
	}
	return w
}

func (w *where) query(table string, page Page) (string, []interface{}) {
	query := "SELECT * FROM " + table
	if len(w.clauses) > 0 {
		query += " WHERE " + strings.Join(w.clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if page.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", page.Offset)
	}
	return query, w.args
}

// mapError переводит нарушения уникальности в ошибки предметной области.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return err
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return models.Invalid("email", "is already registered")
	case "orders_quotation_id_key":
		return fmt.Errorf("%w: %s", models.ErrDuplicateOrder, pqErr.Detail)
	default:
		return fmt.Errorf("%w: %s (%s)", models.ErrConflict, pqErr.Detail, pqErr.Constraint)
	}
}

// User

func (r *pgRepo) CreateUser(ctx context.Context, u *models.User) error {
	r.stamp(&u.ID, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	return r.insert(ctx, "users", userColumns, u, &u.Seq)
}

func (r *pgRepo) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	if err := r.get(ctx, "user", "users", id, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *pgRepo) UpdateUser(ctx context.Context, u *models.User) error {
	return r.update(ctx, "user", "users", userColumns, u, u.ID, &u.Version, &u.UpdatedAt)
}

func (r *pgRepo) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	w := (&where{}).eq("user_type", string(f.UserType)).eq("email", f.Email).
		eq("verification_status", string(f.VerificationStatus))
	users := []models.User{}
	return users, r.list(ctx, "users", w, f.Page, &users)
}

// Supplier

func (r *pgRepo) CreateSupplier(ctx context.Context, s *models.Supplier) error {
	r.stamp(&s.ID, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	return r.insert(ctx, "suppliers", supplierColumns, s, &s.Seq)
}

func (r *pgRepo) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	s := &models.Supplier{}
	if err := r.get(ctx, "supplier", "suppliers", id, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *pgRepo) UpdateSupplier(ctx context.Context, s *models.Supplier) error {
	return r.update(ctx, "supplier", "suppliers", supplierColumns, s, s.ID, &s.Version, &s.UpdatedAt)
}

func (r *pgRepo) ListSuppliers(ctx context.Context, f SupplierFilter) ([]models.Supplier, error) {
	w := (&where{}).contains("categories", f.Category).
		eq("verification_status", string(f.VerificationStatus))
	suppliers := []models.Supplier{}
	return suppliers, r.list(ctx, "suppliers", w, f.Page, &suppliers)
}

// RFQ

func (r *pgRepo) CreateRFQ(ctx context.Context, v *models.RFQ) error {
	r.stamp(&v.ID, &v.Version, &v.CreatedAt, &v.UpdatedAt)
	if v.MatchedSuppliers == nil {
		v.MatchedSuppliers = pq.StringArray{}
	}
	return r.insert(ctx, "rfqs", rfqColumns, v, &v.Seq)
}

func (r *pgRepo) GetRFQ(ctx context.Context, id string) (*models.RFQ, error) {
	v := &models.RFQ{}
	if err := r.get(ctx, "rfq", "rfqs", id, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *pgRepo) UpdateRFQ(ctx context.Context, v *models.RFQ) error {
	if v.MatchedSuppliers == nil {
		v.MatchedSuppliers = pq.StringArray{}
	}
	return r.update(ctx, "rfq", "rfqs", rfqColumns, v, v.ID, &v.Version, &v.UpdatedAt)
}

func (r *pgRepo) ListRFQs(ctx context.Context, f RFQFilter) ([]models.RFQ, error) {
	w := (&where{}).eq("buyer_id", f.BuyerID).eq("category", f.Category).eq("status", string(f.Status))
	rfqs := []models.RFQ{}
	return rfqs, r.list(ctx, "rfqs", w, f.Page, &rfqs)
}

// Quotation

func (r *pgRepo) CreateQuotation(ctx context.Context, q *models.Quotation) error {
	r.stamp(&q.ID, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = q.CreatedAt
	}
	return r.insert(ctx, "quotations", quotationColumns, q, &q.Seq)
}

func (r *pgRepo) GetQuotation(ctx context.Context, id string) (*models.Quotation, error) {
	q := &models.Quotation{}
	if err := r.get(ctx, "quotation", "quotations", id, q); err != nil {
		return nil, err
	}
	return q, nil
}

func (r *pgRepo) UpdateQuotation(ctx context.Context, q *models.Quotation) error {
	return r.update(ctx, "quotation", "quotations", quotationColumns, q, q.ID, &q.Version, &q.UpdatedAt)
}

func (r *pgRepo) ListQuotations(ctx context.Context, f QuotationFilter) ([]models.Quotation, error) {
	w := (&where{}).eq("rfq_id", f.RFQID).eq("supplier_id", f.SupplierID).eq("status", string(f.Status))
	quotations := []models.Quotation{}
	return quotations, r.list(ctx, "quotations", w, f.Page, &quotations)
}

// Order

func (r *pgRepo) CreateOrder(ctx context.Context, o *models.Order) error {
	r.stamp(&o.ID, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	return r.insert(ctx, "orders", orderColumns, o, &o.Seq)
}

func (r *pgRepo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o := &models.Order{}
	if err := r.get(ctx, "order", "orders", id, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *pgRepo) UpdateOrder(ctx context.Context, o *models.Order) error {
	return r.update(ctx, "order", "orders", orderColumns, o, o.ID, &o.Version, &o.UpdatedAt)
}

func (r *pgRepo) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	w := (&where{}).eq("rfq_id", f.RFQID).eq("quotation_id", f.QuotationID).eq("buyer_id", f.BuyerID).
		eq("supplier_id", f.SupplierID).eq("status", string(f.Status))
	orders := []models.Order{}
	return orders, r.list(ctx, "orders", w, f.Page, &orders)
}

// SampleRequest

func (r *pgRepo) CreateSample(ctx context.Context, s *models.SampleRequest) error {
	r.stamp(&s.ID, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	return r.insert(ctx, "sample_requests", sampleColumns, s, &s.Seq)
}

func (r *pgRepo) GetSample(ctx context.Context, id string) (*models.SampleRequest, error) {
	s := &models.SampleRequest{}
	if err := r.get(ctx, "sample request", "sample_requests", id, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *pgRepo) UpdateSample(ctx context.Context, s *models.SampleRequest) error {
	return r.update(ctx, "sample request", "sample_requests", sampleColumns, s, s.ID, &s.Version, &s.UpdatedAt)
}

func (r *pgRepo) ListSamples(ctx context.Context, f SampleFilter) ([]models.SampleRequest, error) {
	w := (&where{}).eq("quotation_id", f.QuotationID).eq("buyer_id", f.BuyerID).
		eq("supplier_id", f.SupplierID).eq("status", string(f.Status))
	samples := []models.SampleRequest{}
	return samples, r.list(ctx, "sample_requests", w, f.Page, &samples)
}

// Журнал статусов

func (r *pgRepo) RecordStatusChange(ctx context.Context, c *models.StatusChange) error {
	var version int
	r.stamp(&c.ID, &version, &c.CreatedAt, nil)
	return r.insert(ctx, "status_changes", statusChangeColumns, c, &c.Seq)
}

func (r *pgRepo) ListStatusChanges(ctx context.Context, entityType, entityID string) ([]models.StatusChange, error) {
	w := (&where{}).eq("entity_type", entityType).eq("entity_id", entityID)
	changes := []models.StatusChange{}
	return changes, r.list(ctx, "status_changes", w, Page{}, &changes)
}

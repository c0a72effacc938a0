package db

import (
	"context"

	"sourcing/models"
)

// Repository - CRUD по всем коллекциям. Физического удаления нет:
// удаление моделируется сменой статуса.
type Repository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)

	CreateSupplier(ctx context.Context, s *models.Supplier) error
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	UpdateSupplier(ctx context.Context, s *models.Supplier) error
	ListSuppliers(ctx context.Context, f SupplierFilter) ([]models.Supplier, error)

	CreateRFQ(ctx context.Context, r *models.RFQ) error
	GetRFQ(ctx context.Context, id string) (*models.RFQ, error)
	UpdateRFQ(ctx context.Context, r *models.RFQ) error
	ListRFQs(ctx context.Context, f RFQFilter) ([]models.RFQ, error)

	CreateQuotation(ctx context.Context, q *models.Quotation) error
	GetQuotation(ctx context.Context, id string) (*models.Quotation, error)
	UpdateQuotation(ctx context.Context, q *models.Quotation) error
	ListQuotations(ctx context.Context, f QuotationFilter) ([]models.Quotation, error)

	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)

	CreateSample(ctx context.Context, s *models.SampleRequest) error
	GetSample(ctx context.Context, id string) (*models.SampleRequest, error)
	UpdateSample(ctx context.Context, s *models.SampleRequest) error
	ListSamples(ctx context.Context, f SampleFilter) ([]models.SampleRequest, error)

	RecordStatusChange(ctx context.Context, c *models.StatusChange) error
	ListStatusChanges(ctx context.Context, entityType, entityID string) ([]models.StatusChange, error)
}

// Store добавляет к Repository транзакции.
//
// Atomic выполняет fn в одной транзакции: либо применяются все записи fn,
// либо ни одна. WithRFQLock дополнительно держит блокировку RFQ на время fn,
// так что все изменения, касающиеся одного RFQ, сериализуются.
type Store interface {
	Repository
	Atomic(ctx context.Context, fn func(repo Repository) error) error
	WithRFQLock(ctx context.Context, rfqID string, fn func(repo Repository) error) error
}

// Page - limit/offset, 0 означает без ограничения.
type Page struct {
	Limit  int
	Offset int
}

type UserFilter struct {
	UserType           models.UserType
	Email              string
	VerificationStatus models.VerificationStatus
	Page
}

type SupplierFilter struct {
	Category           string
	VerificationStatus models.VerificationStatus
	Page
}

type RFQFilter struct {
	BuyerID  string
	Category string
	Status   models.RFQStatus
	Page
}

type QuotationFilter struct {
	RFQID      string
	SupplierID string
	Status     models.QuotationStatus
	Page
}

type OrderFilter struct {
	RFQID       string
	QuotationID string
	BuyerID     string
	SupplierID  string
	Status      models.OrderStatus
	Page
}

type SampleFilter struct {
	QuotationID string
	BuyerID     string
	SupplierID  string
	Status      models.SampleStatus
	Page
}

package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type (
	UserType           string
	VerificationStatus string
	RFQStatus          string
	QuotationStatus    string
	OrderStatus        string
	SampleStatus       string
)

const (
	UserBuyer    UserType = "buyer"
	UserSupplier UserType = "supplier"
	UserAdmin    UserType = "admin"

	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"

	RFQPendingApproval RFQStatus = "pending_approval"
	RFQApproved        RFQStatus = "approved"
	RFQMatched         RFQStatus = "matched"
	RFQQuoted          RFQStatus = "quoted"
	RFQClosed          RFQStatus = "closed"
	RFQRejected        RFQStatus = "rejected"

	QuotationPendingReview QuotationStatus = "pending_review"
	QuotationApproved      QuotationStatus = "approved"
	QuotationRejected      QuotationStatus = "rejected"
	QuotationSentToBuyer   QuotationStatus = "sent_to_buyer"
	QuotationAccepted      QuotationStatus = "accepted"

	OrderConfirmed    OrderStatus = "confirmed"
	OrderInProduction OrderStatus = "in_production"
	OrderShipped      OrderStatus = "shipped"
	OrderDelivered    OrderStatus = "delivered"
	OrderCompleted    OrderStatus = "completed"
	OrderCancelled    OrderStatus = "cancelled"

	SampleRequested SampleStatus = "requested"
	SampleApproved  SampleStatus = "approved"
	SampleRejected  SampleStatus = "rejected"
	SampleShipped   SampleStatus = "shipped"
	SampleDelivered SampleStatus = "delivered"
)

// Причины закрытия RFQ
const (
	CloseReasonAccepted = "accepted"
	CloseReasonExpired  = "expired"
)

// Типы сущностей в журнале статусов
const (
	EntityRFQ       = "rfq"
	EntityQuotation = "quotation"
	EntityOrder     = "order"
	EntitySample    = "sample"
)

// Сущность Пользователя
type User struct {
	ID                 string             `db:"id" json:"id"`
	Seq                int64              `db:"seq" json:"-"`
	Email              string             `db:"email" json:"email" validate:"required,email,max=254"`
	Name               string             `db:"name" json:"name" validate:"required,max=100"`
	Company            string             `db:"company" json:"company" validate:"max=200"`
	Country            string             `db:"country" json:"country" validate:"max=100"`
	Phone              string             `db:"phone" json:"phone,omitempty" validate:"max=40"`
	UserType           UserType           `db:"user_type" json:"userType" validate:"required,oneof=buyer supplier admin"`
	ProfileCompleted   bool               `db:"profile_completed" json:"profileCompleted"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verificationStatus" validate:"omitempty,oneof=pending verified rejected"`
	Version            int                `db:"version" json:"version"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// Профиль поставщика. ID совпадает с ID пользователя-поставщика.
type Supplier struct {
	ID                 string             `db:"id" json:"id" validate:"required"`
	Seq                int64              `db:"seq" json:"-"`
	CompanyName        string             `db:"company_name" json:"companyName" validate:"required,max=200"`
	Country            string             `db:"country" json:"country" validate:"max=100"`
	Categories         pq.StringArray     `db:"categories" json:"categories" validate:"required,min=1,dive,required"`
	Certifications     pq.StringArray     `db:"certifications" json:"certifications" validate:"dive,required"`
	YearsInBusiness    int                `db:"years_in_business" json:"yearsInBusiness" validate:"gte=0,lte=500"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verificationStatus" validate:"omitempty,oneof=pending verified rejected"`
	Version            int                `db:"version" json:"version"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// HasCategory сообщает, обслуживает ли поставщик категорию.
func (s *Supplier) HasCategory(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Сущность запроса котировок
type RFQ struct {
	ID               string              `db:"id" json:"id"`
	Seq              int64               `db:"seq" json:"-"`
	BuyerID          string              `db:"buyer_id" json:"buyerId" validate:"required"`
	Title            string              `db:"title" json:"title" validate:"required,max=200"`
	Category         string              `db:"category" json:"category" validate:"required,max=100"`
	Description      string              `db:"description" json:"description" validate:"max=2000"`
	Quantity         int                 `db:"quantity" json:"quantity" validate:"gt=0"`
	Unit             string              `db:"unit" json:"unit" validate:"required,max=30"`
	TargetPrice      decimal.Decimal     `db:"target_price" json:"targetPrice"`
	MaxPrice         decimal.NullDecimal `db:"max_price" json:"maxPrice"`
	DeliveryTimeline string              `db:"delivery_timeline" json:"deliveryTimeline" validate:"max=100"`
	ShippingTerms    string              `db:"shipping_terms" json:"shippingTerms" validate:"max=100"`
	Status           RFQStatus           `db:"status" json:"status"`
	CloseReason      string              `db:"close_reason" json:"closeReason,omitempty"`
	MatchedSuppliers pq.StringArray      `db:"matched_suppliers" json:"matchedSuppliers"`
	QuotationsCount  int                 `db:"quotations_count" json:"quotationsCount"`
	ExpiresAt        time.Time           `db:"expires_at" json:"expiresAt"`
	Version          int                 `db:"version" json:"version"`
	CreatedAt        time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updatedAt"`
}

// IsMatchedSupplier сообщает, входит ли поставщик в подобранных.
func (r *RFQ) IsMatchedSupplier(supplierID string) bool {
	for _, id := range r.MatchedSuppliers {
		if id == supplierID {
			return true
		}
	}
	return false
}

// Сущность Котировки
type Quotation struct {
	ID               string          `db:"id" json:"id"`
	Seq              int64           `db:"seq" json:"-"`
	RFQID            string          `db:"rfq_id" json:"rfqId" validate:"required"`
	SupplierID       string          `db:"supplier_id" json:"supplierId" validate:"required"`
	QuotedPrice      decimal.Decimal `db:"quoted_price" json:"quotedPrice"`
	MOQ              int             `db:"moq" json:"moq"`
	LeadTime         string          `db:"lead_time" json:"leadTime" validate:"max=100"`
	PaymentTerms     string          `db:"payment_terms" json:"paymentTerms" validate:"max=200"`
	ShippingTerms    string          `db:"shipping_terms" json:"shippingTerms" validate:"max=100"`
	ValidityDays     int             `db:"validity_days" json:"validityDays"`
	QualityGuarantee bool            `db:"quality_guarantee" json:"qualityGuarantee"`
	SampleAvailable  bool            `db:"sample_available" json:"sampleAvailable"`
	Notes            string          `db:"notes" json:"notes" validate:"max=2000"`
	Status           QuotationStatus `db:"status" json:"status"`
	SubmittedAt      time.Time       `db:"submitted_at" json:"submittedAt"`
	ReviewedAt       *time.Time      `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewNotes      string          `db:"review_notes" json:"reviewNotes,omitempty"`
	TotalValue       decimal.Decimal `db:"total_value" json:"totalValue"`
	Version          int             `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// RecomputeTotal пересчитывает total_value = quoted_price * moq.
func (q *Quotation) RecomputeTotal() {
	q.TotalValue = q.QuotedPrice.Mul(decimal.NewFromInt(int64(q.MOQ)))
}

// Сущность Заказа
type Order struct {
	ID               string          `db:"id" json:"id"`
	Seq              int64           `db:"seq" json:"-"`
	RFQID            string          `db:"rfq_id" json:"rfqId"`
	QuotationID      string          `db:"quotation_id" json:"quotationId"`
	BuyerID          string          `db:"buyer_id" json:"buyerId"`
	SupplierID       string          `db:"supplier_id" json:"supplierId"`
	OrderValue       decimal.Decimal `db:"order_value" json:"orderValue"`
	Quantity         int             `db:"quantity" json:"quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unitPrice"`
	PaymentTerms     string          `db:"payment_terms" json:"paymentTerms"`
	DeliveryTerms    string          `db:"delivery_terms" json:"deliveryTerms"`
	Status           OrderStatus     `db:"status" json:"status"`
	ExpectedDelivery time.Time       `db:"expected_delivery" json:"expectedDelivery"`
	PaymentReceived  decimal.Decimal `db:"payment_received" json:"paymentReceived"`
	PaymentPending   decimal.Decimal `db:"payment_pending" json:"paymentPending"`
	TrackingNumber   string          `db:"tracking_number" json:"trackingNumber,omitempty"`
	Version          int             `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Запрос образца по котировке
type SampleRequest struct {
	ID             string       `db:"id" json:"id"`
	Seq            int64        `db:"seq" json:"-"`
	QuotationID    string       `db:"quotation_id" json:"quotationId" validate:"required"`
	RFQID          string       `db:"rfq_id" json:"rfqId"`
	BuyerID        string       `db:"buyer_id" json:"buyerId" validate:"required"`
	SupplierID     string       `db:"supplier_id" json:"supplierId"`
	Quantity       int          `db:"quantity" json:"quantity" validate:"gt=0"`
	Notes          string       `db:"notes" json:"notes" validate:"max=1000"`
	Status         SampleStatus `db:"status" json:"status"`
	TrackingNumber string       `db:"tracking_number" json:"trackingNumber,omitempty"`
	Version        int          `db:"version" json:"version"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// Запись журнала смены статусов
type StatusChange struct {
	ID         string    `db:"id" json:"id"`
	Seq        int64     `db:"seq" json:"-"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	FromStatus string    `db:"from_status" json:"fromStatus"`
	ToStatus   string    `db:"to_status" json:"toStatus"`
	Actor      string    `db:"actor" json:"actor,omitempty"`
	Note       string    `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

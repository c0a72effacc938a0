package models

import "github.com/shopspring/decimal"

// Частичные обновления: nil означает "не менять".

type UserPatch struct {
	Name             *string `json:"name" validate:"omitempty,max=100"`
	Company          *string `json:"company" validate:"omitempty,max=200"`
	Country          *string `json:"country" validate:"omitempty,max=100"`
	Phone            *string `json:"phone" validate:"omitempty,max=40"`
	ProfileCompleted *bool   `json:"profileCompleted"`
}

func (p UserPatch) Apply(u *User) {
	setString(&u.Name, p.Name)
	setString(&u.Company, p.Company)
	setString(&u.Country, p.Country)
	setString(&u.Phone, p.Phone)
	if p.ProfileCompleted != nil {
		u.ProfileCompleted = *p.ProfileCompleted
	}
}

type SupplierPatch struct {
	CompanyName     *string   `json:"companyName" validate:"omitempty,max=200"`
	Country         *string   `json:"country" validate:"omitempty,max=100"`
	Categories      *[]string `json:"categories"`
	Certifications  *[]string `json:"certifications"`
	YearsInBusiness *int      `json:"yearsInBusiness"`
}

func (p SupplierPatch) Apply(s *Supplier) {
	setString(&s.CompanyName, p.CompanyName)
	setString(&s.Country, p.Country)
	if p.Categories != nil {
		s.Categories = append([]string(nil), *p.Categories...)
	}
	if p.Certifications != nil {
		s.Certifications = append([]string(nil), *p.Certifications...)
	}
	if p.YearsInBusiness != nil {
		s.YearsInBusiness = *p.YearsInBusiness
	}
}

type RFQPatch struct {
	Title            *string          `json:"title"`
	Category         *string          `json:"category"`
	Description      *string          `json:"description"`
	Quantity         *int             `json:"quantity"`
	Unit             *string          `json:"unit"`
	TargetPrice      *decimal.Decimal `json:"targetPrice"`
	MaxPrice         *decimal.Decimal `json:"maxPrice"`
	DeliveryTimeline *string          `json:"deliveryTimeline"`
	ShippingTerms    *string          `json:"shippingTerms"`
}

func (p RFQPatch) Apply(r *RFQ) {
	setString(&r.Title, p.Title)
	setString(&r.Category, p.Category)
	setString(&r.Description, p.Description)
	setString(&r.Unit, p.Unit)
	setString(&r.DeliveryTimeline, p.DeliveryTimeline)
	setString(&r.ShippingTerms, p.ShippingTerms)
	if p.Quantity != nil {
		r.Quantity = *p.Quantity
	}
	if p.TargetPrice != nil {
		r.TargetPrice = *p.TargetPrice
	}
	if p.MaxPrice != nil {
		r.MaxPrice = decimal.NewNullDecimal(*p.MaxPrice)
	}
}

type QuotationPatch struct {
	QuotedPrice      *decimal.Decimal `json:"quotedPrice"`
	MOQ              *int             `json:"moq"`
	LeadTime         *string          `json:"leadTime"`
	PaymentTerms     *string          `json:"paymentTerms"`
	ShippingTerms    *string          `json:"shippingTerms"`
	ValidityDays     *int             `json:"validityDays"`
	QualityGuarantee *bool            `json:"qualityGuarantee"`
	SampleAvailable  *bool            `json:"sampleAvailable"`
	Notes            *string          `json:"notes"`
}

// Apply изменяет котировку и пересчитывает total_value.
func (p QuotationPatch) Apply(q *Quotation) {
	if p.QuotedPrice != nil {
		q.QuotedPrice = *p.QuotedPrice
	}
	if p.MOQ != nil {
		q.MOQ = *p.MOQ
	}
	setString(&q.LeadTime, p.LeadTime)
	setString(&q.PaymentTerms, p.PaymentTerms)
	setString(&q.ShippingTerms, p.ShippingTerms)
	setString(&q.Notes, p.Notes)
	if p.ValidityDays != nil {
		q.ValidityDays = *p.ValidityDays
	}
	if p.QualityGuarantee != nil {
		q.QualityGuarantee = *p.QualityGuarantee
	}
	if p.SampleAvailable != nil {
		q.SampleAvailable = *p.SampleAvailable
	}
	q.RecomputeTotal()
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

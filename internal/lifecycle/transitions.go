package lifecycle

import (
	"sourcing/models"
)

// table - допустимые переходы статусов. Статус без исходящих переходов терминальный.
type table[S ~string] map[S][]S

func (t table[S]) allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (t table[S]) terminal(s S) bool {
	return len(t[s]) == 0
}

func check[S ~string](t table[S], entity, id string, from, to S) error {
	if t.allows(from, to) {
		return nil
	}
	reason := ""
	if t.terminal(from) {
		reason = string(from) + " is terminal"
	}
	return &models.TransitionError{Entity: entity, ID: id, From: string(from), To: string(to), Reason: reason}
}

// Закрытие RFQ по истечению срока или при принятии котировки задается
// отдельно от таблицы.
var rfqTransitions = table[models.RFQStatus]{
	models.RFQPendingApproval: {models.RFQApproved, models.RFQRejected},
	models.RFQApproved:        {models.RFQMatched},
	models.RFQMatched:         {models.RFQQuoted},
	models.RFQQuoted:          {models.RFQClosed},
}

var quotationTransitions = table[models.QuotationStatus]{
	models.QuotationPendingReview: {models.QuotationApproved, models.QuotationRejected},
	models.QuotationApproved:      {models.QuotationSentToBuyer},
	models.QuotationSentToBuyer:   {models.QuotationAccepted, models.QuotationRejected},
}

var orderTransitions = table[models.OrderStatus]{
	models.OrderConfirmed:    {models.OrderInProduction, models.OrderCancelled},
	models.OrderInProduction: {models.OrderShipped, models.OrderCancelled},
	models.OrderShipped:      {models.OrderDelivered, models.OrderCancelled},
	models.OrderDelivered:    {models.OrderCompleted},
}

var sampleTransitions = table[models.SampleStatus]{
	models.SampleRequested: {models.SampleApproved, models.SampleRejected},
	models.SampleApproved:  {models.SampleShipped},
	models.SampleShipped:   {models.SampleDelivered},
}

var verificationTransitions = table[models.VerificationStatus]{
	models.VerificationPending:  {models.VerificationVerified, models.VerificationRejected},
	models.VerificationVerified: {models.VerificationRejected},
	models.VerificationRejected: {models.VerificationVerified},
}

func CheckRFQ(id string, from, to models.RFQStatus) error {
	return check(rfqTransitions, models.EntityRFQ, id, from, to)
}

// CheckRFQClose проверяет закрытие RFQ с причиной accepted или expired.
func CheckRFQClose(id string, from models.RFQStatus, reason string) error {
	ok := false
	switch reason {
	case models.CloseReasonAccepted:
		ok = from == models.RFQMatched || from == models.RFQQuoted
	case models.CloseReasonExpired:
		ok = !RFQTerminal(from)
	}
	if ok {
		return nil
	}
	return &models.TransitionError{
		Entity: models.EntityRFQ, ID: id, From: string(from), To: string(models.RFQClosed),
		Reason: "close reason " + reason + " not allowed from " + string(from),
	}
}

func CheckQuotation(id string, from, to models.QuotationStatus) error {
	return check(quotationTransitions, models.EntityQuotation, id, from, to)
}

func CheckOrder(id string, from, to models.OrderStatus) error {
	return check(orderTransitions, models.EntityOrder, id, from, to)
}

func CheckSample(id string, from, to models.SampleStatus) error {
	return check(sampleTransitions, models.EntitySample, id, from, to)
}

func checkVerification(entity, id string, from, to models.VerificationStatus) error {
	return check(verificationTransitions, entity, id, from, to)
}

func RFQTerminal(s models.RFQStatus) bool { return rfqTransitions.terminal(s) }

func OrderTerminal(s models.OrderStatus) bool { return orderTransitions.terminal(s) }

// OpenRFQStatuses - статусы, из которых RFQ может истечь.
var OpenRFQStatuses = []models.RFQStatus{
	models.RFQPendingApproval, models.RFQApproved, models.RFQMatched, models.RFQQuoted,
}

// ParseRFQStatus и аналоги отклоняют неизвестные значения статуса.
func ParseRFQStatus(s string) (models.RFQStatus, error) {
	return parse(rfqTransitions, "status", s, models.RFQClosed, models.RFQRejected)
}

func ParseQuotationStatus(s string) (models.QuotationStatus, error) {
	return parse(quotationTransitions, "status", s, models.QuotationAccepted, models.QuotationRejected)
}

func ParseOrderStatus(s string) (models.OrderStatus, error) {
	return parse(orderTransitions, "status", s, models.OrderCompleted, models.OrderCancelled)
}

func ParseSampleStatus(s string) (models.SampleStatus, error) {
	return parse(sampleTransitions, "status", s, models.SampleRejected, models.SampleDelivered)
}

func ParseVerificationStatus(s string) (models.VerificationStatus, error) {
	return parse(verificationTransitions, "status", s)
}

func parse[S ~string](t table[S], field, raw string, terminals ...S) (S, error) {
	v := S(raw)
	if _, ok := t[v]; ok {
		return v, nil
	}
	for _, term := range terminals {
		if v == term {
			return v, nil
		}
	}
	return "", models.Invalid(field, "has unknown value "+raw)
}

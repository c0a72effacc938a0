package matching

import (
	"context"
	"fmt"
	"sort"

	"sourcing/db"
	"sourcing/models"
)

// Match - поставщик с рассчитанной оценкой.
type Match struct {
	Supplier models.Supplier `json:"supplier"`
	Score    int             `json:"matchScore"`
	Reasons  []string        `json:"reasons"`
}

type Engine struct {
	repo db.Repository
}

func NewEngine(repo db.Repository) *Engine {
	return &Engine{repo: repo}
}

// Match возвращает верифицированных поставщиков категории RFQ, отсортированных
// по оценке. RFQ не изменяется.
func (e *Engine) Match(ctx context.Context, rfqID string) ([]Match, error) {
	rfq, err := e.repo.GetRFQ(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status != models.RFQApproved && rfq.Status != models.RFQMatched {
		return nil, models.StateError(models.EntityRFQ, rfq.ID, string(rfq.Status),
			"matching requires approved or matched")
	}

	suppliers, err := e.repo.ListSuppliers(ctx, db.SupplierFilter{
		Category:           rfq.Category,
		VerificationStatus: models.VerificationVerified,
	})
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return Rank(suppliers, rfq.Category), nil
}

// Rank оценивает поставщиков категории: оценка по убыванию, затем id по возрастанию.
func Rank(suppliers []models.Supplier, category string) []Match {
	matches := make([]Match, 0, len(suppliers))
	for _, s := range suppliers {
		if s.VerificationStatus != models.VerificationVerified || !s.HasCategory(category) {
			continue
		}
		score, reasons := Score(&s)
		matches = append(matches, Match{Supplier: s, Score: score, Reasons: reasons})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Supplier.ID < matches[j].Supplier.ID
	})
	return matches
}

// Score - детерминированная оценка в диапазоне [0, 100]:
// стаж (до 20 лет, 2 балла за год), сертификаты (до 5, по 8 баллов)
// и специализация (20 делится на число категорий).
func Score(s *models.Supplier) (int, []string) {
	var reasons []string

	years := clamp(s.YearsInBusiness, 0, 20)
	score := years * 2
	reasons = append(reasons, fmt.Sprintf("%d years in business (+%d)", s.YearsInBusiness, years*2))

	certs := clamp(len(s.Certifications), 0, 5)
	score += certs * 8
	if certs > 0 {
		reasons = append(reasons, fmt.Sprintf("%d certifications (+%d)", len(s.Certifications), certs*8))
	}

	if n := len(s.Categories); n > 0 {
		specificity := 20 / n
		score += specificity
		reasons = append(reasons, fmt.Sprintf("%d categories served (+%d)", n, specificity))
	}
	return clamp(score, 0, 100), reasons
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

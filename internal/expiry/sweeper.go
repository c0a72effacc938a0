package expiry

import (
	"context"
	"fmt"
	"log"
	"time"

	"sourcing/db"
	"sourcing/internal/lifecycle"
	"sourcing/models"

	"go.uber.org/multierr"
)

const pageSize = 100

// Sweeper периодически закрывает RFQ с истекшим expires_at.
type Sweeper struct {
	repo     db.Repository
	auth     *lifecycle.Authority
	interval time.Duration
}

func NewSweeper(repo db.Repository, auth *lifecycle.Authority, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, auth: auth, interval: interval}
}

// Run выполняет проверку по тикеру до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Printf("Starting RFQ expiry sweeper, interval %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("RFQ expiry sweeper stopped")
			return nil
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
			}
			if n > 0 {
				log.Printf("expiry sweep closed %d rfqs", n)
			}
		}
	}
}

// SweepOnce закрывает все просроченные открытые RFQ и возвращает их число.
// Ошибки по отдельным RFQ не прерывают проход.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.auth.Now()
	var due []string
	for _, status := range lifecycle.OpenRFQStatuses {
		for offset := 0; ; offset += pageSize {
			page, err := s.repo.ListRFQs(ctx, db.RFQFilter{Status: status, Page: db.Page{Limit: pageSize, Offset: offset}})
			if err != nil {
				return 0, fmt.Errorf("list %s rfqs: %w", status, err)
			}
			for _, r := range page {
				if Due(&r, now) {
					due = append(due, r.ID)
				}
			}
			if len(page) < pageSize {
				break
			}
		}
	}

	var (
		closed int
		errs   error
	)
	for _, id := range due {
		expired, err := s.auth.ExpireRFQ(ctx, id, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire rfq %s: %w", id, err))
			continue
		}
		if expired {
			closed++
		}
	}
	return closed, errs
}

// Due сообщает, истек ли срок RFQ к моменту now.
func Due(r *models.RFQ, now time.Time) bool {
	return !lifecycle.RFQTerminal(r.Status) && !now.Before(r.ExpiresAt)
}

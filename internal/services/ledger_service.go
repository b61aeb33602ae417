package services

import (
	"context"
	"fmt"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
)

// LedgerService reads point balances and reviews
type LedgerService struct {
	gw *repository.Gateway
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(gw *repository.Gateway) *LedgerService {
	return &LedgerService{gw: gw}
}

// PointsSummary is a balance with one page of history
type PointsSummary struct {
	Balance int
	Entries []models.PointsLedgerEntry
	Total   int64
}

// Summary returns userID's balance and a page of ledger entries
func (s *LedgerService) Summary(ctx context.Context, userID uint64, page, pageSize int) (*PointsSummary, error) {
	var summary PointsSummary
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		balance, err := repos.Ledger.Balance(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to sum ledger: %w", err)
		}

		entries, total, err := repos.Ledger.ListByUser(ctx, userID, page, pageSize)
		if err != nil {
			return fmt.Errorf("failed to list ledger: %w", err)
		}

		summary = PointsSummary{Balance: balance, Entries: entries, Total: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Reviews lists the reviews a member received
func (s *LedgerService) Reviews(ctx context.Context, userID uint64) ([]models.Review, error) {
	var reviews []models.Review
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Users.FindByID(ctx, userID); err != nil {
			return notFound(err, ErrUserNotFound, "user")
		}

		var err error
		reviews, err = repos.Reviews.ListByReviewee(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list reviews: %w", err)
		}
		return nil
	})
	return reviews, err
}

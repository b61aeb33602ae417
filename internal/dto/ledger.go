package dto

import (
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
)

// LedgerEntryDTO represents one points movement
type LedgerEntryDTO struct {
	ID        uint64    `json:"id"`
	RequestID *uint64   `json:"request_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// PointsDTO is the caller's balance with a page of history
type PointsDTO struct {
	Balance    int                      `json:"balance"`
	Entries    []LedgerEntryDTO         `json:"entries"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ReviewDTO represents a review in API responses
type ReviewDTO struct {
	ID         uint64    `json:"id"`
	RequestID  uint64    `json:"request_id"`
	ReviewerID uint64    `json:"reviewer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToPointsDTO converts a balance and ledger page
func ToPointsDTO(balance int, entries []models.PointsLedgerEntry, params utils.PaginationParams, total int64) PointsDTO {
	items := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = LedgerEntryDTO{
			ID:        e.ID,
			RequestID: e.RequestID,
			Delta:     e.Delta,
			Reason:    e.Reason,
			CreatedAt: e.CreatedAt,
		}
	}

	return PointsDTO{
		Balance:    balance,
		Entries:    items,
		Pagination: params.Response(total),
	}
}

// ToReviewDTOs converts reviews
func ToReviewDTOs(reviews []models.Review) []ReviewDTO {
	items := make([]ReviewDTO, len(reviews))
	for i, r := range reviews {
		items[i] = ReviewDTO{
			ID:         r.ID,
			RequestID:  r.RequestID,
			ReviewerID: r.ReviewerID,
			Rating:     r.Rating,
			Comment:    r.Comment,
			CreatedAt:  r.CreatedAt,
		}
	}
	return items
}

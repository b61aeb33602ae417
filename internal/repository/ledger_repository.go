package repository

import (
	"context"

	"github.com/yukikurage/favor-exchange-api/internal/database"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
	"gorm.io/gorm"
)

// GormLedgerRepository is a GORM implementation of LedgerRepository.
// It has no update or delete path.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new LedgerRepository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append adds an entry
func (r *GormLedgerRepository) Append(ctx context.Context, entry *models.PointsLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Balance sums all deltas of a user
func (r *GormLedgerRepository) Balance(ctx context.Context, userID uint64) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsLedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(delta), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

// ListByUser lists entries newest first
func (r *GormLedgerRepository) ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]models.PointsLedgerEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PointsLedgerEntry{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.PointsLedgerEntry
	err := query.
		Scopes(database.Paginate(utils.NewPaginationParams(page, pageSize))).
		Order("created_at DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GormReviewRepository is a GORM implementation of ReviewRepository
type GormReviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &GormReviewRepository{db: db}
}

// Create adds a review
func (r *GormReviewRepository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

// ListByReviewee lists reviews received by a user newest first
func (r *GormReviewRepository) ListByReviewee(ctx context.Context, userID uint64) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.WithContext(ctx).
		Where("reviewee_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

package repository

import (
	"context"
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/database"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRequestRepository is a GORM implementation of RequestRepository
type GormRequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *gorm.DB) RequestRepository {
	return &GormRequestRepository{db: db}
}

// Create creates a new request
func (r *GormRequestRepository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(request).Error
}

// FindByID finds a request by ID with optional preloading
func (r *GormRequestRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Request, error) {
	var request models.Request
	query := r.db.WithContext(ctx)

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&request, id).Error; err != nil {
		return nil, err
	}

	return &request, nil
}

// FindForUpdate finds a request and takes a row lock where the dialect supports it
func (r *GormRequestRepository) FindForUpdate(ctx context.Context, id uint64) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&request, id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// List retrieves requests with filtering and pagination
func (r *GormRequestRepository) List(ctx context.Context, filter RequestFilter) ([]models.Request, int64, error) {
	var requests []models.Request

	query := r.db.WithContext(ctx).Model(&models.Request{})

	// Apply filters
	if filter.Status != nil {
		query = query.Where("requests.status = ?", *filter.Status)
	}
	if filter.Category != nil {
		query = query.Where("requests.category = ?", *filter.Category)
	}
	if filter.OwnerID != nil {
		query = query.Where("requests.owner_id = ?", *filter.OwnerID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Scopes(database.Paginate(utils.NewPaginationParams(filter.Page, filter.PageSize))).
		Order("requests.created_at DESC").
		Order("requests.id DESC").
		Preload("Owner.Profile").
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// TransitionStatus performs a compare-and-set on the status column
func (r *GormRequestRepository) TransitionStatus(ctx context.Context, id uint64, from []models.RequestStatus, to models.RequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListExpirable lists open requests whose time window ended before now
func (r *GormRequestRepository) ListExpirable(ctx context.Context, now time.Time) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("status = ? AND time_window_end IS NOT NULL AND time_window_end < ?", models.RequestStatusOpen, now).
		Order("id").
		Find(&requests).Error
	return requests, err
}

package repository

import (
	"context"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAssignmentRepository is a GORM implementation of AssignmentRepository
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new AssignmentRepository
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// Create creates a new assignment
func (r *GormAssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(assignment).Error
}

// FindByID finds an assignment by ID with optional preloading
func (r *GormAssignmentRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Assignment, error) {
	var assignment models.Assignment
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&assignment, id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindByRequestID finds the assignment of a request
func (r *GormAssignmentRepository) FindByRequestID(ctx context.Context, requestID uint64) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).Where("request_id = ?", requestID).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// Update saves an assignment
func (r *GormAssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(assignment).Error
}

// Delete permanently removes an assignment. Claim history is not kept.
func (r *GormAssignmentRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Assignment{}, id).Error
}

// ExistsActiveBetween reports whether an active assignment links the two users
func (r *GormAssignmentRepository) ExistsActiveBetween(ctx context.Context, userA, userB uint64) (bool, error) {
	if userA == 0 || userB == 0 || userA == userB {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Joins("JOIN requests ON requests.id = assignments.request_id").
		Where("assignments.status IN ?", models.ActiveAssignmentStatuses).
		Where("((assignments.performer_id = ? AND requests.owner_id = ?) OR (assignments.performer_id = ? AND requests.owner_id = ?))",
			userA, userB, userB, userA).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ActiveCounterparts lists the users linked to userID by an active assignment
func (r *GormAssignmentRepository) ActiveCounterparts(ctx context.Context, userID uint64) (map[uint64]struct{}, error) {
	counterparts := make(map[uint64]struct{})
	if userID == 0 {
		return counterparts, nil
	}

	active := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.Assignment{}).
			Joins("JOIN requests ON requests.id = assignments.request_id").
			Where("assignments.status IN ?", models.ActiveAssignmentStatuses)
	}

	var owners []uint64
	if err := active().Where("assignments.performer_id = ?", userID).Pluck("requests.owner_id", &owners).Error; err != nil {
		return nil, err
	}

	var performers []uint64
	if err := active().Where("requests.owner_id = ?", userID).Pluck("assignments.performer_id", &performers).Error; err != nil {
		return nil, err
	}

	for _, id := range append(owners, performers...) {
		if id != userID {
			counterparts[id] = struct{}{}
		}
	}
	return counterparts, nil
}

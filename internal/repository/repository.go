package repository

import (
	"context"
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// CreateWithProfile creates a user and its profile within a single transaction.
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error

	// FindByID finds a user by ID with the profile preloaded
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByEmail finds a user by email
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePassword replaces the password hash
	UpdatePassword(ctx context.Context, id uint64, passwordHash string) error

	// TouchLogin records a successful login
	TouchLogin(ctx context.Context, id uint64, at time.Time) error
}

// ProfileRepository defines the interface for profile data access
type ProfileRepository interface {
	// FindByUserID finds the profile of a user
	FindByUserID(ctx context.Context, userID uint64) (*models.Profile, error)

	// Update saves a profile
	Update(ctx context.Context, profile *models.Profile) error
}

// RequestRepository defines the interface for request data access
type RequestRepository interface {
	// Create creates a new request
	Create(ctx context.Context, request *models.Request) error

	// FindByID finds a request by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Request, error)

	// FindForUpdate finds a request and locks its row until the transaction ends
	FindForUpdate(ctx context.Context, id uint64) (*models.Request, error)

	// List retrieves requests with filtering and pagination
	List(ctx context.Context, filter RequestFilter) ([]models.Request, int64, error)

	// TransitionStatus moves a request to status only if its current status is
	// one of from. It reports whether the row was updated.
	TransitionStatus(ctx context.Context, id uint64, from []models.RequestStatus, to models.RequestStatus) (bool, error)

	// ListExpirable lists open requests whose time window ended before now
	ListExpirable(ctx context.Context, now time.Time) ([]models.Request, error)
}

// RequestFilter holds filtering options for listing requests
type RequestFilter struct {
	Status   *models.RequestStatus
	Category *models.Category
	OwnerID  *uint64
	Page     int
	PageSize int
}

// AssignmentRepository defines the interface for assignment data access
type AssignmentRepository interface {
	// Create creates a new assignment
	Create(ctx context.Context, assignment *models.Assignment) error

	// FindByID finds an assignment by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Assignment, error)

	// FindByRequestID finds the assignment of a request
	FindByRequestID(ctx context.Context, requestID uint64) (*models.Assignment, error)

	// Update saves an assignment
	Update(ctx context.Context, assignment *models.Assignment) error

	// Delete permanently removes an assignment
	Delete(ctx context.Context, id uint64) error

	// ExistsActiveBetween reports whether either user performs an active
	// assignment on a request owned by the other
	ExistsActiveBetween(ctx context.Context, userA, userB uint64) (bool, error)

	// ActiveCounterparts lists the users linked to userID by an active
	// assignment, in either direction
	ActiveCounterparts(ctx context.Context, userID uint64) (map[uint64]struct{}, error)
}

// LedgerRepository defines the interface for the append-only points ledger
type LedgerRepository interface {
	// Append adds an entry
	Append(ctx context.Context, entry *models.PointsLedgerEntry) error

	// Balance sums all deltas of a user
	Balance(ctx context.Context, userID uint64) (int, error)

	// ListByUser lists entries newest first
	ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]models.PointsLedgerEntry, int64, error)
}

// ReviewRepository defines the interface for the append-only reviews
type ReviewRepository interface {
	// Create adds a review
	Create(ctx context.Context, review *models.Review) error

	// ListByReviewee lists reviews received by a user newest first
	ListByReviewee(ctx context.Context, userID uint64) ([]models.Review, error)
}

// Repositories bundles every repository bound to one database handle, which
// may be a transaction.
type Repositories struct {
	Users       UserRepository
	Profiles    ProfileRepository
	Requests    RequestRepository
	Assignments AssignmentRepository
	Ledger      LedgerRepository
	Reviews     ReviewRepository
}

// NewRepositories binds all GORM repositories to db
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(db),
		Profiles:    NewProfileRepository(db),
		Requests:    NewRequestRepository(db),
		Assignments: NewAssignmentRepository(db),
		Ledger:      NewLedgerRepository(db),
		Reviews:     NewReviewRepository(db),
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/constants"
	"github.com/yukikurage/favor-exchange-api/internal/metrics"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/points"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/recurrence"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequestService handles posting, browsing and closing requests
type RequestService struct {
	gw     *repository.Gateway
	notes  notifier
	logger *zap.Logger
}

// NewRequestService creates a new RequestService
func NewRequestService(gw *repository.Gateway, dispatcher *notify.Dispatcher, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{
		gw:     gw,
		notes:  notifier{gw: gw, dispatcher: dispatcher, logger: logger},
		logger: logger,
	}
}

// CreateRequestInput represents input for posting a request
type CreateRequestInput struct {
	OwnerID            uint64
	Title              string
	Description        string
	Category           models.Category
	Urgency            models.Urgency
	LocationDisplay    string
	Location           string
	TimeWindowStart    *time.Time
	TimeWindowEnd      *time.Time
	Requirements       []string
	Attachments        []string
	EstimatedDuration  int
	MaxPerformers      int
	Modifiers          []string
	IsRecurring        bool
	RecurrenceType     *models.RecurrenceType
	RecurrenceInterval *int
	RecurrenceEndDate  *time.Time
}

// ListRequestsInput represents filters for browsing requests
type ListRequestsInput struct {
	ViewerID uint64
	Status   *models.RequestStatus
	Category *models.Category
	OwnerID  *uint64
	Page     int
	PageSize int
}

// RequestResult is a request together with how the viewer relates to its owner
type RequestResult struct {
	Request           *models.Request
	OwnerRelationship privacy.Relationship
}

// Create validates and stores a new OPEN request. Its point value is fixed
// here from category, urgency and modifiers.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*models.Request, error) {
	request, err := s.buildRequest(input)
	if err != nil {
		return nil, err
	}

	err = s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		owner, err := repos.Users.FindByID(ctx, input.OwnerID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "owner")
		}
		if !owner.IsActive() {
			return ErrAccountInactive
		}

		// a rolled back insert leaves its id behind, so each attempt inserts a copy
		created := *request
		if err := repos.Requests.Create(ctx, &created); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		request.ID = created.ID
		request.CreatedAt = created.CreatedAt
		request.UpdatedAt = created.UpdatedAt
		return nil
	})
	metrics.ObserveTransition("create", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("request created",
		zap.Uint64("request_id", request.ID),
		zap.Uint64("owner_id", request.OwnerID),
		zap.String("category", string(request.Category)),
		zap.Int("point_value", request.PointValue),
	)

	return s.reload(ctx, request.ID)
}

func (s *RequestService) buildRequest(input CreateRequestInput) (*models.Request, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if len([]rune(title)) > constants.MaxTitleLength {
		return nil, ErrTitleTooLong
	}

	locationDisplay := strings.TrimSpace(input.LocationDisplay)
	if locationDisplay == "" {
		return nil, ErrLocationDisplayRequired
	}

	if !input.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	urgency := input.Urgency
	if urgency == "" {
		urgency = models.UrgencyNormal
	}
	if !urgency.Valid() {
		return nil, ErrInvalidUrgency
	}

	if input.TimeWindowStart != nil && input.TimeWindowEnd != nil &&
		!input.TimeWindowEnd.After(*input.TimeWindowStart) {
		return nil, ErrInvalidTimeWindow
	}
	if len(input.Requirements) > constants.MaxRequirements || len(input.Attachments) > constants.MaxRequirements {
		return nil, ErrTooManyItems
	}

	modifiers := make([]points.Modifier, 0, len(input.Modifiers))
	for _, name := range input.Modifiers {
		modifier, ok := points.Named(strings.ToUpper(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownModifier, name)
		}
		modifiers = append(modifiers, modifier)
	}

	pointValue, err := points.Calculate(input.Category, urgency, modifiers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
	}

	maxPerformers := input.MaxPerformers
	if maxPerformers < 1 {
		maxPerformers = 1
	}

	request := &models.Request{
		OwnerID:           input.OwnerID,
		Title:             title,
		Description:       strings.TrimSpace(input.Description),
		Category:          input.Category,
		Urgency:           urgency,
		Status:            models.RequestStatusOpen,
		LocationDisplay:   locationDisplay,
		Location:          strings.TrimSpace(input.Location),
		TimeWindowStart:   input.TimeWindowStart,
		TimeWindowEnd:     input.TimeWindowEnd,
		Requirements:      datatypes.NewJSONSlice(nonNil(input.Requirements)),
		Attachments:       datatypes.NewJSONSlice(nonNil(input.Attachments)),
		EstimatedDuration: input.EstimatedDuration,
		MaxPerformers:     maxPerformers,
		PointValue:        pointValue,
		IsRecurring:       input.IsRecurring,
	}

	if input.IsRecurring {
		request.RecurrenceType = input.RecurrenceType
		request.RecurrenceInterval = input.RecurrenceInterval
		request.RecurrenceEndDate = input.RecurrenceEndDate
		if err := recurrence.Validate(request); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
		}
	}

	return request, nil
}

// Get returns a request as seen by viewerID
func (s *RequestService) Get(ctx context.Context, requestID, viewerID uint64) (*RequestResult, error) {
	var result *RequestResult
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		request, err := repos.Requests.FindByID(ctx, requestID, "Owner.Profile", "Assignment")
		if err != nil {
			return notFound(err, ErrRequestNotFound, "request")
		}

		linked, err := repos.Assignments.ExistsActiveBetween(ctx, viewerID, request.OwnerID)
		if err != nil {
			return fmt.Errorf("failed to resolve relationship: %w", err)
		}

		result = &RequestResult{Request: request, OwnerRelationship: relationship(linked)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns a page of requests as seen by the viewer
func (s *RequestService) List(ctx context.Context, input ListRequestsInput) ([]RequestResult, int64, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, ErrInvalidStatusFilter
	}
	if input.Category != nil && !input.Category.Valid() {
		return nil, 0, ErrInvalidCategory
	}

	var results []RequestResult
	var total int64
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		requests, count, err := repos.Requests.List(ctx, repository.RequestFilter{
			Status:   input.Status,
			Category: input.Category,
			OwnerID:  input.OwnerID,
			Page:     input.Page,
			PageSize: input.PageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to list requests: %w", err)
		}

		counterparts, err := repos.Assignments.ActiveCounterparts(ctx, input.ViewerID)
		if err != nil {
			return fmt.Errorf("failed to resolve relationships: %w", err)
		}

		results = make([]RequestResult, len(requests))
		for i := range requests {
			_, linked := counterparts[requests[i].OwnerID]
			results[i] = RequestResult{Request: &requests[i], OwnerRelationship: relationship(linked)}
		}
		total = count
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

// Cancel lets the owner withdraw a request that nobody has started on yet.
// A pending claim is dropped and its performer notified.
func (s *RequestService) Cancel(ctx context.Context, requestID, actorID uint64) (*models.Request, error) {
	var releasedPerformer uint64
	var title string

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		releasedPerformer = 0

		request, err := repos.Requests.FindForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, "request")
		}
		if request.OwnerID != actorID {
			return ErrNotRequestOwner
		}
		if request.Status != models.RequestStatusOpen && request.Status != models.RequestStatusClaimed {
			return ErrRequestNotCancellable
		}
		title = request.Title

		assignment, err := repos.Assignments.FindByRequestID(ctx, requestID)
		switch {
		case err == nil:
			if assignment.Status != models.AssignmentStatusClaimed {
				return ErrRequestNotCancellable
			}
			if err := repos.Assignments.Delete(ctx, assignment.ID); err != nil {
				return fmt.Errorf("failed to delete assignment: %w", err)
			}
			releasedPerformer = assignment.PerformerID
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to find assignment: %w", err)
		}

		moved, err := repos.Requests.TransitionStatus(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusOpen, models.RequestStatusClaimed},
			models.RequestStatusCancelled)
		if err != nil {
			return fmt.Errorf("failed to cancel request: %w", err)
		}
		if !moved {
			return ErrRequestNotCancellable
		}
		return nil
	})
	metrics.ObserveTransition("cancel", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("request cancelled",
		zap.Uint64("request_id", requestID),
		zap.Uint64("released_performer_id", releasedPerformer),
	)
	s.notes.toUser(ctx, releasedPerformer, notify.EventRequestCancelled,
		requestSubject("Request cancelled", title),
		"The owner cancelled a request you had claimed.")

	return s.reload(ctx, requestID)
}

// ExpireStale moves OPEN requests whose time window ended before now to
// EXPIRED and returns how many were moved.
func (s *RequestService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	var candidates []models.Request
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		candidates, err = repos.Requests.ListExpirable(ctx, now)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list expirable requests: %w", err)
	}

	expired := 0
	for _, candidate := range candidates {
		var moved bool
		err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
			var err error
			moved, err = repos.Requests.TransitionStatus(ctx, candidate.ID,
				[]models.RequestStatus{models.RequestStatusOpen}, models.RequestStatusExpired)
			return err
		})
		metrics.ObserveTransition("expire", err)
		if err != nil {
			return expired, fmt.Errorf("failed to expire request %d: %w", candidate.ID, err)
		}
		if moved {
			expired++
		}
	}

	s.logger.Info("stale requests expired", zap.Int("count", expired), zap.Time("cutoff", now))
	return expired, nil
}

func (s *RequestService) reload(ctx context.Context, requestID uint64) (*models.Request, error) {
	var request *models.Request
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		request, err = repos.Requests.FindByID(ctx, requestID, "Owner.Profile", "Assignment")
		if err != nil {
			return notFound(err, ErrRequestNotFound, "request")
		}
		return nil
	})
	return request, err
}

func relationship(linked bool) privacy.Relationship {
	if linked {
		return privacy.RelationshipActiveAssignment
	}
	return privacy.RelationshipNone
}

func nonNil(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

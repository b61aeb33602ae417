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
	"github.com/yukikurage/favor-exchange-api/internal/recurrence"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssignmentService drives the request/assignment lifecycle. Every
// transition runs in one gateway transaction and notifies after commit.
type AssignmentService struct {
	gw                       *repository.Gateway
	notes                    notifier
	logger                   *zap.Logger
	now                      func() time.Time
	requireOwnerConfirmation bool
}

// AssignmentOption configures an AssignmentService
type AssignmentOption func(*AssignmentService)

// WithOwnerConfirmation makes Complete stop at COMPLETED and leaves the
// award to the owner's Confirm.
func WithOwnerConfirmation(enabled bool) AssignmentOption {
	return func(s *AssignmentService) {
		s.requireOwnerConfirmation = enabled
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) AssignmentOption {
	return func(s *AssignmentService) {
		s.now = now
	}
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(gw *repository.Gateway, dispatcher *notify.Dispatcher, logger *zap.Logger, opts ...AssignmentOption) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AssignmentService{
		gw:     gw,
		notes:  notifier{gw: gw, dispatcher: dispatcher, logger: logger},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompleteInput represents the performer's completion report
type CompleteInput struct {
	AssignmentID uint64
	ActorID      uint64
	Notes        string
	ProofPhotos  []string
}

// ConfirmInput represents the owner's confirmation with an optional review
type ConfirmInput struct {
	AssignmentID uint64
	ActorID      uint64
	Rating       *int
	Review       string
}

// Outcome summarises what a finalizing transition did
type Outcome struct {
	Assignment    *models.Assignment
	PointsAwarded int
	Successor     *models.Request
}

// Claim binds actorID to an OPEN request. Of two concurrent claims exactly
// one succeeds and the other gets ErrAlreadyClaimed.
func (s *AssignmentService) Claim(ctx context.Context, requestID, actorID uint64) (*models.Assignment, error) {
	var assignment *models.Assignment
	var request *models.Request

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		var err error
		request, err = repos.Requests.FindForUpdate(ctx, requestID)
		if err != nil {
			return notFound(err, ErrRequestNotFound, "request")
		}
		if request.OwnerID == actorID {
			return ErrCannotClaimOwnRequest
		}

		switch request.Status {
		case models.RequestStatusOpen:
		case models.RequestStatusClaimed, models.RequestStatusInProgress:
			return ErrAlreadyClaimed
		default:
			return ErrRequestNotOpen
		}
		if _, err := repos.Assignments.FindByRequestID(ctx, requestID); err == nil {
			return ErrAlreadyClaimed
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check assignment: %w", err)
		}

		performer, err := repos.Users.FindByID(ctx, actorID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "performer")
		}
		if !performer.IsActive() {
			return ErrAccountInactive
		}

		moved, err := repos.Requests.TransitionStatus(ctx, requestID,
			[]models.RequestStatus{models.RequestStatusOpen}, models.RequestStatusClaimed)
		if err != nil {
			return fmt.Errorf("failed to claim request: %w", err)
		}
		if !moved {
			return ErrAlreadyClaimed
		}

		assignment = &models.Assignment{
			RequestID:   requestID,
			PerformerID: actorID,
			Status:      models.AssignmentStatusClaimed,
			ClaimedAt:   s.now(),
			ProofPhotos: datatypes.NewJSONSlice([]string{}),
		}
		if err := repos.Assignments.Create(ctx, assignment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyClaimed
			}
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		return nil
	})
	metrics.ObserveTransition("claim", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("request claimed",
		zap.Uint64("request_id", requestID),
		zap.Uint64("assignment_id", assignment.ID),
		zap.Uint64("performer_id", actorID),
	)
	s.notes.toUser(ctx, request.OwnerID, notify.EventAssignmentClaimed,
		requestSubject("Your request was claimed", request.Title),
		"A member has claimed your request and will be in touch.")

	return s.load(ctx, assignment.ID)
}

// Start marks a claimed assignment as in progress
func (s *AssignmentService) Start(ctx context.Context, assignmentID, actorID uint64) (*models.Assignment, error) {
	var request *models.Request

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		assignment, req, err := lockAssignment(ctx, repos, assignmentID)
		if err != nil {
			return err
		}
		request = req

		if assignment.PerformerID != actorID {
			return ErrNotPerformer
		}
		if assignment.Status != models.AssignmentStatusClaimed {
			return ErrAssignmentNotClaimed
		}

		moved, err := repos.Requests.TransitionStatus(ctx, req.ID,
			[]models.RequestStatus{models.RequestStatusClaimed}, models.RequestStatusInProgress)
		if err != nil {
			return fmt.Errorf("failed to start request: %w", err)
		}
		if !moved {
			return ErrAssignmentNotClaimed
		}

		assignment.Status = models.AssignmentStatusInProgress
		if err := repos.Assignments.Update(ctx, assignment); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
		return nil
	})
	metrics.ObserveTransition("start", err)
	if err != nil {
		return nil, err
	}

	s.notes.toUser(ctx, request.OwnerID, notify.EventAssignmentStarted,
		requestSubject("Work started", request.Title),
		"The performer has started working on your request.")

	return s.load(ctx, assignmentID)
}

// Release drops the performer's claim and reopens the request. The
// assignment row is deleted; only the log keeps a trace.
func (s *AssignmentService) Release(ctx context.Context, assignmentID, actorID uint64) (*models.Request, error) {
	var request *models.Request
	var released models.Assignment

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		assignment, req, err := lockAssignment(ctx, repos, assignmentID)
		if err != nil {
			return err
		}
		request = req

		if assignment.PerformerID != actorID {
			return ErrNotPerformer
		}
		if !assignment.Status.Workable() {
			return ErrAssignmentNotWorkable
		}

		if err := repos.Assignments.Delete(ctx, assignment.ID); err != nil {
			return fmt.Errorf("failed to delete assignment: %w", err)
		}

		moved, err := repos.Requests.TransitionStatus(ctx, req.ID,
			[]models.RequestStatus{models.RequestStatusClaimed, models.RequestStatusInProgress},
			models.RequestStatusOpen)
		if err != nil {
			return fmt.Errorf("failed to reopen request: %w", err)
		}
		if !moved {
			return ErrAssignmentNotWorkable
		}

		released = *assignment
		return nil
	})
	metrics.ObserveTransition("release", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignment released",
		zap.Uint64("assignment_id", released.ID),
		zap.Uint64("request_id", released.RequestID),
		zap.Uint64("performer_id", released.PerformerID),
		zap.String("status", string(released.Status)),
		zap.Time("claimed_at", released.ClaimedAt),
	)
	s.notes.toUser(ctx, request.OwnerID, notify.EventAssignmentReleased,
		requestSubject("Your request is open again", request.Title),
		"The performer released your request. It is open for other members.")

	return s.reloadRequest(ctx, request.ID)
}

// Complete records the performer's report. Unless owner confirmation is
// required, it finalizes immediately: the assignment and request become
// CONFIRMED, the performer is credited and a recurring request spawns its
// successor.
func (s *AssignmentService) Complete(ctx context.Context, input CompleteInput) (*Outcome, error) {
	if len(input.ProofPhotos) > constants.MaxProofPhotos {
		return nil, ErrTooManyItems
	}

	var outcome *Outcome
	var request *models.Request

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		outcome = nil

		assignment, req, err := lockAssignment(ctx, repos, input.AssignmentID)
		if err != nil {
			return err
		}
		request = req

		if assignment.PerformerID != input.ActorID {
			return ErrNotPerformer
		}
		if !assignment.Status.Workable() {
			return ErrAssignmentNotWorkable
		}

		now := s.now()
		assignment.Notes = strings.TrimSpace(input.Notes)
		assignment.ProofPhotos = datatypes.NewJSONSlice(nonNil(input.ProofPhotos))
		assignment.CompletedAt = &now

		if !s.requireOwnerConfirmation {
			outcome, err = s.finalize(ctx, repos, assignment, req, nil)
			return err
		}

		moved, err := repos.Requests.TransitionStatus(ctx, req.ID,
			[]models.RequestStatus{models.RequestStatusClaimed, models.RequestStatusInProgress},
			models.RequestStatusCompleted)
		if err != nil {
			return fmt.Errorf("failed to complete request: %w", err)
		}
		if !moved {
			return ErrAssignmentNotWorkable
		}

		assignment.Status = models.AssignmentStatusCompleted
		if err := repos.Assignments.Update(ctx, assignment); err != nil {
			return fmt.Errorf("failed to update assignment: %w", err)
		}
		outcome = &Outcome{Assignment: assignment}
		return nil
	})
	metrics.ObserveTransition("complete", err)
	if err != nil {
		return nil, err
	}

	s.afterFinalize(outcome)
	s.notes.toUser(ctx, request.OwnerID, notify.EventAssignmentCompleted,
		requestSubject("Your request was completed", request.Title),
		"The performer marked your request as done.")

	return s.withLoadedAssignment(ctx, outcome)
}

// Confirm finalizes a COMPLETED assignment on behalf of the owner and may
// record a review of the performer.
//
// Deprecated: only reachable when owner confirmation is enabled; Complete
// finalizes directly otherwise.
func (s *AssignmentService) Confirm(ctx context.Context, input ConfirmInput) (*Outcome, error) {
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return nil, ErrInvalidRating
	}

	var outcome *Outcome
	var performerID uint64
	var title string

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		outcome = nil

		assignment, req, err := lockAssignment(ctx, repos, input.AssignmentID)
		if err != nil {
			return err
		}
		performerID = assignment.PerformerID
		title = req.Title

		if req.OwnerID != input.ActorID {
			return ErrNotRequestOwner
		}
		if assignment.Status != models.AssignmentStatusCompleted {
			return ErrAssignmentNotCompleted
		}

		var review *models.Review
		if input.Rating != nil {
			review = &models.Review{
				ReviewerID: input.ActorID,
				RevieweeID: assignment.PerformerID,
				Rating:     *input.Rating,
				Comment:    strings.TrimSpace(input.Review),
			}
		}

		outcome, err = s.finalize(ctx, repos, assignment, req, review)
		return err
	})
	metrics.ObserveTransition("confirm", err)
	if err != nil {
		return nil, err
	}

	s.afterFinalize(outcome)
	s.notes.toUser(ctx, performerID, notify.EventAssignmentConfirmed,
		requestSubject("Your work was confirmed", title),
		fmt.Sprintf("The owner confirmed your work. %d points were added to your balance.", outcome.PointsAwarded))

	return s.withLoadedAssignment(ctx, outcome)
}

// finalize is the only path that credits points. It must run inside the
// caller's transaction with the request row locked.
func (s *AssignmentService) finalize(ctx context.Context, repos *repository.Repositories, assignment *models.Assignment, request *models.Request, review *models.Review) (*Outcome, error) {
	now := s.now()

	moved, err := repos.Requests.TransitionStatus(ctx, request.ID,
		[]models.RequestStatus{models.RequestStatusClaimed, models.RequestStatusInProgress, models.RequestStatusCompleted},
		models.RequestStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm request: %w", err)
	}
	if !moved {
		return nil, ErrAssignmentNotActive
	}

	assignment.Status = models.AssignmentStatusConfirmed
	if assignment.CompletedAt == nil {
		assignment.CompletedAt = &now
	}
	assignment.ConfirmedAt = &now
	if err := repos.Assignments.Update(ctx, assignment); err != nil {
		return nil, fmt.Errorf("failed to update assignment: %w", err)
	}

	award := request.PointValue
	if award < points.MinimumAward {
		award, err = points.Calculate(request.Category, request.Urgency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCategory, err)
		}
	}

	requestID := request.ID
	if err := repos.Ledger.Append(ctx, &models.PointsLedgerEntry{
		UserID:    assignment.PerformerID,
		RequestID: &requestID,
		Delta:     award,
		Reason:    models.LedgerReasonRequestCompleted,
	}); err != nil {
		return nil, fmt.Errorf("failed to credit points: %w", err)
	}

	if review != nil {
		review.RequestID = request.ID
		if err := repos.Reviews.Create(ctx, review); err != nil {
			return nil, fmt.Errorf("failed to record review: %w", err)
		}
	}

	outcome := &Outcome{Assignment: assignment, PointsAwarded: award}

	if request.IsRecurring {
		successor, err := recurrence.GenerateNext(request, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
		}
		if successor != nil {
			if err := repos.Requests.Create(ctx, successor); err != nil {
				return nil, fmt.Errorf("failed to create successor request: %w", err)
			}
			outcome.Successor = successor
		}
	}

	return outcome, nil
}

func (s *AssignmentService) afterFinalize(outcome *Outcome) {
	if outcome == nil || outcome.PointsAwarded == 0 {
		return
	}

	metrics.PointsAwarded.Add(float64(outcome.PointsAwarded))
	fields := []zap.Field{
		zap.Uint64("assignment_id", outcome.Assignment.ID),
		zap.Uint64("performer_id", outcome.Assignment.PerformerID),
		zap.Int("points", outcome.PointsAwarded),
	}
	if outcome.Successor != nil {
		metrics.RecurrencesSpawned.Inc()
		fields = append(fields, zap.Uint64("successor_id", outcome.Successor.ID))
	}
	s.logger.Info("assignment finalized", fields...)
}

// Dispute lets either party flag a request whose work is still active
func (s *AssignmentService) Dispute(ctx context.Context, assignmentID, actorID uint64, reason string) (*models.Assignment, error) {
	var counterpart uint64
	var title string

	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		assignment, req, err := lockAssignment(ctx, repos, assignmentID)
		if err != nil {
			return err
		}
		title = req.Title

		switch actorID {
		case req.OwnerID:
			counterpart = assignment.PerformerID
		case assignment.PerformerID:
			counterpart = req.OwnerID
		default:
			return ErrNotAssignmentParty
		}
		if !assignment.Status.Active() {
			return ErrAssignmentNotActive
		}

		moved, err := repos.Requests.TransitionStatus(ctx, req.ID,
			[]models.RequestStatus{models.RequestStatusClaimed, models.RequestStatusInProgress, models.RequestStatusCompleted},
			models.RequestStatusDisputed)
		if err != nil {
			return fmt.Errorf("failed to dispute request: %w", err)
		}
		if !moved {
			return ErrAssignmentNotActive
		}
		return nil
	})
	metrics.ObserveTransition("dispute", err)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("request disputed",
		zap.Uint64("assignment_id", assignmentID),
		zap.Uint64("actor_id", actorID),
		zap.String("reason", reason),
	)
	s.notes.toUser(ctx, counterpart, notify.EventRequestDisputed,
		requestSubject("Request disputed", title),
		"The other party opened a dispute: "+strings.TrimSpace(reason))

	return s.load(ctx, assignmentID)
}

// Get returns an assignment to one of its two parties
func (s *AssignmentService) Get(ctx context.Context, assignmentID, viewerID uint64) (*models.Assignment, error) {
	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if viewerID != assignment.PerformerID && viewerID != assignment.Request.OwnerID {
		return nil, ErrNotAssignmentParty
	}
	return assignment, nil
}

// lockAssignment locks the request row before re-reading the assignment so
// that every transition takes locks in the same order as Claim.
func lockAssignment(ctx context.Context, repos *repository.Repositories, assignmentID uint64) (*models.Assignment, *models.Request, error) {
	assignment, err := repos.Assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, notFound(err, ErrAssignmentNotFound, "assignment")
	}

	request, err := repos.Requests.FindForUpdate(ctx, assignment.RequestID)
	if err != nil {
		return nil, nil, notFound(err, ErrRequestNotFound, "request")
	}

	assignment, err = repos.Assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, nil, notFound(err, ErrAssignmentNotFound, "assignment")
	}
	return assignment, request, nil
}

func (s *AssignmentService) load(ctx context.Context, assignmentID uint64) (*models.Assignment, error) {
	var assignment *models.Assignment
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		assignment, err = repos.Assignments.FindByID(ctx, assignmentID, "Request.Owner.Profile", "Performer.Profile")
		if err != nil {
			return notFound(err, ErrAssignmentNotFound, "assignment")
		}
		return nil
	})
	return assignment, err
}

func (s *AssignmentService) reloadRequest(ctx context.Context, requestID uint64) (*models.Request, error) {
	var request *models.Request
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		var err error
		request, err = repos.Requests.FindByID(ctx, requestID, "Owner.Profile")
		if err != nil {
			return notFound(err, ErrRequestNotFound, "request")
		}
		return nil
	})
	return request, err
}

func (s *AssignmentService) withLoadedAssignment(ctx context.Context, outcome *Outcome) (*Outcome, error) {
	loaded, err := s.load(ctx, outcome.Assignment.ID)
	if err != nil {
		return nil, err
	}
	outcome.Assignment = loaded
	return outcome, nil
}

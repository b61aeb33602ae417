package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"github.com/yukikurage/favor-exchange-api/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AssignmentServiceTestSuite exercises the request/assignment lifecycle
type AssignmentServiceTestSuite struct {
	suite.Suite
	db        *gorm.DB
	gw        *repository.Gateway
	notifier  *recordingNotifier
	requests  *RequestService
	service   *AssignmentService
	ctx       context.Context
	owner     *models.User
	performer *models.User
}

func (suite *AssignmentServiceTestSuite) SetupTest() {
	suite.db = testutil.NewDB(suite.T())
	suite.gw = repository.NewGateway(suite.db)
	suite.notifier = &recordingNotifier{}
	dispatcher := notify.NewDispatcher(suite.notifier, zap.NewNop())

	suite.requests = NewRequestService(suite.gw, dispatcher, zap.NewNop())
	suite.service = NewAssignmentService(suite.gw, dispatcher, zap.NewNop())
	suite.ctx = context.Background()

	suite.owner = testutil.CreateUser(suite.T(), suite.db, "owner@example.com", "Owner")
	suite.performer = testutil.CreateUser(suite.T(), suite.db, "performer@example.com", "Performer")
}

func (suite *AssignmentServiceTestSuite) createRequest(input CreateRequestInput) *models.Request {
	if input.OwnerID == 0 {
		input.OwnerID = suite.owner.ID
	}
	if input.Title == "" {
		input.Title = "Pick up groceries"
	}
	if input.Category == "" {
		input.Category = models.CategoryErrands
	}
	if input.LocationDisplay == "" {
		input.LocationDisplay = "Downtown"
	}
	request, err := suite.requests.Create(suite.ctx, input)
	suite.Require().NoError(err)
	return request
}

func (suite *AssignmentServiceTestSuite) ledgerTotal(userID uint64) int {
	balance, err := suite.gw.Repos().Ledger.Balance(suite.ctx, userID)
	suite.Require().NoError(err)
	return balance
}

func (suite *AssignmentServiceTestSuite) requestStatus(id uint64) models.RequestStatus {
	var request models.Request
	suite.Require().NoError(suite.db.First(&request, id).Error)
	return request.Status
}

func (suite *AssignmentServiceTestSuite) assignmentCount(requestID uint64) int64 {
	var count int64
	suite.db.Model(&models.Assignment{}).Where("request_id = ?", requestID).Count(&count)
	return count
}

// Claim

func (suite *AssignmentServiceTestSuite) TestClaim_Success() {
	request := suite.createRequest(CreateRequestInput{})

	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusClaimed, assignment.Status)
	suite.Equal(suite.performer.ID, assignment.PerformerID)
	suite.False(assignment.ClaimedAt.IsZero())
	suite.Equal("Owner", assignment.Request.Owner.Profile.DisplayName)
	suite.Equal(models.RequestStatusClaimed, suite.requestStatus(request.ID))

	suite.Equal([]notify.Event{notify.EventAssignmentClaimed}, suite.notifier.events())
	suite.Equal("owner@example.com", suite.notifier.last().To)
}

func (suite *AssignmentServiceTestSuite) TestClaim_NotFound() {
	_, err := suite.service.Claim(suite.ctx, 999, suite.performer.ID)
	suite.ErrorIs(err, ErrRequestNotFound)
	suite.Equal(apierrors.KindNotFound, apierrors.KindOf(err))
}

func (suite *AssignmentServiceTestSuite) TestClaim_OwnRequestForbidden() {
	request := suite.createRequest(CreateRequestInput{})

	_, err := suite.service.Claim(suite.ctx, request.ID, suite.owner.ID)
	suite.ErrorIs(err, ErrCannotClaimOwnRequest)
	suite.Equal(apierrors.KindForbidden, apierrors.KindOf(err))
	suite.Equal(models.RequestStatusOpen, suite.requestStatus(request.ID))
}

func (suite *AssignmentServiceTestSuite) TestClaim_NotOpen() {
	request := suite.createRequest(CreateRequestInput{})
	_, err := suite.requests.Cancel(suite.ctx, request.ID, suite.owner.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.ErrorIs(err, ErrRequestNotOpen)
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
}

func (suite *AssignmentServiceTestSuite) TestClaim_AlreadyClaimed() {
	request := suite.createRequest(CreateRequestInput{})
	other := testutil.CreateUser(suite.T(), suite.db, "other@example.com", "Other")

	_, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Claim(suite.ctx, request.ID, other.ID)
	suite.ErrorIs(err, ErrAlreadyClaimed)
	suite.Equal(apierrors.KindConflict, apierrors.KindOf(err))
	suite.Equal(int64(1), suite.assignmentCount(request.ID))
}

func (suite *AssignmentServiceTestSuite) TestClaim_FinishedRequestIsInvalidState() {
	request := suite.createRequest(CreateRequestInput{})
	other := testutil.CreateUser(suite.T(), suite.db, "other@example.com", "Other")

	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)
	suite.Require().Equal(models.RequestStatusConfirmed, suite.requestStatus(request.ID))

	_, err = suite.service.Claim(suite.ctx, request.ID, other.ID)
	suite.ErrorIs(err, ErrRequestNotOpen)
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
}

func (suite *AssignmentServiceTestSuite) TestClaim_DisputedRequestIsInvalidState() {
	request := suite.createRequest(CreateRequestInput{})
	other := testutil.CreateUser(suite.T(), suite.db, "other@example.com", "Other")

	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	_, err = suite.service.Dispute(suite.ctx, assignment.ID, suite.owner.ID, "Never showed up")
	suite.Require().NoError(err)

	_, err = suite.service.Claim(suite.ctx, request.ID, other.ID)
	suite.ErrorIs(err, ErrRequestNotOpen)
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
}

func (suite *AssignmentServiceTestSuite) TestClaim_SuspendedPerformer() {
	request := suite.createRequest(CreateRequestInput{})
	suite.db.Model(suite.performer).Update("status", models.UserStatusSuspended)

	_, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.ErrorIs(err, ErrAccountInactive)
	suite.Equal(models.RequestStatusOpen, suite.requestStatus(request.ID))
}

func (suite *AssignmentServiceTestSuite) TestClaim_ConcurrentExactlyOneWins() {
	request := suite.createRequest(CreateRequestInput{})

	const claimers = 5
	performers := make([]*models.User, claimers)
	for i := range performers {
		performers[i] = testutil.CreateUser(suite.T(), suite.db,
			"claimer"+string(rune('a'+i))+"@example.com", "Claimer")
	}

	results := make([]error, claimers)
	var g errgroup.Group
	for i := range performers {
		g.Go(func() error {
			_, results[i] = suite.service.Claim(suite.ctx, request.ID, performers[i].ID)
			return nil
		})
	}
	suite.Require().NoError(g.Wait())

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		suite.Equal(apierrors.KindConflict, apierrors.KindOf(err), err.Error())
	}
	suite.Equal(1, wins)
	suite.Equal(int64(1), suite.assignmentCount(request.ID))
	suite.Equal(models.RequestStatusClaimed, suite.requestStatus(request.ID))
}

func (suite *AssignmentServiceTestSuite) TestClaim_NotificationFailureDoesNotAbort() {
	suite.notifier.err = errSMTPDown
	request := suite.createRequest(CreateRequestInput{})

	_, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusClaimed, suite.requestStatus(request.ID))
}

// Start

func (suite *AssignmentServiceTestSuite) TestStart() {
	request := suite.createRequest(CreateRequestInput{})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Start(suite.ctx, assignment.ID, suite.owner.ID)
	suite.ErrorIs(err, ErrNotPerformer)

	started, err := suite.service.Start(suite.ctx, assignment.ID, suite.performer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusInProgress, started.Status)
	suite.Equal(models.RequestStatusInProgress, suite.requestStatus(request.ID))

	_, err = suite.service.Start(suite.ctx, assignment.ID, suite.performer.ID)
	suite.ErrorIs(err, ErrAssignmentNotClaimed)
}

// Release

func (suite *AssignmentServiceTestSuite) TestRelease_ReopensRequest() {
	request := suite.createRequest(CreateRequestInput{})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	_, err = suite.service.Start(suite.ctx, assignment.ID, suite.performer.ID)
	suite.Require().NoError(err)

	reopened, err := suite.service.Release(suite.ctx, assignment.ID, suite.performer.ID)
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusOpen, reopened.Status)
	suite.Equal(int64(0), suite.assignmentCount(request.ID))

	// the request can be claimed again
	_, err = suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.NoError(err)
}

func (suite *AssignmentServiceTestSuite) TestRelease_Errors() {
	request := suite.createRequest(CreateRequestInput{})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Release(suite.ctx, 999, suite.performer.ID)
	suite.ErrorIs(err, ErrAssignmentNotFound)

	_, err = suite.service.Release(suite.ctx, assignment.ID, suite.owner.ID)
	suite.ErrorIs(err, ErrNotPerformer)
	suite.Equal(int64(1), suite.assignmentCount(request.ID))

	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)

	_, err = suite.service.Release(suite.ctx, assignment.ID, suite.performer.ID)
	suite.ErrorIs(err, ErrAssignmentNotWorkable)
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
}

// Complete

func (suite *AssignmentServiceTestSuite) TestComplete_AwardsPointsAtomically() {
	request := suite.createRequest(CreateRequestInput{Urgency: models.UrgencyNormal})
	suite.Equal(8, request.PointValue)
	suite.False(request.HasLocation())

	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	before := suite.ledgerTotal(suite.performer.ID)
	outcome, err := suite.service.Complete(suite.ctx, CompleteInput{
		AssignmentID: assignment.ID,
		ActorID:      suite.performer.ID,
		Notes:        "Delivered to the door",
		ProofPhotos:  []string{"https://example.com/a.jpg", "https://example.com/b.jpg"},
	})
	suite.Require().NoError(err)

	suite.Equal(8, outcome.PointsAwarded)
	suite.Nil(outcome.Successor)
	suite.Equal(models.AssignmentStatusConfirmed, outcome.Assignment.Status)
	suite.NotNil(outcome.Assignment.CompletedAt)
	suite.NotNil(outcome.Assignment.ConfirmedAt)
	suite.Equal([]string{"https://example.com/a.jpg", "https://example.com/b.jpg"}, []string(outcome.Assignment.ProofPhotos))
	suite.Equal(models.RequestStatusConfirmed, suite.requestStatus(request.ID))
	suite.Equal(before+8, suite.ledgerTotal(suite.performer.ID))

	var entries []models.PointsLedgerEntry
	suite.db.Where("user_id = ?", suite.performer.ID).Find(&entries)
	suite.Require().Len(entries, 1)
	suite.Equal(request.ID, *entries[0].RequestID)
	suite.Equal(models.LedgerReasonRequestCompleted, entries[0].Reason)

	var successors int64
	suite.db.Model(&models.Request{}).Where("parent_request_id = ?", request.ID).Count(&successors)
	suite.Equal(int64(0), successors)
	suite.Contains(suite.notifier.events(), notify.EventAssignmentCompleted)
}

func (suite *AssignmentServiceTestSuite) TestComplete_TransportationHigh() {
	request := suite.createRequest(CreateRequestInput{Category: models.CategoryTransportation, Urgency: models.UrgencyHigh})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	outcome, err := suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)
	suite.Equal(20, outcome.PointsAwarded)
	suite.Equal(20, suite.ledgerTotal(suite.performer.ID))
}

func (suite *AssignmentServiceTestSuite) TestComplete_Errors() {
	request := suite.createRequest(CreateRequestInput{})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.owner.ID})
	suite.ErrorIs(err, ErrNotPerformer)

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = "photo.jpg"
	}
	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID, ProofPhotos: tooMany})
	suite.Equal(apierrors.KindValidation, apierrors.KindOf(err))

	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)

	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.ErrorIs(err, ErrAssignmentNotWorkable)
	suite.Equal(8, suite.ledgerTotal(suite.performer.ID))
}

func (suite *AssignmentServiceTestSuite) TestComplete_SpawnsWeeklySuccessor() {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := t0.Add(2 * time.Hour)
	weekly := models.RecurrenceWeekly
	recurrenceEnd := t0.AddDate(0, 0, 30)

	request := suite.createRequest(CreateRequestInput{
		Title:             "Weekly shopping",
		Requirements:      []string{"A", "B"},
		TimeWindowStart:   &t0,
		TimeWindowEnd:     &end,
		IsRecurring:       true,
		RecurrenceType:    &weekly,
		RecurrenceEndDate: &recurrenceEnd,
	})

	service := NewAssignmentService(suite.gw, nil, zap.NewNop(),
		WithClock(func() time.Time { return t0.AddDate(0, 0, 5) }))

	assignment, err := service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	outcome, err := service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)
	suite.Require().NotNil(outcome.Successor)

	var successor models.Request
	suite.Require().NoError(suite.db.Where("parent_request_id = ?", request.ID).First(&successor).Error)
	suite.Equal(models.RequestStatusOpen, successor.Status)
	suite.True(successor.IsRecurring)
	suite.Equal(request.ID, *successor.ParentRequestID)
	suite.Equal(request.OwnerID, successor.OwnerID)
	suite.Equal([]string{"A", "B"}, []string(successor.Requirements))
	suite.Require().NotNil(successor.TimeWindowStart)
	suite.WithinDuration(t0.AddDate(0, 0, 7), *successor.TimeWindowStart, time.Second)
	suite.WithinDuration(end.AddDate(0, 0, 7), *successor.TimeWindowEnd, time.Second)
}

func (suite *AssignmentServiceTestSuite) TestComplete_RecurrenceEndedSpawnsNothing() {
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	weekly := models.RecurrenceWeekly
	recurrenceEnd := t0.AddDate(0, 0, 3)

	request := suite.createRequest(CreateRequestInput{
		TimeWindowStart:   &t0,
		IsRecurring:       true,
		RecurrenceType:    &weekly,
		RecurrenceEndDate: &recurrenceEnd,
	})

	service := NewAssignmentService(suite.gw, nil, zap.NewNop(),
		WithClock(func() time.Time { return t0.AddDate(0, 0, 5) }))

	assignment, err := service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)
	outcome, err := service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)
	suite.Nil(outcome.Successor)
}

// Owner confirmation

func (suite *AssignmentServiceTestSuite) TestOwnerConfirmationFlow() {
	service := NewAssignmentService(suite.gw, notify.NewDispatcher(suite.notifier, nil), zap.NewNop(), WithOwnerConfirmation(true))
	request := suite.createRequest(CreateRequestInput{Category: models.CategoryTutoring})

	assignment, err := service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	completed, err := service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusCompleted, completed.Assignment.Status)
	suite.Equal(0, completed.PointsAwarded)
	suite.Equal(models.RequestStatusCompleted, suite.requestStatus(request.ID))
	suite.Equal(0, suite.ledgerTotal(suite.performer.ID))

	rating := 5
	_, err = service.Confirm(suite.ctx, ConfirmInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID, Rating: &rating})
	suite.ErrorIs(err, ErrNotRequestOwner)

	bad := 9
	_, err = service.Confirm(suite.ctx, ConfirmInput{AssignmentID: assignment.ID, ActorID: suite.owner.ID, Rating: &bad})
	suite.ErrorIs(err, ErrInvalidRating)

	confirmed, err := service.Confirm(suite.ctx, ConfirmInput{AssignmentID: assignment.ID, ActorID: suite.owner.ID, Rating: &rating, Review: "Great tutor"})
	suite.Require().NoError(err)
	suite.Equal(models.AssignmentStatusConfirmed, confirmed.Assignment.Status)
	suite.Equal(12, confirmed.PointsAwarded)
	suite.Equal(models.RequestStatusConfirmed, suite.requestStatus(request.ID))
	suite.Equal(12, suite.ledgerTotal(suite.performer.ID))

	reviews, err := suite.gw.Repos().Reviews.ListByReviewee(suite.ctx, suite.performer.ID)
	suite.Require().NoError(err)
	suite.Require().Len(reviews, 1)
	suite.Equal("Great tutor", reviews[0].Comment)

	_, err = service.Confirm(suite.ctx, ConfirmInput{AssignmentID: assignment.ID, ActorID: suite.owner.ID})
	suite.ErrorIs(err, ErrAssignmentNotCompleted)
	suite.Equal(12, suite.ledgerTotal(suite.performer.ID))
	suite.Contains(suite.notifier.events(), notify.EventAssignmentConfirmed)
}

func (suite *AssignmentServiceTestSuite) TestConfirm_RequiresCompleted() {
	request := suite.createRequest(CreateRequestInput{})
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Confirm(suite.ctx, ConfirmInput{AssignmentID: assignment.ID, ActorID: suite.owner.ID})
	suite.ErrorIs(err, ErrAssignmentNotCompleted)
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
}

// Dispute

func (suite *AssignmentServiceTestSuite) TestDispute() {
	request := suite.createRequest(CreateRequestInput{})
	stranger := testutil.CreateUser(suite.T(), suite.db, "stranger@example.com", "Stranger")
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	_, err = suite.service.Dispute(suite.ctx, assignment.ID, stranger.ID, "not mine")
	suite.ErrorIs(err, ErrNotAssignmentParty)

	_, err = suite.service.Dispute(suite.ctx, assignment.ID, suite.owner.ID, "nobody showed up")
	suite.Require().NoError(err)
	suite.Equal(models.RequestStatusDisputed, suite.requestStatus(request.ID))
	suite.Equal("performer@example.com", suite.notifier.last().To)

	_, err = suite.service.Complete(suite.ctx, CompleteInput{AssignmentID: assignment.ID, ActorID: suite.performer.ID})
	suite.Equal(apierrors.KindInvalidState, apierrors.KindOf(err))
	suite.Equal(0, suite.ledgerTotal(suite.performer.ID))
}

// Get

func (suite *AssignmentServiceTestSuite) TestGet_OnlyParties() {
	request := suite.createRequest(CreateRequestInput{})
	stranger := testutil.CreateUser(suite.T(), suite.db, "stranger@example.com", "Stranger")
	assignment, err := suite.service.Claim(suite.ctx, request.ID, suite.performer.ID)
	suite.Require().NoError(err)

	found, err := suite.service.Get(suite.ctx, assignment.ID, suite.owner.ID)
	suite.Require().NoError(err)
	suite.Equal("Performer", found.Performer.Profile.DisplayName)

	_, err = suite.service.Get(suite.ctx, assignment.ID, stranger.ID)
	suite.ErrorIs(err, ErrNotAssignmentParty)
}

func TestAssignmentServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AssignmentServiceTestSuite))
}

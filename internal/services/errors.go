package services

import (
	"errors"
	"fmt"

	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"gorm.io/gorm"
)

var (
	// Lookup failures
	ErrUserNotFound       = apierrors.New(apierrors.KindNotFound, "user not found")
	ErrRequestNotFound    = apierrors.New(apierrors.KindNotFound, "request not found")
	ErrAssignmentNotFound = apierrors.New(apierrors.KindNotFound, "assignment not found")

	// Relationship failures
	ErrCannotClaimOwnRequest = apierrors.New(apierrors.KindForbidden, "cannot claim your own request")
	ErrNotPerformer          = apierrors.New(apierrors.KindForbidden, "only the performer can perform this action")
	ErrNotRequestOwner       = apierrors.New(apierrors.KindForbidden, "only the request owner can perform this action")
	ErrNotAssignmentParty    = apierrors.New(apierrors.KindForbidden, "only the owner or performer can view this assignment")
	ErrAccountInactive       = apierrors.New(apierrors.KindForbidden, "account is not active")

	// State failures
	ErrRequestNotOpen         = apierrors.New(apierrors.KindInvalidState, "request is not open")
	ErrAssignmentNotWorkable  = apierrors.New(apierrors.KindInvalidState, "assignment is not claimed or in progress")
	ErrAssignmentNotClaimed   = apierrors.New(apierrors.KindInvalidState, "assignment is not claimed")
	ErrAssignmentNotCompleted = apierrors.New(apierrors.KindInvalidState, "assignment is not awaiting confirmation")
	ErrAssignmentNotActive    = apierrors.New(apierrors.KindInvalidState, "assignment is no longer active")
	ErrRequestNotCancellable  = apierrors.New(apierrors.KindInvalidState, "request can no longer be cancelled")

	// Races
	ErrAlreadyClaimed = apierrors.New(apierrors.KindConflict, "request has already been claimed")
	ErrEmailTaken     = apierrors.New(apierrors.KindConflict, "email already registered")

	// Input failures
	ErrTitleRequired           = apierrors.New(apierrors.KindValidation, "title is required")
	ErrTitleTooLong            = apierrors.New(apierrors.KindValidation, "title is too long")
	ErrLocationDisplayRequired = apierrors.New(apierrors.KindValidation, "location display is required")
	ErrInvalidCategory         = apierrors.New(apierrors.KindValidation, "invalid category")
	ErrInvalidUrgency          = apierrors.New(apierrors.KindValidation, "invalid urgency")
	ErrInvalidStatusFilter     = apierrors.New(apierrors.KindValidation, "invalid status")
	ErrInvalidTimeWindow       = apierrors.New(apierrors.KindValidation, "time window end must be after its start")
	ErrInvalidRecurrence       = apierrors.New(apierrors.KindValidation, "invalid recurrence")
	ErrUnknownModifier         = apierrors.New(apierrors.KindValidation, "unknown points modifier")
	ErrTooManyItems            = apierrors.New(apierrors.KindValidation, "too many list items")
	ErrInvalidRating           = apierrors.New(apierrors.KindValidation, "rating must be between 1 and 5")
	ErrInvalidEmail            = apierrors.New(apierrors.KindValidation, "a valid email is required")
	ErrDisplayNameRequired     = apierrors.New(apierrors.KindValidation, "display name is required")
	ErrPasswordTooShort        = apierrors.New(apierrors.KindValidation, "password too short")
	ErrInvalidResetToken       = apierrors.New(apierrors.KindValidation, "invalid or expired reset token")

	// Authentication failures
	ErrInvalidCredentials    = apierrors.New(apierrors.KindUnauthorized, "invalid email or password")
	ErrInvalidToken          = apierrors.New(apierrors.KindUnauthorized, "invalid or expired token")
	ErrRevocationUnavailable = apierrors.New(apierrors.KindTransient, "authentication temporarily unavailable")

	// AI drafting
	ErrAIServiceNotConfigured = apierrors.New(apierrors.KindTransient, "AI service is not configured")
	ErrAIDraftFailed          = apierrors.New(apierrors.KindTransient, "AI could not draft a request")
)

// notFound maps a missing record to sentinel and wraps anything else.
func notFound(err error, sentinel error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("failed to find %s: %w", what, err)
}

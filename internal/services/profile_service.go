package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"gorm.io/datatypes"
)

// ProfileService reads and edits member profiles
type ProfileService struct {
	gw *repository.Gateway
}

// NewProfileService creates a new ProfileService
func NewProfileService(gw *repository.Gateway) *ProfileService {
	return &ProfileService{gw: gw}
}

// ProfileResult is a member together with how the viewer relates to them
type ProfileResult struct {
	User         *models.User
	Relationship privacy.Relationship
}

// UpdateProfileInput holds optional profile changes. Nil fields are kept.
type UpdateProfileInput struct {
	DisplayName  *string
	Bio          *string
	City         *string
	Neighborhood *string
	Phone        *string
	Skills       []string
	Languages    []string
	Privacy      *models.PrivacySettings
}

// Get returns userID's profile as seen by viewerID
func (s *ProfileService) Get(ctx context.Context, userID, viewerID uint64) (*ProfileResult, error) {
	var result *ProfileResult
	err := s.gw.Do(ctx, func(repos *repository.Repositories) error {
		user, err := repos.Users.FindByID(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "user")
		}

		linked, err := repos.Assignments.ExistsActiveBetween(ctx, viewerID, userID)
		if err != nil {
			return fmt.Errorf("failed to resolve relationship: %w", err)
		}

		result = &ProfileResult{User: user, Relationship: relationship(linked)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies input to the caller's own profile
func (s *ProfileService) Update(ctx context.Context, userID uint64, input UpdateProfileInput) (*models.User, error) {
	if input.DisplayName != nil && strings.TrimSpace(*input.DisplayName) == "" {
		return nil, ErrDisplayNameRequired
	}

	var user *models.User
	err := s.gw.Transaction(ctx, func(repos *repository.Repositories) error {
		profile, err := repos.Profiles.FindByUserID(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "profile")
		}

		applyProfileChanges(profile, input)
		if err := repos.Profiles.Update(ctx, profile); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		user, err = repos.Users.FindByID(ctx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func applyProfileChanges(profile *models.Profile, input UpdateProfileInput) {
	if input.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Bio != nil {
		profile.Bio = strings.TrimSpace(*input.Bio)
	}
	if input.City != nil {
		profile.City = strings.TrimSpace(*input.City)
	}
	if input.Neighborhood != nil {
		profile.Neighborhood = strings.TrimSpace(*input.Neighborhood)
	}
	if input.Phone != nil {
		profile.Phone = strings.TrimSpace(*input.Phone)
	}
	if input.Skills != nil {
		profile.Skills = datatypes.NewJSONSlice(nonNil(input.Skills))
	}
	if input.Languages != nil {
		profile.Languages = datatypes.NewJSONSlice(nonNil(input.Languages))
	}
	if input.Privacy != nil {
		profile.Privacy = *input.Privacy
	}
}

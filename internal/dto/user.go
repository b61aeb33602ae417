package dto

import (
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
)

// UserDTO represents the authenticated user in API responses
type UserDTO struct {
	ID          uint64            `json:"id"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Role        models.UserRole   `json:"role"`
	Status      models.UserStatus `json:"status"`
	LastLoginAt *time.Time        `json:"last_login_at"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SessionDTO is returned by login
type SessionDTO struct {
	User      UserDTO   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileDTO represents a member profile as seen by the viewer. Contact and
// location fields come from the privacy resolver.
type ProfileDTO struct {
	privacy.View
	Bio       string                  `json:"bio"`
	Skills    []string                `json:"skills"`
	Languages []string                `json:"languages"`
	Privacy   *models.PrivacySettings `json:"privacy,omitempty"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.Profile.DisplayName,
		Role:        user.Role,
		Status:      user.Status,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// ToProfileDTO resolves user's profile for viewerID. The privacy settings are
// only echoed back to the profile's owner.
func ToProfileDTO(user models.User, viewerID uint64, rel privacy.Relationship) ProfileDTO {
	dto := ProfileDTO{
		View:      privacy.Resolve(privacy.SubjectFromUser(&user), viewerID, rel),
		Bio:       user.Profile.Bio,
		Skills:    orEmpty(user.Profile.Skills),
		Languages: orEmpty(user.Profile.Languages),
	}
	if viewerID == user.ID {
		settings := user.Profile.Privacy
		dto.Privacy = &settings
	}
	return dto
}

// ToParticipant resolves the contact block of a request owner or performer
func ToParticipant(user models.User, viewerID uint64, rel privacy.Relationship) privacy.View {
	return privacy.Resolve(privacy.SubjectFromUser(&user), viewerID, rel)
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

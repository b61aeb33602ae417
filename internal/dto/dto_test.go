package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"gorm.io/datatypes"
)

func owner(settings models.PrivacySettings) models.User {
	return models.User{
		ID:    1,
		Email: "owner@example.com",
		Profile: models.Profile{
			UserID:       1,
			DisplayName:  "Owner",
			Phone:        "555-0100",
			City:         "Springfield",
			Neighborhood: "Evergreen",
			Privacy:      settings,
		},
	}
}

func request(u models.User) models.Request {
	return models.Request{
		ID:              10,
		OwnerID:         u.ID,
		Owner:           u,
		Title:           "Carry boxes",
		Category:        models.CategoryHousehold,
		Urgency:         models.UrgencyNormal,
		Status:          models.RequestStatusOpen,
		LocationDisplay: "Springfield area",
		Location:        "742 Evergreen Terrace, Springfield",
		PointValue:      10,
	}
}

func TestToRequestDTO_Location(t *testing.T) {
	tests := []struct {
		name     string
		settings models.PrivacySettings
		viewerID uint64
		rel      privacy.Relationship
		visible  bool
	}{
		{"stranger, restrictive", models.PrivacySettings{}, 2, privacy.RelationshipNone, false},
		{"stranger, owner opted in", models.PrivacySettings{ShowExactLocation: true}, 2, privacy.RelationshipNone, true},
		{"active performer", models.PrivacySettings{}, 2, privacy.RelationshipActiveAssignment, true},
		{"owner", models.PrivacySettings{}, 1, privacy.RelationshipNone, true},
		{"anonymous", models.PrivacySettings{}, 0, privacy.RelationshipNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToRequestDTO(request(owner(tt.settings)), tt.viewerID, tt.rel)

			assert.Equal(t, "Springfield area", got.LocationDisplay)
			if tt.visible {
				require.NotNil(t, got.Location)
				assert.Equal(t, "742 Evergreen Terrace, Springfield", *got.Location)
			} else {
				assert.Nil(t, got.Location)
			}
		})
	}
}

func TestToRequestDTO_OwnerBlockIsResolved(t *testing.T) {
	got := ToRequestDTO(request(owner(models.PrivacySettings{ShowPhone: true})), 2, privacy.RelationshipNone)

	assert.Equal(t, uint64(1), got.Owner.UserID)
	assert.Equal(t, "Owner", got.Owner.DisplayName)
	assert.Nil(t, got.Owner.Email)
	require.NotNil(t, got.Owner.Phone)
	assert.Equal(t, "555-0100", *got.Owner.Phone)
	assert.Equal(t, []string{}, got.Requirements)
	assert.Nil(t, got.Assignment)
}

func TestToRequestDTO_NoLocationSupplied(t *testing.T) {
	r := request(owner(models.PrivacySettings{}))
	r.Location = ""

	got := ToRequestDTO(r, 1, privacy.RelationshipNone)
	assert.Nil(t, got.Location)
}

func TestToAssignmentDTO(t *testing.T) {
	o := owner(models.PrivacySettings{})
	performer := models.User{
		ID:      2,
		Email:   "helper@example.com",
		Profile: models.Profile{UserID: 2, DisplayName: "Helper", Phone: "555-0199"},
	}
	a := models.Assignment{
		ID:          5,
		RequestID:   10,
		PerformerID: 2,
		Status:      models.AssignmentStatusInProgress,
		ClaimedAt:   time.Now(),
		ProofPhotos: datatypes.NewJSONSlice([]string{"a.jpg"}),
		Request:     request(o),
		Performer:   performer,
	}

	got := ToAssignmentDTO(a, 2)
	require.NotNil(t, got.Owner.Email)
	assert.Equal(t, "owner@example.com", *got.Owner.Email)
	require.NotNil(t, got.Request.Location)
	assert.Equal(t, []string{"a.jpg"}, got.ProofPhotos)

	// confirmed work no longer links the parties
	a.Status = models.AssignmentStatusConfirmed
	got = ToAssignmentDTO(a, 2)
	assert.Nil(t, got.Owner.Email)
	assert.Nil(t, got.Request.Location)
	require.NotNil(t, got.Performer.Email)
}

func TestToProfileDTO_PrivacyEchoedToOwnerOnly(t *testing.T) {
	u := owner(models.PrivacySettings{ShowEmail: true})

	self := ToProfileDTO(u, 1, privacy.RelationshipNone)
	require.NotNil(t, self.Privacy)
	assert.True(t, self.Privacy.ShowEmail)

	other := ToProfileDTO(u, 2, privacy.RelationshipNone)
	assert.Nil(t, other.Privacy)
	require.NotNil(t, other.Email)
	assert.Nil(t, other.Phone)
	require.NotNil(t, other.City)
	assert.Equal(t, "Springfield area", *other.City)
}

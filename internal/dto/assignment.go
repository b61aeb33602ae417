package dto

import (
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
)

// AssignmentDTO represents an assignment as seen by one of its parties
type AssignmentDTO struct {
	ID          uint64                  `json:"id"`
	RequestID   uint64                  `json:"request_id"`
	Status      models.AssignmentStatus `json:"status"`
	ClaimedAt   time.Time               `json:"claimed_at"`
	CompletedAt *time.Time              `json:"completed_at"`
	ConfirmedAt *time.Time              `json:"confirmed_at"`
	Notes       string                  `json:"notes"`
	ProofPhotos []string                `json:"proof_photos"`
	Request     RequestDTO              `json:"request"`
	Owner       privacy.View            `json:"owner"`
	Performer   privacy.View            `json:"performer"`
}

// OutcomeDTO reports what completing or confirming an assignment did
type OutcomeDTO struct {
	Assignment    AssignmentDTO `json:"assignment"`
	PointsAwarded int           `json:"points_awarded"`
	Successor     *RequestDTO   `json:"successor,omitempty"`
}

// AssignmentRelationship is the relationship between the two parties of a.
// It lapses once the assignment is confirmed.
func AssignmentRelationship(a models.Assignment) privacy.Relationship {
	if a.Status.Active() {
		return privacy.RelationshipActiveAssignment
	}
	return privacy.RelationshipNone
}

// ToAssignmentDTO converts an assignment loaded with Request.Owner.Profile and
// Performer.Profile for viewerID
func ToAssignmentDTO(assignment models.Assignment, viewerID uint64) AssignmentDTO {
	rel := AssignmentRelationship(assignment)

	return AssignmentDTO{
		ID:          assignment.ID,
		RequestID:   assignment.RequestID,
		Status:      assignment.Status,
		ClaimedAt:   assignment.ClaimedAt,
		CompletedAt: assignment.CompletedAt,
		ConfirmedAt: assignment.ConfirmedAt,
		Notes:       assignment.Notes,
		ProofPhotos: orEmpty(assignment.ProofPhotos),
		Request:     ToRequestDTO(assignment.Request, viewerID, rel),
		Owner:       ToParticipant(assignment.Request.Owner, viewerID, rel),
		Performer:   ToParticipant(assignment.Performer, viewerID, rel),
	}
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type AssignmentStatus string

const (
	AssignmentStatusClaimed    AssignmentStatus = "CLAIMED"
	AssignmentStatusInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentStatusCompleted  AssignmentStatus = "COMPLETED"
	AssignmentStatusConfirmed  AssignmentStatus = "CONFIRMED"
)

// Workable reports whether the performer may still release or complete.
func (s AssignmentStatus) Workable() bool {
	return s == AssignmentStatusClaimed || s == AssignmentStatusInProgress
}

// Active reports whether the assignment still binds performer and owner.
func (s AssignmentStatus) Active() bool {
	return s.Workable() || s == AssignmentStatusCompleted
}

// ActiveAssignmentStatuses are the states in which performer and owner
// coordinate directly.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusClaimed,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
}

type Assignment struct {
	ID          uint64                      `gorm:"primarykey" json:"id"`
	RequestID   uint64                      `gorm:"not null;uniqueIndex" json:"request_id"`
	PerformerID uint64                      `gorm:"not null;index" json:"performer_id"`
	Status      AssignmentStatus            `gorm:"type:varchar(20);not null;default:'CLAIMED'" json:"status"`
	ClaimedAt   time.Time                   `gorm:"not null" json:"claimed_at"`
	CompletedAt *time.Time                  `json:"completed_at"`
	ConfirmedAt *time.Time                  `json:"confirmed_at"`
	Notes       string                      `gorm:"type:text" json:"notes"`
	ProofPhotos datatypes.JSONSlice[string] `json:"proof_photos"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	// Relations
	Request   Request `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	Performer User    `gorm:"foreignKey:PerformerID" json:"performer,omitempty"`
}

package models

import (
	"time"

	"gorm.io/datatypes"
)

type Category string

const (
	CategoryVisits         Category = "VISITS"
	CategoryTransportation Category = "TRANSPORTATION"
	CategoryErrands        Category = "ERRANDS"
	CategoryTutoring       Category = "TUTORING"
	CategoryMeals          Category = "MEALS"
	CategoryHousehold      Category = "HOUSEHOLD"
	CategoryTechnology     Category = "TECHNOLOGY"
	CategoryOther          Category = "OTHER"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryVisits,
	CategoryTransportation,
	CategoryErrands,
	CategoryTutoring,
	CategoryMeals,
	CategoryHousehold,
	CategoryTechnology,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyNormal Urgency = "NORMAL"
	UrgencyHigh   Urgency = "HIGH"
	UrgencyUrgent Urgency = "URGENT"
)

// Valid reports whether u is one of the known urgency levels.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusOpen       RequestStatus = "OPEN"
	RequestStatusClaimed    RequestStatus = "CLAIMED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusConfirmed  RequestStatus = "CONFIRMED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
	RequestStatusDisputed   RequestStatus = "DISPUTED"
	RequestStatusExpired    RequestStatus = "EXPIRED"
)

// Valid reports whether s is one of the known request states.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusOpen, RequestStatusClaimed, RequestStatusInProgress,
		RequestStatusCompleted, RequestStatusConfirmed, RequestStatusCancelled,
		RequestStatusDisputed, RequestStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestStatusConfirmed, RequestStatusCancelled, RequestStatusDisputed, RequestStatusExpired:
		return true
	}
	return false
}

type RecurrenceType string

const (
	RecurrenceWeekly   RecurrenceType = "WEEKLY"
	RecurrenceBiweekly RecurrenceType = "BIWEEKLY"
	RecurrenceMonthly  RecurrenceType = "MONTHLY"
	RecurrenceCustom   RecurrenceType = "CUSTOM"
)

// Valid reports whether r is one of the known recurrence types.
func (r RecurrenceType) Valid() bool {
	switch r {
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceCustom:
		return true
	}
	return false
}

type Request struct {
	ID              uint64        `gorm:"primarykey" json:"id"`
	OwnerID         uint64        `gorm:"not null;index" json:"owner_id"`
	Title           string        `gorm:"type:varchar(200);not null" json:"title"`
	Description     string        `gorm:"type:text" json:"description"`
	Category        Category      `gorm:"type:varchar(20);not null;index" json:"category"`
	Urgency         Urgency       `gorm:"type:varchar(10);not null;default:'NORMAL'" json:"urgency"`
	Status          RequestStatus `gorm:"type:varchar(20);not null;default:'OPEN';index" json:"status"`
	LocationDisplay string        `gorm:"type:varchar(255);not null" json:"location_display"`
	Location        string        `gorm:"type:varchar(500)" json:"location,omitempty"`
	TimeWindowStart *time.Time    `json:"time_window_start"`
	TimeWindowEnd   *time.Time    `json:"time_window_end"`

	Requirements      datatypes.JSONSlice[string] `json:"requirements"`
	Attachments       datatypes.JSONSlice[string] `json:"attachments"`
	EstimatedDuration int                         `json:"estimated_duration"`
	MaxPerformers     int                         `gorm:"not null;default:1" json:"max_performers"`
	PointValue        int                         `gorm:"not null;default:0" json:"point_value"`

	IsRecurring        bool            `gorm:"not null;default:false" json:"is_recurring"`
	RecurrenceType     *RecurrenceType `gorm:"type:varchar(20)" json:"recurrence_type"`
	RecurrenceInterval *int            `json:"recurrence_interval"`
	RecurrenceEndDate  *time.Time      `json:"recurrence_end_date"`
	ParentRequestID    *uint64         `gorm:"index" json:"parent_request_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Owner      User        `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Assignment *Assignment `gorm:"foreignKey:RequestID" json:"assignment,omitempty"`
}

// HasLocation reports whether a precise address was supplied.
func (r *Request) HasLocation() bool {
	return r.Location != ""
}

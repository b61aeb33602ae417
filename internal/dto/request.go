package dto

import (
	"time"

	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
)

// RequestDTO represents a request in API responses. Location is present only
// when the viewer may see the exact address.
type RequestDTO struct {
	ID                 uint64                 `json:"id"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description"`
	Category           models.Category        `json:"category"`
	Urgency            models.Urgency         `json:"urgency"`
	Status             models.RequestStatus   `json:"status"`
	LocationDisplay    string                 `json:"location_display"`
	Location           *string                `json:"location,omitempty"`
	TimeWindowStart    *time.Time             `json:"time_window_start"`
	TimeWindowEnd      *time.Time             `json:"time_window_end"`
	Requirements       []string               `json:"requirements"`
	Attachments        []string               `json:"attachments"`
	EstimatedDuration  int                    `json:"estimated_duration"`
	MaxPerformers      int                    `json:"max_performers"`
	PointValue         int                    `json:"point_value"`
	IsRecurring        bool                   `json:"is_recurring"`
	RecurrenceType     *models.RecurrenceType `json:"recurrence_type,omitempty"`
	RecurrenceInterval *int                   `json:"recurrence_interval,omitempty"`
	RecurrenceEndDate  *time.Time             `json:"recurrence_end_date,omitempty"`
	ParentRequestID    *uint64                `json:"parent_request_id,omitempty"`
	OwnerID            uint64                 `json:"owner_id"`
	Owner              privacy.View           `json:"owner"`
	Assignment         *AssignmentSummaryDTO  `json:"assignment,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// AssignmentSummaryDTO is the claim state embedded in a request
type AssignmentSummaryDTO struct {
	ID          uint64                  `json:"id"`
	PerformerID uint64                  `json:"performer_id"`
	Status      models.AssignmentStatus `json:"status"`
	ClaimedAt   time.Time               `json:"claimed_at"`
}

// RequestListResponse represents a paginated list of requests
type RequestListResponse struct {
	Requests   []RequestDTO             `json:"requests"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToRequestDTO converts request for viewerID. request.Owner must be loaded
// with its profile; rel is the viewer's relationship to the owner.
func ToRequestDTO(request models.Request, viewerID uint64, rel privacy.Relationship) RequestDTO {
	owner := privacy.SubjectFromUser(&request.Owner)
	if owner.UserID == 0 {
		owner.UserID = request.OwnerID
	}

	dto := RequestDTO{
		ID:                 request.ID,
		Title:              request.Title,
		Description:        request.Description,
		Category:           request.Category,
		Urgency:            request.Urgency,
		Status:             request.Status,
		LocationDisplay:    request.LocationDisplay,
		TimeWindowStart:    request.TimeWindowStart,
		TimeWindowEnd:      request.TimeWindowEnd,
		Requirements:       orEmpty(request.Requirements),
		Attachments:        orEmpty(request.Attachments),
		EstimatedDuration:  request.EstimatedDuration,
		MaxPerformers:      request.MaxPerformers,
		PointValue:         request.PointValue,
		IsRecurring:        request.IsRecurring,
		RecurrenceType:     request.RecurrenceType,
		RecurrenceInterval: request.RecurrenceInterval,
		RecurrenceEndDate:  request.RecurrenceEndDate,
		ParentRequestID:    request.ParentRequestID,
		OwnerID:            request.OwnerID,
		Owner:              privacy.Resolve(owner, viewerID, rel),
		CreatedAt:          request.CreatedAt,
		UpdatedAt:          request.UpdatedAt,
	}

	if request.HasLocation() && privacy.CanSeeExactLocation(owner, viewerID, rel) {
		location := request.Location
		dto.Location = &location
	}

	if a := request.Assignment; a != nil {
		dto.Assignment = &AssignmentSummaryDTO{
			ID:          a.ID,
			PerformerID: a.PerformerID,
			Status:      a.Status,
			ClaimedAt:   a.ClaimedAt,
		}
	}

	return dto
}

// ToRequestListResponse wraps converted requests with pagination metadata
func ToRequestListResponse(items []RequestDTO, params utils.PaginationParams, total int64) RequestListResponse {
	if items == nil {
		items = []RequestDTO{}
	}
	return RequestListResponse{
		Requests:   items,
		Pagination: params.Response(total),
	}
}

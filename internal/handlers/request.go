package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/dto"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/middleware"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/services"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
)

type RequestHandler struct {
	requests    *services.RequestService
	assignments *services.AssignmentService
	aiService   *services.AIService
}

func NewRequestHandler(requests *services.RequestService, assignments *services.AssignmentService, aiService *services.AIService) *RequestHandler {
	return &RequestHandler{
		requests:    requests,
		assignments: assignments,
		aiService:   aiService,
	}
}

// ListRequests returns a page of requests
// Can filter by status, category and owner
func (h *RequestHandler) ListRequests(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	input := services.ListRequestsInput{ViewerID: userID}

	if s := c.Query("status"); s != "" {
		status := models.RequestStatus(strings.ToUpper(s))
		input.Status = &status
	}
	if s := c.Query("category"); s != "" {
		category := models.Category(strings.ToUpper(s))
		input.Category = &category
	}
	if s := c.Query("owner"); s != "" {
		ownerID, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid owner")
			return
		}
		input.OwnerID = &ownerID
	}

	params := utils.GetPaginationParams(c)
	input.Page = params.Page
	input.PageSize = params.Limit

	results, total, err := h.requests.List(c.Request.Context(), input)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	items := make([]dto.RequestDTO, len(results))
	for i, result := range results {
		items[i] = dto.ToRequestDTO(*result.Request, userID, result.OwnerRelationship)
	}

	c.JSON(http.StatusOK, dto.ToRequestListResponse(items, params, total))
}

// GetRequest returns a specific request by ID
func (h *RequestHandler) GetRequest(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	result, err := h.requests.Get(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRequestDTO(*result.Request, userID, result.OwnerRelationship))
}

// CreateRequest posts a new request
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type CreateRequestRequest struct {
		Title              string                 `json:"title" binding:"required,max=200"`
		Description        string                 `json:"description"`
		Category           models.Category        `json:"category" binding:"required,category"`
		Urgency            models.Urgency         `json:"urgency" binding:"omitempty,urgency"`
		LocationDisplay    string                 `json:"location_display" binding:"required,max=255"`
		Location           string                 `json:"location" binding:"max=500"`
		TimeWindowStart    *time.Time             `json:"time_window_start"`
		TimeWindowEnd      *time.Time             `json:"time_window_end"`
		Requirements       []string               `json:"requirements" binding:"max=20"`
		Attachments        []string               `json:"attachments" binding:"max=20"`
		EstimatedDuration  int                    `json:"estimated_duration" binding:"min=0"`
		MaxPerformers      int                    `json:"max_performers" binding:"min=0"`
		Modifiers          []string               `json:"modifiers"`
		IsRecurring        bool                   `json:"is_recurring"`
		RecurrenceType     *models.RecurrenceType `json:"recurrence_type" binding:"omitempty,recurrence"`
		RecurrenceInterval *int                   `json:"recurrence_interval"`
		RecurrenceEndDate  *time.Time             `json:"recurrence_end_date"`
	}

	var req CreateRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	request, err := h.requests.Create(c.Request.Context(), services.CreateRequestInput{
		OwnerID:            userID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Urgency:            req.Urgency,
		LocationDisplay:    req.LocationDisplay,
		Location:           req.Location,
		TimeWindowStart:    req.TimeWindowStart,
		TimeWindowEnd:      req.TimeWindowEnd,
		Requirements:       req.Requirements,
		Attachments:        req.Attachments,
		EstimatedDuration:  req.EstimatedDuration,
		MaxPerformers:      req.MaxPerformers,
		Modifiers:          req.Modifiers,
		IsRecurring:        req.IsRecurring,
		RecurrenceType:     req.RecurrenceType,
		RecurrenceInterval: req.RecurrenceInterval,
		RecurrenceEndDate:  req.RecurrenceEndDate,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToRequestDTO(*request, userID, privacy.RelationshipNone))
}

// DraftRequest suggests a request from a free-text description using AI
func (h *RequestHandler) DraftRequest(c *gin.Context) {
	type DraftRequestRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req DraftRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	draft, err := h.aiService.DraftRequest(c.Request.Context(), req.Text)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, draft)
}

// CancelRequest withdraws the caller's own request
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	request, err := h.requests.Cancel(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRequestDTO(*request, userID, privacy.RelationshipNone))
}

// ClaimRequest assigns the caller as performer of an OPEN request
func (h *RequestHandler) ClaimRequest(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	assignment, err := h.assignments.Claim(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToAssignmentDTO(*assignment, userID))
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/dto"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/middleware"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/services"
)

// AssignmentHandler serves the performer/owner lifecycle actions
type AssignmentHandler struct {
	assignments *services.AssignmentService
}

func NewAssignmentHandler(assignments *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// GetAssignment returns an assignment to the owner or performer
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	assignment, err := h.assignments.Get(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssignmentDTO(*assignment, userID))
}

// StartAssignment marks the caller's claim as in progress
func (h *AssignmentHandler) StartAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	assignment, err := h.assignments.Start(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssignmentDTO(*assignment, userID))
}

// ReleaseAssignment gives the request back; the response is the reopened request
func (h *AssignmentHandler) ReleaseAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	request, err := h.assignments.Release(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRequestDTO(*request, userID, privacy.RelationshipNone))
}

// CompleteAssignment records the performer's report
func (h *AssignmentHandler) CompleteAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	type CompleteRequest struct {
		Notes       string   `json:"notes" binding:"max=5000"`
		ProofPhotos []string `json:"proof_photos" binding:"max=10,dive,max=2048"`
	}

	var req CompleteRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	outcome, err := h.assignments.Complete(c.Request.Context(), services.CompleteInput{
		AssignmentID: middleware.GetIDParam(c),
		ActorID:      userID,
		Notes:        req.Notes,
		ProofPhotos:  req.ProofPhotos,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, toOutcomeDTO(outcome, userID))
}

// ConfirmAssignment lets the owner accept completed work and leave a review
func (h *AssignmentHandler) ConfirmAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	type ConfirmRequest struct {
		Rating *int   `json:"rating" binding:"omitempty,min=1,max=5"`
		Review string `json:"review" binding:"max=5000"`
	}

	var req ConfirmRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	outcome, err := h.assignments.Confirm(c.Request.Context(), services.ConfirmInput{
		AssignmentID: middleware.GetIDParam(c),
		ActorID:      userID,
		Rating:       req.Rating,
		Review:       req.Review,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, toOutcomeDTO(outcome, userID))
}

// DisputeAssignment flags the request for moderation
func (h *AssignmentHandler) DisputeAssignment(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	type DisputeRequest struct {
		Reason string `json:"reason" binding:"required,max=2000"`
	}

	var req DisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	assignment, err := h.assignments.Dispute(c.Request.Context(), middleware.GetIDParam(c), userID, req.Reason)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToAssignmentDTO(*assignment, userID))
}

func toOutcomeDTO(outcome *services.Outcome, viewerID uint64) dto.OutcomeDTO {
	result := dto.OutcomeDTO{
		Assignment:    dto.ToAssignmentDTO(*outcome.Assignment, viewerID),
		PointsAwarded: outcome.PointsAwarded,
	}
	if outcome.Successor != nil {
		successor := dto.ToRequestDTO(*outcome.Successor, viewerID, privacy.RelationshipNone)
		result.Successor = &successor
	}
	return result
}

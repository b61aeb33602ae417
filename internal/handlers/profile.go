package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/dto"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/middleware"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/privacy"
	"github.com/yukikurage/favor-exchange-api/internal/services"
	"github.com/yukikurage/favor-exchange-api/internal/utils"
)

// ProfileHandler serves member profiles, balances and reviews
type ProfileHandler struct {
	profiles *services.ProfileService
	ledger   *services.LedgerService
}

func NewProfileHandler(profiles *services.ProfileService, ledger *services.LedgerService) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		ledger:   ledger,
	}
}

// GetProfile returns a member profile resolved for the caller
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	result, err := h.profiles.Get(c.Request.Context(), middleware.GetIDParam(c), userID)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProfileDTO(*result.User, userID, result.Relationship))
}

// UpdateProfile edits the caller's own profile
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type UpdateProfileRequest struct {
		DisplayName  *string                 `json:"display_name" binding:"omitempty,max=100"`
		Bio          *string                 `json:"bio" binding:"omitempty,max=5000"`
		City         *string                 `json:"city" binding:"omitempty,max=255"`
		Neighborhood *string                 `json:"neighborhood" binding:"omitempty,max=255"`
		Phone        *string                 `json:"phone" binding:"omitempty,max=50"`
		Skills       []string                `json:"skills" binding:"omitempty,max=50"`
		Languages    []string                `json:"languages" binding:"omitempty,max=20"`
		Privacy      *models.PrivacySettings `json:"privacy"`
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.profiles.Update(c.Request.Context(), userID, services.UpdateProfileInput{
		DisplayName:  req.DisplayName,
		Bio:          req.Bio,
		City:         req.City,
		Neighborhood: req.Neighborhood,
		Phone:        req.Phone,
		Skills:       req.Skills,
		Languages:    req.Languages,
		Privacy:      req.Privacy,
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProfileDTO(*user, userID, privacy.RelationshipNone))
}

// GetPoints returns the caller's balance and ledger history
func (h *ProfileHandler) GetPoints(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)
	summary, err := h.ledger.Summary(c.Request.Context(), userID, params.Page, params.Limit)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPointsDTO(summary.Balance, summary.Entries, params, summary.Total))
}

// ListReviews returns the reviews a member received
func (h *ProfileHandler) ListReviews(c *gin.Context) {
	reviews, err := h.ledger.Reviews(c.Request.Context(), middleware.GetIDParam(c))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": dto.ToReviewDTOs(reviews),
	})
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/metrics"
	"github.com/yukikurage/favor-exchange-api/internal/middleware"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth        *AuthHandler
	Requests    *RequestHandler
	Assignments *AssignmentHandler
	Profiles    *ProfileHandler
	Health      *HealthHandler
}

// RegisterRoutes mounts the API on r. authenticator guards every route
// outside the public auth endpoints.
func RegisterRoutes(r *gin.Engine, h Handlers, authenticator middleware.Authenticator) {
	RegisterValidators()
	requireAuth := middleware.RequireAuth(authenticator)

	// Health check endpoint
	r.GET("/health", h.Health.Health)
	r.GET("/metrics", metrics.Handler())

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.Auth.Signup)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/password-reset", h.Auth.RequestPasswordReset)
			auth.POST("/password-reset/confirm", h.Auth.ResetPassword)
			auth.POST("/logout", requireAuth, h.Auth.Logout)
			auth.GET("/me", requireAuth, h.Auth.GetCurrentUser)
		}

		// Request routes (protected)
		requests := api.Group("/requests")
		requests.Use(requireAuth)
		{
			requireRequestID := middleware.RequireIDParam("request")

			requests.GET("", h.Requests.ListRequests)
			requests.POST("", h.Requests.CreateRequest)
			requests.POST("/draft", h.Requests.DraftRequest)
			requests.GET("/:id", requireRequestID, h.Requests.GetRequest)
			requests.POST("/:id/cancel", requireRequestID, h.Requests.CancelRequest)
			requests.POST("/:id/claim", requireRequestID, h.Requests.ClaimRequest)
		}

		// Assignment routes (protected)
		assignments := api.Group("/assignments")
		assignments.Use(requireAuth, middleware.RequireIDParam("assignment"))
		{
			assignments.GET("/:id", h.Assignments.GetAssignment)
			assignments.POST("/:id/start", h.Assignments.StartAssignment)
			assignments.POST("/:id/release", h.Assignments.ReleaseAssignment)
			assignments.POST("/:id/complete", h.Assignments.CompleteAssignment)
			assignments.POST("/:id/confirm", h.Assignments.ConfirmAssignment)
			assignments.POST("/:id/dispute", h.Assignments.DisputeAssignment)
		}

		// Member routes (protected)
		users := api.Group("/users")
		users.Use(requireAuth, middleware.RequireIDParam("user"))
		{
			users.GET("/:id/profile", h.Profiles.GetProfile)
			users.GET("/:id/reviews", h.Profiles.ListReviews)
		}

		api.PUT("/profile", requireAuth, h.Profiles.UpdateProfile)
		api.GET("/points", requireAuth, h.Profiles.GetPoints)
	}
}

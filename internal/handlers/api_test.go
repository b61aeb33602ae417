package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/favor-exchange-api/internal/auth"
	"github.com/yukikurage/favor-exchange-api/internal/dto"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/models"
	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"github.com/yukikurage/favor-exchange-api/internal/services"
	"github.com/yukikurage/favor-exchange-api/internal/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APITestSuite drives the full router against an in-memory database
type APITestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine

	ownerToken     string
	performerToken string
	otherToken     string
	ownerID        uint64
	performerID    uint64
}

func (suite *APITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	suite.db = testutil.NewDB(suite.T())
	gw := repository.NewGateway(suite.db)
	logger := zap.NewNop()

	tokens, err := auth.NewTokenManager("api-test-secret", time.Hour)
	suite.Require().NoError(err)
	revocation := auth.NewRevocationStore(nil)
	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(logger), logger)

	authService := services.NewAuthService(gw, tokens, revocation, dispatcher, logger)
	requestService := services.NewRequestService(gw, dispatcher, logger)
	assignmentService := services.NewAssignmentService(gw, dispatcher, logger)

	suite.router = gin.New()
	RegisterRoutes(suite.router, Handlers{
		Auth:        NewAuthHandler(authService, false),
		Requests:    NewRequestHandler(requestService, assignmentService, services.NewAIService("", logger)),
		Assignments: NewAssignmentHandler(assignmentService),
		Profiles:    NewProfileHandler(services.NewProfileService(gw), services.NewLedgerService(gw)),
		Health:      NewHealthHandler(gw, revocation, logger),
	}, authService)

	suite.ownerID, suite.ownerToken = suite.signupAndLogin("owner@example.com", "Olive Owner")
	suite.performerID, suite.performerToken = suite.signupAndLogin("helper@example.com", "Hank Helper")
	_, suite.otherToken = suite.signupAndLogin("other@example.com", "Otto Other")
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func (suite *APITestSuite) do(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		suite.Require().NoError(err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *APITestSuite) decode(w *httptest.ResponseRecorder, out interface{}) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func (suite *APITestSuite) signupAndLogin(email, name string) (uint64, string) {
	w := suite.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":        email,
		"password":     "supersecret",
		"display_name": name,
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    email,
		"password": "supersecret",
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var session dto.SessionDTO
	suite.decode(w, &session)
	return session.User.ID, session.Token
}

func (suite *APITestSuite) createRequest(category string) dto.RequestDTO {
	w := suite.do(http.MethodPost, "/api/requests", suite.ownerToken, map[string]interface{}{
		"title":            "Drive me to the clinic",
		"category":         category,
		"location_display": "Riverside area",
		"location":         "12 Mill Lane, Riverside",
	})
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var request dto.RequestDTO
	suite.decode(w, &request)
	return request
}

func (suite *APITestSuite) errorCode(w *httptest.ResponseRecorder) string {
	var apiErr apierrors.APIError
	suite.decode(w, &apiErr)
	return apiErr.Code
}

func (suite *APITestSuite) TestHealth() {
	w := suite.do(http.MethodGet, "/health", "", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"database":"ok"`)
	suite.NotContains(w.Body.String(), "redis")
}

func (suite *APITestSuite) TestMe_RequiresToken() {
	w := suite.do(http.MethodGet, "/api/auth/me", "", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/api/auth/me", "not-a-token", nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.do(http.MethodGet, "/api/auth/me", suite.ownerToken, nil)
	suite.Equal(http.StatusOK, w.Code)

	var me dto.UserDTO
	suite.decode(w, &me)
	suite.Equal(suite.ownerID, me.ID)
	suite.Equal("Olive Owner", me.DisplayName)
}

func (suite *APITestSuite) TestLogout() {
	w := suite.do(http.MethodPost, "/api/auth/logout", suite.ownerToken, nil)
	suite.Equal(http.StatusOK, w.Code)

	cleared := false
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "token" && cookie.MaxAge < 0 {
			cleared = true
		}
	}
	suite.True(cleared)
}

func (suite *APITestSuite) TestCreateRequest_Validation() {
	w := suite.do(http.MethodPost, "/api/requests", suite.ownerToken, map[string]interface{}{
		"title":            "Walk the dog",
		"category":         "GARDENING",
		"location_display": "Riverside area",
	})
	suite.Equal(http.StatusBadRequest, w.Code)

	var apiErr apierrors.APIError
	suite.decode(w, &apiErr)
	suite.Equal(apierrors.ErrCodeInvalidInput, apiErr.Code)
	details, ok := apiErr.Details.(map[string]interface{})
	suite.Require().True(ok)
	suite.Equal("category", details["category"])

	w = suite.do(http.MethodPost, "/api/requests", suite.ownerToken, map[string]interface{}{
		"category": "ERRANDS",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
	suite.decode(w, &apiErr)
	details, ok = apiErr.Details.(map[string]interface{})
	suite.Require().True(ok)
	suite.Equal("required", details["title"])
	suite.Equal("required", details["location_display"])
}

func (suite *APITestSuite) TestCreateRequest_PointValue() {
	request := suite.createRequest("TRANSPORTATION")

	suite.Equal(15, request.PointValue)
	suite.Equal(models.RequestStatusOpen, request.Status)
	suite.Require().NotNil(request.Location)
	suite.Equal("12 Mill Lane, Riverside", *request.Location)
}

func (suite *APITestSuite) TestGetRequest_LocationFollowsRelationship() {
	request := suite.createRequest("ERRANDS")
	path := fmt.Sprintf("/api/requests/%d", request.ID)

	w := suite.do(http.MethodGet, path, suite.otherToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var seen dto.RequestDTO
	suite.decode(w, &seen)
	suite.Nil(seen.Location)
	suite.Equal("Riverside area", seen.LocationDisplay)
	suite.Nil(seen.Owner.Email)
	suite.Equal("Olive Owner", seen.Owner.DisplayName)

	w = suite.do(http.MethodPost, path+"/claim", suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	w = suite.do(http.MethodGet, path, suite.performerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	seen = dto.RequestDTO{}
	suite.decode(w, &seen)
	suite.Require().NotNil(seen.Location)
	suite.Equal("12 Mill Lane, Riverside", *seen.Location)
	suite.Require().NotNil(seen.Owner.Email)
	suite.Equal("owner@example.com", *seen.Owner.Email)
	suite.Require().NotNil(seen.Assignment)
	suite.Equal(suite.performerID, seen.Assignment.PerformerID)
}

func (suite *APITestSuite) TestListRequests() {
	suite.createRequest("ERRANDS")
	suite.createRequest("TUTORING")

	w := suite.do(http.MethodGet, "/api/requests?category=tutoring&limit=10", suite.otherToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var list dto.RequestListResponse
	suite.decode(w, &list)
	suite.Require().Len(list.Requests, 1)
	suite.Equal(models.CategoryTutoring, list.Requests[0].Category)
	suite.Nil(list.Requests[0].Location)
	suite.EqualValues(1, list.Pagination.Total)

	w = suite.do(http.MethodGet, "/api/requests?status=bogus", suite.otherToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/requests?owner=abc", suite.otherToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestInvalidIDParam() {
	w := suite.do(http.MethodGet, "/api/requests/abc", suite.ownerToken, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.do(http.MethodGet, "/api/requests/999", suite.ownerToken, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *APITestSuite) TestClaim_ConflictCodes() {
	request := suite.createRequest("ERRANDS")
	claimPath := fmt.Sprintf("/api/requests/%d/claim", request.ID)

	w := suite.do(http.MethodPost, claimPath, suite.ownerToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, claimPath, suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)

	w = suite.do(http.MethodPost, claimPath, suite.otherToken, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeConflict, suite.errorCode(w))

	cancelled := suite.createRequest("ERRANDS")
	w = suite.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/cancel", cancelled.ID), suite.ownerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/claim", cancelled.ID), suite.otherToken, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeInvalidState, suite.errorCode(w))
}

func (suite *APITestSuite) TestAssignmentLifecycle() {
	request := suite.createRequest("TRANSPORTATION")

	w := suite.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/claim", request.ID), suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	var claimed dto.AssignmentDTO
	suite.decode(w, &claimed)
	suite.Equal(models.AssignmentStatusClaimed, claimed.Status)

	base := fmt.Sprintf("/api/assignments/%d", claimed.ID)

	w = suite.do(http.MethodGet, base, suite.otherToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, base+"/start", suite.ownerToken, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.do(http.MethodPost, base+"/start", suite.performerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w = suite.do(http.MethodPost, base+"/complete", suite.performerToken, map[string]interface{}{
		"notes":        "Dropped off at the front desk",
		"proof_photos": []string{"https://img.example.com/1.jpg"},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var outcome dto.OutcomeDTO
	suite.decode(w, &outcome)
	suite.Equal(15, outcome.PointsAwarded)
	suite.Equal(models.AssignmentStatusConfirmed, outcome.Assignment.Status)
	suite.Nil(outcome.Successor)

	w = suite.do(http.MethodPost, base+"/complete", suite.performerToken, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeInvalidState, suite.errorCode(w))

	w = suite.do(http.MethodGet, "/api/points", suite.performerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var points dto.PointsDTO
	suite.decode(w, &points)
	suite.Equal(15, points.Balance)
	suite.Require().Len(points.Entries, 1)
	suite.Equal(15, points.Entries[0].Delta)
}

func (suite *APITestSuite) TestClaim_ConfirmedRequestIsInvalidState() {
	request := suite.createRequest("ERRANDS")
	claimPath := fmt.Sprintf("/api/requests/%d/claim", request.ID)

	w := suite.do(http.MethodPost, claimPath, suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	var claimed dto.AssignmentDTO
	suite.decode(w, &claimed)

	w = suite.do(http.MethodPost, fmt.Sprintf("/api/assignments/%d/complete", claimed.ID), suite.performerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	w = suite.do(http.MethodPost, claimPath, suite.otherToken, nil)
	suite.Equal(http.StatusConflict, w.Code)
	suite.Equal(apierrors.ErrCodeInvalidState, suite.errorCode(w))
}

func (suite *APITestSuite) TestReleaseAssignment() {
	request := suite.createRequest("ERRANDS")

	w := suite.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/claim", request.ID), suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	var claimed dto.AssignmentDTO
	suite.decode(w, &claimed)

	w = suite.do(http.MethodPost, fmt.Sprintf("/api/assignments/%d/release", claimed.ID), suite.performerToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var reopened dto.RequestDTO
	suite.decode(w, &reopened)
	suite.Equal(models.RequestStatusOpen, reopened.Status)
	suite.Nil(reopened.Assignment)
}

func (suite *APITestSuite) TestDispute_RequiresReason() {
	request := suite.createRequest("ERRANDS")

	w := suite.do(http.MethodPost, fmt.Sprintf("/api/requests/%d/claim", request.ID), suite.performerToken, nil)
	suite.Require().Equal(http.StatusCreated, w.Code)
	var claimed dto.AssignmentDTO
	suite.decode(w, &claimed)

	w = suite.do(http.MethodPost, fmt.Sprintf("/api/assignments/%d/dispute", claimed.ID), suite.ownerToken, map[string]string{})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *APITestSuite) TestProfile_UpdateAndView() {
	w := suite.do(http.MethodPut, "/api/profile", suite.ownerToken, map[string]interface{}{
		"city":    "Riverside",
		"phone":   "555-0100",
		"privacy": map[string]bool{"showEmail": true},
	})
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var own dto.ProfileDTO
	suite.decode(w, &own)
	suite.Require().NotNil(own.Privacy)
	suite.True(own.Privacy.ShowEmail)

	w = suite.do(http.MethodGet, fmt.Sprintf("/api/users/%d/profile", suite.ownerID), suite.otherToken, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var seen dto.ProfileDTO
	suite.decode(w, &seen)
	suite.Nil(seen.Privacy)
	suite.Require().NotNil(seen.Email)
	suite.Equal("owner@example.com", *seen.Email)
	suite.Nil(seen.Phone)

	w = suite.do(http.MethodGet, fmt.Sprintf("/api/users/%d/reviews", suite.ownerID), suite.otherToken, nil)
	suite.Equal(http.StatusOK, w.Code)
	suite.JSONEq(`{"reviews":[]}`, w.Body.String())
}

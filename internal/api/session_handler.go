package api

import (
	"net/http"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/middleware"
	"github.com/decipherworld/classroom-server/internal/service"
	"github.com/gin-gonic/gin"
)

// SessionHandler session lifecycle and team roster endpoints
type SessionHandler struct {
	sessionService service.SessionService
}

// NewSessionHandler creates the handler
func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// CreateSession starts a session from a game template
// @Summary Create a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateSessionRequest true "game to run"
// @Success 201 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req service.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam).WithCause(err))
		return
	}

	if facilitatorID, ok := middleware.GetFacilitatorID(c); ok {
		req.FacilitatorID = facilitatorID
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession returns the live snapshot for a join code
// @Summary Session snapshot
// @Tags Sessions
// @Produce json
// @Param code path string true "join code"
// @Success 200 {object} service.SessionSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{code} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	snapshot, err := h.sessionService.GetSessionSnapshot(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// StartSession moves a waiting session into play
// @Summary Start a session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param code path string true "join code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{code}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	session, err := h.sessionService.GetSessionByJoinCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.sessionService.StartSession(c.Request.Context(), session.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "in_progress"})
}

// AbandonSession ends a session early
// @Summary Abandon a session
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param code path string true "join code"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{code}/abandon [post]
func (h *SessionHandler) AbandonSession(c *gin.Context) {
	session, err := h.sessionService.GetSessionByJoinCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.sessionService.AbandonSession(c.Request.Context(), session.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

// ListTeams returns the roster for a join code
// @Summary List teams
// @Tags Sessions
// @Produce json
// @Param code path string true "join code"
// @Success 200 {array} models.Team
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/sessions/{code}/teams [get]
func (h *SessionHandler) ListTeams(c *gin.Context) {
	session, err := h.sessionService.GetSessionByJoinCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	teams, err := h.sessionService.ListTeams(c.Request.Context(), session.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, teams)
}

// CreateTeam registers a team under a join code. Open endpoint: students
// do this from the join screen before any authentication exists.
// @Summary Create a team
// @Tags Sessions
// @Accept json
// @Produce json
// @Param code path string true "join code"
// @Param request body service.CreateTeamRequest true "team data"
// @Success 201 {object} models.Team
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/sessions/{code}/teams [post]
func (h *SessionHandler) CreateTeam(c *gin.Context) {
	var req service.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam).WithCause(err))
		return
	}
	req.JoinCode = c.Param("code")

	team, err := h.sessionService.CreateTeam(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

package api

import (
	"net/http"

	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/middleware"
	"github.com/decipherworld/classroom-server/internal/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler facilitator account endpoints
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates the handler
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a facilitator account
// @Summary Register a facilitator
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.RegisterRequest true "registration data"
// @Success 201 {object} service.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam).WithCause(err))
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login signs a facilitator in
// @Summary Facilitator login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body service.LoginRequest true "credentials"
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam).WithCause(err))
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken exchanges a refresh token for a fresh pair
// @Summary Refresh tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} service.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.ErrInvalidParam).WithCause(err))
		return
	}

	resp, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetProfile returns the authenticated facilitator
// @Summary Facilitator profile
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Facilitator
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/profile [get]
func (h *AuthHandler) GetProfile(c *gin.Context) {
	facilitatorID, ok := middleware.GetFacilitatorID(c)
	if !ok {
		respondError(c, apperrors.New(apperrors.ErrAuthentication))
		return
	}

	facilitator, err := h.authService.GetProfile(c.Request.Context(), facilitatorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, facilitator)
}

package api

import (
	"net/http"

	"github.com/decipherworld/classroom-server/internal/config"
	apperrors "github.com/decipherworld/classroom-server/internal/errors"
	"github.com/decipherworld/classroom-server/internal/middleware"
	"github.com/decipherworld/classroom-server/internal/service"
	"github.com/decipherworld/classroom-server/internal/utils"
	ws "github.com/decipherworld/classroom-server/internal/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrorResponse standard error body for the HTTP surface. Code carries
// the application error code, not the HTTP status.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	authHandler    *AuthHandler
	sessionHandler *SessionHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter builds the HTTP surface. The hub must already carry the game
// message handler; the router only performs the upgrade.
func NewRouter(db *gorm.DB, cfg *service.Config, wsCfg *config.WebSocketConfig, services *service.Services, hub *ws.Hub, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	jwtManager := utils.NewJWTManager(cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		authHandler:    NewAuthHandler(services.Auth),
		sessionHandler: NewSessionHandler(services.Session),
		wsHandler:      NewWebSocketHandler(hub, services.Session, wsCfg, log),
		authMiddleware: middleware.NewAuthMiddleware(jwtManager),
		log:            log,
	}

	router.setupRoutes()
	return router
}

func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.GET("/profile", r.authHandler.GetProfile)
			}
		}

		sessions := v1.Group("/sessions")
		{
			// Students join with nothing but the code, so reads and team
			// creation are open; lifecycle changes need the facilitator.
			sessions.GET("/:code", r.sessionHandler.GetSession)
			sessions.GET("/:code/teams", r.sessionHandler.ListTeams)
			sessions.POST("/:code/teams", r.sessionHandler.CreateTeam)

			facilitatorOnly := sessions.Group("")
			facilitatorOnly.Use(r.authMiddleware.RequireAuth())
			{
				facilitatorOnly.POST("", r.sessionHandler.CreateSession)
				facilitatorOnly.POST("/:code/start", r.sessionHandler.StartSession)
				facilitatorOnly.POST("/:code/abandon", r.sessionHandler.AbandonSession)
			}
		}
	}

	r.engine.GET("/ws/:code", r.wsHandler.SessionWebSocket)

	registerSwaggerRoutes(r.engine)
}

// healthCheck
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Engine exposes the gin engine to the HTTP server.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// respondError maps service failures onto the HTTP error shape, keeping
// the numeric application code alongside the transport status.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{
		Code:    int(apperrors.ErrUnknown),
		Message: err.Error(),
	}

	if appErr, ok := err.(*apperrors.AppError); ok {
		status = appErr.HTTPStatus()
		resp.Code = int(appErr.Code)
		resp.Message = appErr.Message
		resp.Details = appErr.Details
	}
	c.JSON(status, resp)
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/decipherworld/classroom-server/internal/utils"
	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middleware.
const (
	ContextFacilitatorID = "facilitatorID"
	ContextEmail         = "email"
	ContextName          = "name"
)

// AuthMiddleware validates facilitator JWTs on protected routes.
type AuthMiddleware struct {
	jwtManager *utils.JWTManager
}

// NewAuthMiddleware creates the middleware around a token manager.
func NewAuthMiddleware(jwtManager *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// RequireAuth rejects requests without a valid access token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := m.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "NO_TOKEN",
				"message": "missing authentication token",
			})
			c.Abort()
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_TOKEN",
				"message": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// Refresh tokens only mint new access tokens, they never open doors.
		if claims.TokenType != "access" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    "INVALID_TOKEN",
				"message": "access token required",
			})
			c.Abort()
			return
		}

		c.Set(ContextFacilitatorID, claims.FacilitatorID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextName, claims.Name)

		c.Next()
	}
}

// OptionalAuth populates the facilitator context when a valid token is
// present but lets anonymous requests through.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := m.extractToken(c); token != "" {
			if claims, err := m.jwtManager.ValidateToken(token); err == nil && claims.TokenType == "access" {
				c.Set(ContextFacilitatorID, claims.FacilitatorID)
				c.Set(ContextEmail, claims.Email)
				c.Set(ContextName, claims.Name)
			}
		}
		c.Next()
	}
}

// extractToken checks the Authorization header, then the access_token
// cookie, then the token query parameter.
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	bearer := c.GetHeader("Authorization")
	if bearer != "" {
		parts := strings.SplitN(bearer, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}

	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// GetFacilitatorID reads the authenticated facilitator from the context.
func GetFacilitatorID(c *gin.Context) (uint, bool) {
	if v, exists := c.Get(ContextFacilitatorID); exists {
		if id, ok := v.(uint); ok {
			return id, true
		}
	}
	return 0, false
}

// IsAuthenticated reports whether the request carries a valid identity.
func IsAuthenticated(c *gin.Context) bool {
	_, ok := GetFacilitatorID(c)
	return ok
}

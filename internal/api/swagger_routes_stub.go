//go:build !swagger

package api

import "github.com/gin-gonic/gin"

// registerSwaggerRoutes is a no-op outside swagger builds.
func registerSwaggerRoutes(engine *gin.Engine) {}

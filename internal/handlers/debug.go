package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/telemetry"
)

// RegisterDebugRoutes mounts /debug routes when enabled. Audit records are attributed to a user
// only when authenticate runs first and succeeds; pass nil to leave the routes open.
func RegisterDebugRoutes(router *gin.Engine, emitter *telemetry.AuditEmitter, enabled bool, authenticate gin.HandlerFunc) {
	if !enabled {
		return
	}

	debug := router.Group("/debug")
	if authenticate != nil {
		debug.Use(authenticate)
	}
	debug.GET("/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		requestID := requestIDFromContext(c)
		userID := auditUserID(c)
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestID, userID)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "request_id": requestID, "user_id": userID})
	})
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/middleware"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
)

const requestIDContextKey = "request_id"

// requestIDFromContext returns the request id, creating and caching one on first use.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(requestIDContextKey); id != "" {
		return id
	}
	id := observability.RequestIDFromRequest(c.Request)
	c.Set(requestIDContextKey, id)
	return id
}

// auditUserID returns the user authenticated by AuthMiddleware, or nil on unauthenticated routes.
func auditUserID(c *gin.Context) *int64 {
	userID, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return nil
	}
	id, ok := userID.(int)
	if !ok || id <= 0 {
		return nil
	}
	value := int64(id)
	return &value
}

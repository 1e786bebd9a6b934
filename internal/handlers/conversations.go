package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/middleware"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/telemetry"
)

// ConversationHandler serves the conversation query API and the HTTP send path.
type ConversationHandler struct {
	conversations *messaging.Conversations
	tracker       *messaging.ReadTracker
	dispatcher    *messaging.Dispatcher
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler. audit may be nil.
func NewConversationHandler(conversations *messaging.Conversations, tracker *messaging.ReadTracker, dispatcher *messaging.Dispatcher, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		tracker:       tracker,
		dispatcher:    dispatcher,
		audit:         audit,
	}
}

// Register mounts the routes on an already authenticated group.
func (h *ConversationHandler) Register(group *gin.RouterGroup) {
	group.GET("/conversations", h.ListConversations)
	group.GET("/conversations/:counterpart_id/messages", h.GetHistory)
	group.POST("/conversations/:counterpart_id/messages", h.PostMessage)
	group.GET("/conversations/:counterpart_id/unread", h.GetUnreadCount)
	group.POST("/conversations/:counterpart_id/read", h.MarkRead)
}

// ListConversations returns the caller's conversations, most recent first.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)

	list, err := h.conversations.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "failed to load conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": list})
}

// GetHistory returns every message exchanged with the counterpart, oldest first.
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	counterpartID, ok := parseCounterpartID(c)
	if !ok {
		return
	}

	msgs, err := h.conversations.History(c.Request.Context(), c.GetInt(middleware.UserIDKey), counterpartID)
	if err != nil {
		respondError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetUnreadCount returns how many messages from the counterpart the caller has not read.
func (h *ConversationHandler) GetUnreadCount(c *gin.Context) {
	counterpartID, ok := parseCounterpartID(c)
	if !ok {
		return
	}

	count, err := h.conversations.Unread(c.Request.Context(), c.GetInt(middleware.UserIDKey), counterpartID)
	if err != nil {
		respondError(c, err, "failed to count unread messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead marks the counterpart's messages to the caller as read.
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	counterpartID, ok := parseCounterpartID(c)
	if !ok {
		return
	}

	marked, err := h.tracker.MarkConversationRead(c.Request.Context(), c.GetInt(middleware.UserIDKey), counterpartID)
	if err != nil {
		respondError(c, err, "failed to mark messages read")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("conversation %d marked read (%d messages)", counterpartID, marked),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// PostMessage sends a message to the counterpart. The response doubles as the acknowledgment.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	counterpartID, ok := parseCounterpartID(c)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		ClientRef string `json:"client_ref" binding:"max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.dispatcher.Send(c.Request.Context(), nil, messaging.SendRequest{
		SenderID:   c.GetInt(middleware.UserIDKey),
		ReceiverID: counterpartID,
		Content:    req.Content,
		ClientRef:  req.ClientRef,
	})
	if err != nil {
		respondError(c, err, "failed to store message")
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", fmt.Sprintf("message %d sent to %d", msg.ID, counterpartID),
		requestIDFromContext(c), auditUserID(c))
	c.JSON(http.StatusCreated, msg)
}

func parseCounterpartID(c *gin.Context) (int, bool) {
	counterpartID, err := strconv.Atoi(c.Param("counterpart_id"))
	if err != nil || counterpartID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid counterpart id"})
		return 0, false
	}
	return counterpartID, true
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repositories.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": repositories.ErrStoreUnavailable.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

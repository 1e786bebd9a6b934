package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/auth"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/telemetry"
)

const wsRoutingKey = "ws_events.direct"

// Options tunes every connection served by a Handler.
type Options struct {
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Handler upgrades authenticated requests and runs the messaging protocol over them.
type Handler struct {
	registry   *messaging.Registry
	dispatcher *messaging.Dispatcher
	tracker    *messaging.ReadTracker
	verifier   *auth.Verifier
	publisher  telemetry.Publisher
	validate   *validator.Validate
	opts       Options
	log        *slog.Logger
}

// NewHandler constructs a Handler. publisher may be nil.
func NewHandler(registry *messaging.Registry, dispatcher *messaging.Dispatcher, tracker *messaging.ReadTracker,
	verifier *auth.Verifier, publisher telemetry.Publisher, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		tracker:    tracker,
		verifier:   verifier,
		publisher:  publisher,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		opts:       opts,
		log:        log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is the per-connection protocol state, owned by the read loop.
type session struct {
	client     *Client
	verifiedID int
	registered bool
}

// Handle upgrades the connection and serves it until the peer goes away.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("direct-messaging/ws").Start(c.Request.Context(), "ws.handshake")

	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			header = "Bearer " + token
		}
	}

	userID, err := h.verifier.VerifyHeader(header)
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	span.SetAttributes(attribute.Int("user_id", userID))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		span.End()
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	span.End()

	client := newClient(conn, info, h.opts, h.log)
	go client.writePump()

	observability.IncWSActive()
	h.lifecycle(ctx, info, "ws_connect", "")

	closeReason := h.readLoop(ctx, &session{client: client, verifiedID: userID})

	h.registry.Unregister(client)
	client.Close()
	observability.DecWSActive()
	h.lifecycle(context.WithoutCancel(ctx), info, "ws_disconnect", closeReason)
}

func (h *Handler) readLoop(ctx context.Context, s *session) string {
	conn := s.client.conn
	_ = conn.SetReadDeadline(time.Now().Add(s.client.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.client.pongWait()))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.lifecycle(ctx, s.client.info, "ws_error", err.Error())
			}
			return err.Error()
		}
		// any inbound frame proves the peer is alive
		_ = conn.SetReadDeadline(time.Now().Add(s.client.pongWait()))

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.reject(s, "malformed frame")
			continue
		}
		if err := h.validate.Struct(frame); err != nil {
			h.reject(s, invalidFrameReason(err))
			continue
		}
		h.dispatch(ctx, s, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, s *session, frame models.ClientFrame) {
	switch frame.Type {
	case models.FrameRegister:
		if frame.UserID != s.verifiedID {
			h.reject(s, "user_id does not match token")
			return
		}
		if displaced := h.registry.Register(frame.UserID, s.client); displaced != nil {
			s.client.log.Info("connection displaced a previous session", "displaced_conn_id", displaced.ID())
		}
		s.registered = true
		h.push(s, models.ServerEvent{Type: models.EventRegistered, UserID: frame.UserID})

	case models.FrameSend:
		if !s.registered {
			h.reject(s, "register before sending")
			return
		}
		if frame.SenderID != s.verifiedID {
			h.reject(s, "sender_id does not match registered user")
			return
		}
		// the dispatcher acknowledges or reports failure on the client itself
		_, _ = h.dispatcher.Send(ctx, s.client, messaging.SendRequest{
			SenderID:   frame.SenderID,
			ReceiverID: frame.ReceiverID,
			Content:    frame.Content,
			ClientRef:  frame.ClientRef,
		})

	case models.FrameMarkRead:
		if !s.registered {
			h.reject(s, "register before marking read")
			return
		}
		count, err := h.tracker.MarkConversationRead(ctx, s.verifiedID, frame.CounterpartID)
		if err != nil {
			h.push(s, models.ServerEvent{Type: models.EventError, Reason: messaging.FailureReason(err), CounterpartID: frame.CounterpartID})
			return
		}
		h.push(s, models.ServerEvent{Type: models.EventReadMarked, CounterpartID: frame.CounterpartID, Count: &count})
	}
}

func (h *Handler) reject(s *session, reason string) {
	observability.IncWSEvent("frame_rejected")
	h.push(s, models.ServerEvent{Type: models.EventError, Reason: reason})
}

func (h *Handler) push(s *session, event models.ServerEvent) {
	if err := s.client.Push(event); err != nil {
		s.client.log.Warn("websocket push failed", "event", event.Type, "error", err)
	}
}

func invalidFrameReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field: " + verrs[0].Field()
	}
	return "invalid frame"
}

func (h *Handler) lifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event)
	if h.publisher == nil {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	err := h.publisher.Publish(ctx, wsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
	if err != nil {
		h.log.Debug("ws lifecycle publish failed", "event", event, "error", err)
	}
}

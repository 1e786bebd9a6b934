package messaging

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

// Notifier is told about messages whose recipient had no live connection.
// NotifyOffline runs on the sender's path and must not block.
type Notifier interface {
	NotifyOffline(ctx context.Context, msg models.Message) error
}

// SendRequest is one message a user wants delivered.
type SendRequest struct {
	SenderID   int
	ReceiverID int
	Content    string
	ClientRef  string
}

// Dispatcher persists messages and pushes them to online recipients.
type Dispatcher struct {
	store    repositories.MessageRepository
	registry *Registry
	notifier Notifier
	log      *slog.Logger
	tracer   trace.Tracer
}

// NewDispatcher builds a Dispatcher. notifier may be nil.
func NewDispatcher(store repositories.MessageRepository, registry *Registry, notifier Notifier, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		notifier: notifier,
		log:      log,
		tracer:   otel.Tracer("direct-messaging/dispatcher"),
	}
}

// Send validates, persists, and routes a message. origin is the sender's own connection and may be
// nil when the request did not come over a websocket; the caller then acknowledges by itself.
// Persistence is the delivery guarantee: a missed or failed push is never an error.
func (d *Dispatcher) Send(ctx context.Context, origin Handle, req SendRequest) (models.Message, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.send", trace.WithAttributes(
		attribute.Int("sender_id", req.SenderID),
		attribute.Int("receiver_id", req.ReceiverID),
	))
	defer span.End()

	if err := repositories.ValidateContent(req.Content); err != nil {
		observability.IncMessageSent("rejected")
		d.fail(origin, req, err)
		return models.Message{}, err
	}

	msg, err := d.store.Append(ctx, req.SenderID, req.ReceiverID, req.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		observability.IncMessageSent("failed")
		d.log.Error("message append failed", "sender_id", req.SenderID, "receiver_id", req.ReceiverID, "error", err)
		d.fail(origin, req, err)
		return models.Message{}, err
	}
	observability.IncMessageSent("persisted")
	span.SetAttributes(attribute.Int64("message_id", msg.ID))

	d.deliver(ctx, msg)
	if origin != nil {
		ack := models.ServerEvent{Type: models.EventSendAcknowledged, Message: &msg, ClientRef: req.ClientRef}
		if err := origin.Push(ack); err != nil {
			d.log.Warn("acknowledgment push failed", "conn_id", origin.ID(), "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg models.Message) {
	handle, online := d.registry.Lookup(msg.ReceiverID)
	if !online {
		observability.IncPush("offline")
		d.log.Debug("recipient offline, message stored for later retrieval", "receiver_id", msg.ReceiverID, "message_id", msg.ID)
		if d.notifier != nil {
			if err := d.notifier.NotifyOffline(ctx, msg); err != nil {
				d.log.Warn("offline notification failed", "message_id", msg.ID, "error", err)
			}
		}
		return
	}

	if err := handle.Push(models.ServerEvent{Type: models.EventMessageDelivered, Message: &msg}); err != nil {
		observability.IncPush("dropped")
		d.log.Warn("live delivery failed, message remains in history", "receiver_id", msg.ReceiverID, "conn_id", handle.ID(), "message_id", msg.ID, "error", err)
		return
	}
	observability.IncPush("delivered")
}

func (d *Dispatcher) fail(origin Handle, req SendRequest, err error) {
	if origin == nil {
		return
	}
	event := models.ServerEvent{Type: models.EventSendFailed, Reason: FailureReason(err), ClientRef: req.ClientRef}
	if pushErr := origin.Push(event); pushErr != nil {
		d.log.Warn("failure notice push failed", "conn_id", origin.ID(), "error", pushErr)
	}
}

// FailureReason turns an error into a message safe to show to the client.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, repositories.ErrValidation):
		return err.Error()
	case errors.Is(err, repositories.ErrStoreUnavailable):
		return repositories.ErrStoreUnavailable.Error()
	default:
		return "internal error"
	}
}

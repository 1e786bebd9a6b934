package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/rabbitmq"
)

const previewLength = 140

// ErrQueueFull is returned when the notification queue cannot take another message.
var ErrQueueFull = errors.New("offline notification queue full")

// OfflineMessageEvent tells the notification service that a recipient missed a live delivery.
type OfflineMessageEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	OccurredAt    string    `json:"occurred_at"`
	MessageID     int64     `json:"message_id"`
	SenderID      int       `json:"sender_id"`
	ReceiverID    int       `json:"receiver_id"`
	Preview       string    `json:"preview"`
	SentAt        time.Time `json:"sent_at"`
}

// OfflineNotifier queues offline messages and publishes them from a single worker.
// Best effort: a full queue drops the notification, the message itself is already stored.
type OfflineNotifier struct {
	publisher  rabbitmq.Publisher
	routingKey string
	queue      chan models.Message
	log        *slog.Logger
}

func NewOfflineNotifier(publisher rabbitmq.Publisher, routingKey string, capacity int, log *slog.Logger) *OfflineNotifier {
	return &OfflineNotifier{
		publisher:  publisher,
		routingKey: routingKey,
		queue:      make(chan models.Message, capacity),
		log:        log,
	}
}

// NotifyOffline enqueues msg without blocking.
func (n *OfflineNotifier) NotifyOffline(_ context.Context, msg models.Message) error {
	select {
	case n.queue <- msg:
		observability.IncOfflineNotification("queued")
		return nil
	default:
		observability.IncOfflineNotification("dropped")
		return ErrQueueFull
	}
}

// Run publishes queued notifications until ctx is done.
func (n *OfflineNotifier) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-n.queue:
			n.publish(ctx, msg)
		case <-ctx.Done():
			n.log.Debug("offline notifier stopped", "pending", len(n.queue))
			return nil
		}
	}
}

func (n *OfflineNotifier) publish(ctx context.Context, msg models.Message) {
	event := OfflineMessageEvent{
		SchemaVersion: 1,
		EventType:     "message_offline",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		MessageID:     msg.ID,
		SenderID:      msg.SenderID,
		ReceiverID:    msg.ReceiverID,
		Preview:       preview(msg.Content),
		SentAt:        msg.CreatedAt,
	}
	if err := n.publisher.Publish(ctx, n.routingKey, event, nil); err != nil {
		observability.IncOfflineNotification("failed")
		n.log.Warn("offline notification publish failed", "message_id", msg.ID, "error", err)
		return
	}
	observability.IncOfflineNotification("published")
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}

package messaging

import (
	"context"
	"log/slog"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

// ReadTracker turns a conversation's unread messages into read ones when its viewer opens it.
// Counterparts are not notified.
type ReadTracker struct {
	store repositories.MessageRepository
	log   *slog.Logger
}

func NewReadTracker(store repositories.MessageRepository, log *slog.Logger) *ReadTracker {
	return &ReadTracker{store: store, log: log}
}

// MarkConversationRead marks everything counterpart sent to viewer as read and returns how many
// messages changed.
func (t *ReadTracker) MarkConversationRead(ctx context.Context, viewerID int, counterpartID int) (int64, error) {
	count, err := t.store.MarkRead(ctx, viewerID, counterpartID)
	if err != nil {
		t.log.Error("mark read failed", "viewer_id", viewerID, "counterpart_id", counterpartID, "error", err)
		return 0, err
	}
	observability.AddMessagesRead(count)
	return count, nil
}

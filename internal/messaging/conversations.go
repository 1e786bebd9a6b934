package messaging

import (
	"context"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

// Conversations answers the read-only conversation queries. It keeps no state of its own.
type Conversations struct {
	store repositories.MessageRepository
}

func NewConversations(store repositories.MessageRepository) *Conversations {
	return &Conversations{store: store}
}

// List returns the user's conversations, most recent first. A user with no messages gets an empty slice.
func (c *Conversations) List(ctx context.Context, userID int) ([]models.Conversation, error) {
	list, err := c.store.ConversationsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Conversation{}
	}
	return list, nil
}

// History returns the messages between viewer and counterpart, oldest first.
func (c *Conversations) History(ctx context.Context, viewerID int, counterpartID int) ([]models.Message, error) {
	msgs, err := c.store.History(ctx, viewerID, counterpartID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}

// Unread counts what counterpart sent viewer that viewer has not read yet.
func (c *Conversations) Unread(ctx context.Context, viewerID int, counterpartID int) (int64, error) {
	return c.store.UnreadCount(ctx, viewerID, counterpartID)
}

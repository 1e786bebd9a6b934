package repositories

import (
	"fmt"
	"time"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
)

type messageRow struct {
	ID         int64   `db:"id"`
	SenderID   int     `db:"sender_id"`
	ReceiverID int     `db:"receiver_id"`
	Content    string  `db:"content"`
	Read       bool    `db:"is_read"`
	CreatedAt  sqlTime `db:"created_at"`
}

func (r messageRow) toModel() models.Message {
	return models.Message{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Content:    r.Content,
		Read:       r.Read,
		CreatedAt:  r.CreatedAt.Time,
	}
}

type conversationRow struct {
	CounterpartID int     `db:"counterpart_id"`
	LastMessage   string  `db:"last_message"`
	LastMessageAt sqlTime `db:"last_message_at"`
	UnreadCount   int64   `db:"unread_count"`
}

func (r conversationRow) toModel() models.Conversation {
	return models.Conversation{
		CounterpartID: r.CounterpartID,
		LastMessage:   r.LastMessage,
		LastMessageAt: r.LastMessageAt.Time,
		UnreadCount:   r.UnreadCount,
	}
}

// sqlTime scans timestamps that drivers hand back either as time.Time or as text.
type sqlTime struct {
	time.Time
}

var sqlTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqlTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

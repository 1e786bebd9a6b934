package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
)

// MessageRepository is the durable message log and the only source of truth for read state.
type MessageRepository interface {
	Append(ctx context.Context, senderID int, receiverID int, content string) (models.Message, error)
	History(ctx context.Context, userA int, userB int) ([]models.Message, error)
	MarkRead(ctx context.Context, receiverID int, senderID int) (int64, error)
	UnreadCount(ctx context.Context, receiverID int, senderID int) (int64, error)
	ConversationsFor(ctx context.Context, userID int) ([]models.Conversation, error)
}

// MessageRepo is a sqlx-backed repository working on Postgres and SQLite.
type MessageRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db, now: time.Now}
}

const (
	// created_at never goes below the newest timestamp already stored for the pair.
	insertMessageQuery = `INSERT INTO messages (sender_id, receiver_id, content, is_read, created_at)
        VALUES (:sender, :receiver, :content, FALSE, COALESCE(
            (SELECT MAX(p.created_at) FROM messages p
                WHERE ((p.sender_id = :sender AND p.receiver_id = :receiver) OR (p.sender_id = :receiver AND p.receiver_id = :sender))
                AND p.created_at > :created_at),
            :created_at))
        RETURNING id, created_at`

	historyQuery = `SELECT id, sender_id, receiver_id, content, is_read, created_at
        FROM messages
        WHERE (sender_id = :a AND receiver_id = :b) OR (sender_id = :b AND receiver_id = :a)
        ORDER BY id ASC`

	markReadQuery = `UPDATE messages SET is_read = TRUE
        WHERE receiver_id = :receiver AND sender_id = :sender AND is_read = FALSE`

	unreadCountQuery = `SELECT COUNT(*) FROM messages
        WHERE receiver_id = :receiver AND sender_id = :sender AND is_read = FALSE`

	conversationsQuery = `SELECT t.counterpart_id, t.content AS last_message, t.created_at AS last_message_at,
            (SELECT COUNT(*) FROM messages u
                WHERE u.receiver_id = :user AND u.sender_id = t.counterpart_id AND u.is_read = FALSE) AS unread_count
        FROM (
            SELECT CASE WHEN m.sender_id = :user THEN m.receiver_id ELSE m.sender_id END AS counterpart_id,
                m.id, m.content, m.created_at,
                ROW_NUMBER() OVER (
                    PARTITION BY CASE WHEN m.sender_id = :user THEN m.receiver_id ELSE m.sender_id END
                    ORDER BY m.id DESC
                ) AS rn
            FROM messages m
            WHERE m.sender_id = :user OR m.receiver_id = :user
        ) t
        WHERE t.rn = 1
        ORDER BY t.id DESC`
)

// Append validates and stores a new message, returning the stored record.
func (r *MessageRepo) Append(ctx context.Context, senderID int, receiverID int, content string) (models.Message, error) {
	if err := ValidateContent(content); err != nil {
		return models.Message{}, err
	}

	// Postgres keeps microseconds; truncating keeps the returned record identical to the stored one.
	createdAt := r.now().UTC().Truncate(time.Microsecond)
	query, args, err := r.bind(insertMessageQuery, map[string]any{
		"sender":     senderID,
		"receiver":   receiverID,
		"content":    content,
		"created_at": createdAt,
	})
	if err != nil {
		return models.Message{}, err
	}

	var (
		id     int64
		stored sqlTime
	)
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&id, &stored); err != nil {
		return models.Message{}, storeError("append message", err)
	}
	return models.Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  stored.Time,
	}, nil
}

// History returns every message exchanged between two users in insertion order.
func (r *MessageRepo) History(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	query, args, err := r.bind(historyQuery, map[string]any{"a": userA, "b": userB})
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeError("load history", err)
	}
	return lo.Map(rows, func(row messageRow, _ int) models.Message {
		return row.toModel()
	}), nil
}

// MarkRead flags every unread message from sender to receiver as read and reports how many changed.
func (r *MessageRepo) MarkRead(ctx context.Context, receiverID int, senderID int) (int64, error) {
	query, args, err := r.bind(markReadQuery, map[string]any{"receiver": receiverID, "sender": senderID})
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeError("mark read", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("mark read", err)
	}
	return count, nil
}

// UnreadCount counts unread messages from sender to receiver.
func (r *MessageRepo) UnreadCount(ctx context.Context, receiverID int, senderID int) (int64, error) {
	query, args, err := r.bind(unreadCountQuery, map[string]any{"receiver": receiverID, "sender": senderID})
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, storeError("count unread", err)
	}
	return count, nil
}

// ConversationsFor lists one summary per counterpart, most recently written first.
func (r *MessageRepo) ConversationsFor(ctx context.Context, userID int) ([]models.Conversation, error) {
	query, args, err := r.bind(conversationsQuery, map[string]any{"user": userID})
	if err != nil {
		return nil, err
	}

	var rows []conversationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeError("list conversations", err)
	}
	result := make([]models.Conversation, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

func (r *MessageRepo) bind(query string, arg map[string]any) (string, []any, error) {
	named, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, fmt.Errorf("bind query: %w", err)
	}
	return r.db.Rebind(named), args, nil
}

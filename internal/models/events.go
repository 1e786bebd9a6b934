package models

// Client to server frame types.
const (
	FrameRegister = "register"
	FrameSend     = "send"
	FrameMarkRead = "mark_read"
)

// Server to client event types.
const (
	EventMessageDelivered = "message_delivered"
	EventSendAcknowledged = "send_acknowledged"
	EventSendFailed       = "send_failed"
	EventRegistered       = "registered"
	EventReadMarked       = "read_marked"
	EventError            = "error"
)

// ClientFrame is the envelope of every frame a client writes to its websocket.
// Only the fields relevant to Type are populated.
type ClientFrame struct {
	Type          string `json:"type" validate:"required,oneof=register send mark_read"`
	UserID        int    `json:"user_id,omitempty" validate:"required_if=Type register,gte=0"`
	SenderID      int    `json:"sender_id,omitempty" validate:"required_if=Type send,gte=0"`
	ReceiverID    int    `json:"receiver_id,omitempty" validate:"required_if=Type send,gte=0"`
	CounterpartID int    `json:"counterpart_id,omitempty" validate:"required_if=Type mark_read,gte=0"`
	Content       string `json:"content,omitempty"`
	ClientRef     string `json:"client_ref,omitempty" validate:"max=128"`
}

// ServerEvent is pushed to clients over websockets.
type ServerEvent struct {
	Type          string   `json:"type"`
	Message       *Message `json:"message,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	ClientRef     string   `json:"client_ref,omitempty"`
	UserID        int      `json:"user_id,omitempty"`
	CounterpartID int      `json:"counterpart_id,omitempty"`
	Count         *int64   `json:"count,omitempty"`
}

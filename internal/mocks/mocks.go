package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, senderID int, receiverID int, content string) (models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) History(ctx context.Context, userA int, userB int) ([]models.Message, error) {
	args := m.Called(ctx, userA, userB)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, receiverID int, senderID int) (int64, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) UnreadCount(ctx context.Context, receiverID int, senderID int) (int64, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) ConversationsFor(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var list []models.Conversation
	if val := args.Get(0); val != nil {
		list = val.([]models.Conversation)
	}
	return list, args.Error(1)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) NotifyOffline(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// ErrHandleClosed is returned by a FakeHandle after Fail is called.
var ErrHandleClosed = errors.New("fake handle closed")

// FakeHandle records every event pushed to it.
type FakeHandle struct {
	Name string

	mu     sync.Mutex
	events []models.ServerEvent
	failed bool
}

func NewFakeHandle(name string) *FakeHandle {
	return &FakeHandle{Name: name}
}

func (h *FakeHandle) ID() string {
	return h.Name
}

func (h *FakeHandle) Push(event models.ServerEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failed {
		return ErrHandleClosed
	}
	h.events = append(h.events, event)
	return nil
}

// Fail makes every later Push return ErrHandleClosed.
func (h *FakeHandle) Fail() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = true
}

// Events returns a copy of the pushed events in push order.
func (h *FakeHandle) Events() []models.ServerEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.ServerEvent, len(h.events))
	copy(out, h.events)
	return out
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ messaging.Notifier = (*NotifierMock)(nil)
var _ messaging.Handle = (*FakeHandle)(nil)

package messaging_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/mocks"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

func storedMessage(id int64, from, to int, content string) models.Message {
	return models.Message{
		ID:         id,
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		CreatedAt:  time.Date(2026, 10, 17, 9, 0, int(id), 0, time.UTC),
	}
}

func newDispatcher(store repositories.MessageRepository, notifier messaging.Notifier) (*messaging.Dispatcher, *messaging.Registry) {
	registry := messaging.NewRegistry()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return messaging.NewDispatcher(store, registry, notifier, log), registry
}

func TestSendToOnlineRecipient(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	sender := mocks.NewFakeHandle("a")
	receiver := mocks.NewFakeHandle("b")
	registry.Register(1, sender)
	registry.Register(2, receiver)

	persisted := storedMessage(7, 1, 2, "hi")
	store.On("Append", mock.Anything, 1, 2, "hi").Return(persisted, nil).Once()

	msg, err := dispatcher.Send(context.Background(), sender, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi", ClientRef: "c-1"})
	require.NoError(t, err)
	assert.Equal(t, persisted, msg)

	delivered := receiver.Events()
	require.Len(t, delivered, 1)
	assert.Equal(t, models.EventMessageDelivered, delivered[0].Type)
	assert.Equal(t, persisted, *delivered[0].Message)

	acks := sender.Events()
	require.Len(t, acks, 1)
	assert.Equal(t, models.EventSendAcknowledged, acks[0].Type)
	assert.Equal(t, "c-1", acks[0].ClientRef)
	assert.Equal(t, int64(7), acks[0].Message.ID)
	store.AssertExpectations(t)
}

func TestSendToOfflineRecipientIsStoredAndNotified(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	dispatcher, registry := newDispatcher(store, notifier)
	sender := mocks.NewFakeHandle("a")
	registry.Register(1, sender)

	persisted := storedMessage(3, 1, 2, "hi")
	store.On("Append", mock.Anything, 1, 2, "hi").Return(persisted, nil).Once()
	notifier.On("NotifyOffline", mock.Anything, persisted).Return(nil).Once()

	_, err := dispatcher.Send(context.Background(), sender, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)

	acks := sender.Events()
	require.Len(t, acks, 1)
	assert.Equal(t, models.EventSendAcknowledged, acks[0].Type)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendNotifierFailureDoesNotFailSend(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	dispatcher, _ := newDispatcher(store, notifier)

	persisted := storedMessage(3, 1, 2, "hi")
	store.On("Append", mock.Anything, 1, 2, "hi").Return(persisted, nil).Once()
	notifier.On("NotifyOffline", mock.Anything, persisted).Return(assert.AnError).Once()

	_, err := dispatcher.Send(context.Background(), nil, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestSendRejectsBlankContentWithoutPersisting(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	sender := mocks.NewFakeHandle("a")
	receiver := mocks.NewFakeHandle("b")
	registry.Register(1, sender)
	registry.Register(2, receiver)

	_, err := dispatcher.Send(context.Background(), sender, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "   ", ClientRef: "c-9"})
	require.ErrorIs(t, err, repositories.ErrValidation)

	events := sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSendFailed, events[0].Type)
	assert.Equal(t, "c-9", events[0].ClientRef)
	assert.Contains(t, events[0].Reason, "empty")
	assert.Empty(t, receiver.Events())
	store.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendStoreUnavailableNotifiesOnlySender(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	sender := mocks.NewFakeHandle("a")
	receiver := mocks.NewFakeHandle("b")
	registry.Register(1, sender)
	registry.Register(2, receiver)

	storeErr := fmt.Errorf("append message: %w: %w", repositories.ErrStoreUnavailable, assert.AnError)
	store.On("Append", mock.Anything, 1, 2, "hi").Return(models.Message{}, storeErr).Once()

	_, err := dispatcher.Send(context.Background(), sender, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.ErrorIs(t, err, repositories.ErrStoreUnavailable)

	events := sender.Events()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventSendFailed, events[0].Type)
	assert.Equal(t, repositories.ErrStoreUnavailable.Error(), events[0].Reason)
	assert.Empty(t, receiver.Events())
}

func TestSendPushFailureStillAcknowledges(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	sender := mocks.NewFakeHandle("a")
	receiver := mocks.NewFakeHandle("b")
	receiver.Fail()
	registry.Register(1, sender)
	registry.Register(2, receiver)

	store.On("Append", mock.Anything, 1, 2, "hi").Return(storedMessage(1, 1, 2, "hi"), nil).Once()

	_, err := dispatcher.Send(context.Background(), sender, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)
	require.Len(t, sender.Events(), 1)
	assert.Equal(t, models.EventSendAcknowledged, sender.Events()[0].Type)
}

func TestSendPreservesOrderPerPair(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	receiver := mocks.NewFakeHandle("b")
	registry.Register(2, receiver)

	store.On("Append", mock.Anything, 1, 2, "m1").Return(storedMessage(1, 1, 2, "m1"), nil).Once()
	store.On("Append", mock.Anything, 1, 2, "m2").Return(storedMessage(2, 1, 2, "m2"), nil).Once()

	for _, content := range []string{"m1", "m2"} {
		_, err := dispatcher.Send(context.Background(), nil, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: content})
		require.NoError(t, err)
	}

	events := receiver.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "m1", events[0].Message.Content)
	assert.Equal(t, "m2", events[1].Message.Content)
}

func TestSendAfterDisplacementReachesOnlyNewHandle(t *testing.T) {
	store := new(mocks.MessageRepositoryMock)
	dispatcher, registry := newDispatcher(store, nil)
	h1 := mocks.NewFakeHandle("u-old")
	h2 := mocks.NewFakeHandle("u-new")
	registry.Register(2, h1)
	registry.Register(2, h2)

	store.On("Append", mock.Anything, 1, 2, "hi").Return(storedMessage(1, 1, 2, "hi"), nil).Once()

	_, err := dispatcher.Send(context.Background(), nil, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)
	assert.Empty(t, h1.Events())
	assert.Len(t, h2.Events(), 1)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, repositories.ErrEmptyContent.Error(), messaging.FailureReason(repositories.ErrEmptyContent))
	assert.Equal(t, "message store unavailable", messaging.FailureReason(fmt.Errorf("x: %w", repositories.ErrStoreUnavailable)))
	assert.Equal(t, "internal error", messaging.FailureReason(assert.AnError))
}

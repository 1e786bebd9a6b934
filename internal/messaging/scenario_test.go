package messaging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/db"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/mocks"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/repositories"
)

func TestOfflineRecipientCatchesUpFromHistory(t *testing.T) {
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	database, err := db.Connect(ctx, db.DriverSQLite, ":memory:?_time_format=sqlite", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store := repositories.NewMessageRepo(database)
	registry := messaging.NewRegistry()
	dispatcher := messaging.NewDispatcher(store, registry, nil, log)
	tracker := messaging.NewReadTracker(store, log)
	conversations := messaging.NewConversations(store)

	alice := mocks.NewFakeHandle("alice")
	registry.Register(1, alice)

	_, err = dispatcher.Send(ctx, alice, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: "hi"})
	require.NoError(t, err)

	acks := alice.Events()
	require.Len(t, acks, 1)
	assert.Equal(t, models.EventSendAcknowledged, acks[0].Type)
	assert.Equal(t, "hi", acks[0].Message.Content)

	bob := mocks.NewFakeHandle("bob")
	registry.Register(2, bob)
	assert.Empty(t, bob.Events())

	history, err := conversations.History(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
	assert.False(t, history[0].Read)

	unread, err := conversations.Unread(ctx, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	marked, err := tracker.MarkConversationRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	unread, err = conversations.Unread(ctx, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, unread)

	marked, err = tracker.MarkConversationRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, marked)
}

func TestConversationViewAfterExchange(t *testing.T) {
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	database, err := db.Connect(ctx, db.DriverSQLite, ":memory:?_time_format=sqlite", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	store := repositories.NewMessageRepo(database)
	dispatcher := messaging.NewDispatcher(store, messaging.NewRegistry(), nil, log)
	conversations := messaging.NewConversations(store)

	for _, content := range []string{"one", "two", "three"} {
		_, err := dispatcher.Send(ctx, nil, messaging.SendRequest{SenderID: 1, ReceiverID: 2, Content: content})
		require.NoError(t, err)
	}
	_, err = dispatcher.Send(ctx, nil, messaging.SendRequest{SenderID: 2, ReceiverID: 1, Content: "reply"})
	require.NoError(t, err)

	list, err := conversations.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].CounterpartID)
	assert.Equal(t, "reply", list[0].LastMessage)
	assert.EqualValues(t, 1, list[0].UnreadCount)

	empty, err := conversations.List(ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

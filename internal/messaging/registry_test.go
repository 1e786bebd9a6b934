package messaging_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/messaging"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/mocks"
)

func TestRegistryRegisterAndLookup(t *testing.T) {
	registry := messaging.NewRegistry()
	h1 := mocks.NewFakeHandle("h1")

	_, ok := registry.Lookup(1)
	assert.False(t, ok)

	assert.Nil(t, registry.Register(1, h1))
	got, ok := registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, h1, got)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	registry := messaging.NewRegistry()
	h1 := mocks.NewFakeHandle("h1")
	h2 := mocks.NewFakeHandle("h2")

	registry.Register(1, h1)
	displaced := registry.Register(1, h2)
	assert.Same(t, h1, displaced)

	got, ok := registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, h2, got)

	// the displaced connection closing later must not take the user offline
	assert.False(t, registry.Unregister(h1))
	got, ok = registry.Lookup(1)
	require.True(t, ok)
	assert.Same(t, h2, got)

	assert.True(t, registry.Unregister(h2))
	_, ok = registry.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryReRegisterSameHandleIsNotADisplacement(t *testing.T) {
	registry := messaging.NewRegistry()
	h1 := mocks.NewFakeHandle("h1")

	registry.Register(1, h1)
	assert.Nil(t, registry.Register(1, h1))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryHandleMovingToAnotherUser(t *testing.T) {
	registry := messaging.NewRegistry()
	h := mocks.NewFakeHandle("h")

	registry.Register(1, h)
	registry.Register(2, h)

	_, ok := registry.Lookup(1)
	assert.False(t, ok)
	got, ok := registry.Lookup(2)
	require.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryUnregisterUnknownHandle(t *testing.T) {
	registry := messaging.NewRegistry()
	assert.False(t, registry.Unregister(mocks.NewFakeHandle("ghost")))
}

func TestRegistryDrain(t *testing.T) {
	registry := messaging.NewRegistry()
	h1 := mocks.NewFakeHandle("h1")
	h2 := mocks.NewFakeHandle("h2")
	h3 := mocks.NewFakeHandle("h3")
	registry.Register(1, h1)
	registry.Register(2, h2)
	registry.Register(2, h3)

	drained := registry.Drain()
	assert.ElementsMatch(t, []messaging.Handle{h1, h3}, drained)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := messaging.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			h := mocks.NewFakeHandle("h")
			registry.Register(user, h)
			registry.Lookup(user)
			registry.Unregister(h)
		}(i % 5)
	}
	wg.Wait()
	assert.Equal(t, 0, registry.Len())
}

package messaging

import (
	"sync"

	"github.com/samber/lo"

	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/models"
	"github.com/Skillin-Inc/SkillinMVP-sub001/internal/observability"
)

// Handle is a live connection that can receive server events.
// Push must not block; a handle that cannot take the event returns an error instead.
// Implementations are used as map keys and must be comparable, typically pointers.
type Handle interface {
	ID() string
	Push(event models.ServerEvent) error
}

// Registry maps each user to the single connection that currently receives their messages.
// A newer registration silently displaces the previous one.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[int]Handle
	byHandle map[Handle]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[int]Handle),
		byHandle: make(map[Handle]int),
	}
}

// Register makes handle the delivery target for userID and returns the displaced handle, if any.
func (r *Registry) Register(userID int, handle Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	// a connection re-registering under another user leaves its old user offline
	if prevUser, ok := r.byHandle[handle]; ok && prevUser != userID {
		delete(r.byUser, prevUser)
	}

	displaced, ok := r.byUser[userID]
	if ok && displaced != handle {
		delete(r.byHandle, displaced)
	} else {
		displaced = nil
	}

	r.byUser[userID] = handle
	r.byHandle[handle] = userID
	observability.SetRegisteredUsers(len(r.byUser))
	return displaced
}

// Unregister removes handle if it is still the current mapping of its user.
// Disconnects of displaced handles are ignored and report false.
func (r *Registry) Unregister(handle Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[handle]
	if !ok {
		return false
	}
	delete(r.byHandle, handle)
	if r.byUser[userID] == handle {
		delete(r.byUser, userID)
	}
	observability.SetRegisteredUsers(len(r.byUser))
	return true
}

// Lookup returns the connection currently registered for userID.
func (r *Registry) Lookup(userID int) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.byUser[userID]
	return handle, ok
}

// Len reports how many users are online.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Drain empties the registry and returns every handle it held. Used at shutdown.
func (r *Registry) Drain() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := lo.Keys(r.byHandle)
	r.byUser = make(map[int]Handle)
	r.byHandle = make(map[Handle]int)
	observability.SetRegisteredUsers(0)
	return handles
}

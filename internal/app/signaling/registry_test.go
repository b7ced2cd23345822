package signaling

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"peercall/internal/app/identity"
)

type nopSender struct{}

func (nopSender) Send(env Envelope) error { return nil }
func (nopSender) Close()                  {}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	id := identity.Identity{UserID: "u1", DisplayName: "Alice"}
	connID := reg.Register(id, nopSender{})
	require.NotEmpty(t, connID)
	require.Equal(t, 1, reg.Len())

	gotID, ok := reg.Identity(connID)
	require.True(t, ok)
	require.Equal(t, id, gotID)

	_, ok = reg.Sender(connID)
	require.True(t, ok)

	state, ok := reg.State(connID)
	require.True(t, ok)
	require.Equal(t, StateDisconnected, state)

	// Fresh connections are bound to no room.
	_, bound := reg.LookupRoom(connID)
	require.False(t, bound)
}

func TestRegistryConnIDsAreUnique(t *testing.T) {
	reg := NewRegistry()

	a := reg.Register(identity.Identity{UserID: "u1"}, nopSender{})
	b := reg.Register(identity.Identity{UserID: "u1"}, nopSender{})
	require.NotEqual(t, a, b)
	require.Equal(t, 2, reg.Len())
}

func TestRegistryBindAndUnbindRoom(t *testing.T) {
	reg := NewRegistry()
	connID := reg.Register(identity.Identity{UserID: "u1"}, nopSender{})

	require.NoError(t, reg.BindRoom(connID, "room-1"))

	roomID, bound := reg.LookupRoom(connID)
	require.True(t, bound)
	require.Equal(t, "room-1", roomID)

	reg.UnbindRoom(connID)
	_, bound = reg.LookupRoom(connID)
	require.False(t, bound)

	// Idempotent.
	reg.UnbindRoom(connID)
	_, bound = reg.LookupRoom(connID)
	require.False(t, bound)
}

func TestRegistryBindUnknownConnection(t *testing.T) {
	reg := NewRegistry()

	err := reg.BindRoom(ConnID("missing"), "room-1")
	require.True(t, errors.Is(err, ErrNotRegistered))
}

func TestRegistryStateTransitions(t *testing.T) {
	reg := NewRegistry()
	connID := reg.Register(identity.Identity{UserID: "u1"}, nopSender{})

	for _, s := range []State{StateJoining, StateJoined, StateNegotiating, StateLeaving} {
		reg.SetState(connID, s)
		got, ok := reg.State(connID)
		require.True(t, ok)
		require.Equal(t, s, got)
	}

	// Transitions on an unregistered connection are dropped silently.
	reg.SetState(ConnID("missing"), StateJoined)
	_, ok := reg.State(ConnID("missing"))
	require.False(t, ok)
}

func TestRegistryUnregister(t *testing.T) {
	reg := NewRegistry()
	connID := reg.Register(identity.Identity{UserID: "u1"}, nopSender{})

	reg.Unregister(connID)
	require.Equal(t, 0, reg.Len())

	_, ok := reg.Identity(connID)
	require.False(t, ok)
	_, ok = reg.Sender(connID)
	require.False(t, ok)

	// Unregistering twice is harmless.
	reg.Unregister(connID)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			connID := reg.Register(identity.Identity{UserID: "u"}, nopSender{})
			require.NoError(t, reg.BindRoom(connID, "room-1"))
			reg.SetState(connID, StateJoined)
			reg.UnbindRoom(connID)
			reg.Unregister(connID)
		}()
	}
	wg.Wait()

	require.Equal(t, 0, reg.Len())
}

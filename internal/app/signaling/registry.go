/*
Package signaling contains the core logic for room coordination and WebRTC
negotiation relay.

This file defines the Registry, which tracks every live transport connection
together with the identity bound to it and the room it currently occupies.
It is the only place able to answer "which room does this connection belong
to", which lets cleanup run without the client restating its room.
*/
package signaling

import (
	"errors"
	"sync"

	"peercall/internal/app/identity"
	"peercall/internal/pkg/randx"
)

// ErrNotRegistered is returned for operations on a connection identifier the
// registry has never seen or has already unregistered. Reaching it indicates
// a bug in the transport wiring, not a client mistake.
var ErrNotRegistered = errors.New("connection not registered")

// ConnID is the opaque identifier of a live transport connection. It is minted
// at connect time and invalidated at disconnect; a reconnect gets a new one.
type ConnID string

// State is the relay-side position of a connection in its signaling session.
// Whether the media engines consider themselves connected is client-local and
// never tracked here.
type State string

const (
	// StateDisconnected: registered, not in any room.
	StateDisconnected State = "disconnected"

	// StateJoining: a join request is being admitted.
	StateJoining State = "joining"

	// StateJoined: admitted to a room, no negotiation traffic seen yet.
	StateJoined State = "joined"

	// StateNegotiating: at least one offer, answer, or candidate has been relayed.
	StateNegotiating State = "negotiating"

	// StateLeaving: the session ended. Terminal; rejoining requires a new
	// transport connection and therefore a new connection identifier.
	StateLeaving State = "leaving"
)

// entry holds everything the relay knows about one live connection.
type entry struct {
	identity identity.Identity
	sender   Sender
	roomID   string // empty until BindRoom
	state    State
}

// Registry tracks live transport connections and the identity and room bound to each.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[ConnID]*entry
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[ConnID]*entry),
	}
}

// Register allocates a registry entry for a new transport connection and
// returns its freshly minted connection identifier. No room is bound yet.
func (reg *Registry) Register(id identity.Identity, sender Sender) ConnID {
	connID := ConnID(randx.ConnectionID())

	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.entries[connID] = &entry{
		identity: id,
		sender:   sender,
		state:    StateDisconnected,
	}

	return connID
}

// State returns the current signaling state of the connection.
func (reg *Registry) State(connID ConnID) (State, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.entries[connID]
	if !ok {
		return "", false
	}
	return e.state, true
}

// SetState records a state transition for the connection. Transitions on an
// unregistered connection are ignored; the caller has already lost the race
// with a disconnect.
func (reg *Registry) SetState(connID ConnID, state State) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if e, ok := reg.entries[connID]; ok {
		e.state = state
	}
}

// BindRoom records that the connection currently belongs to roomID.
func (reg *Registry) BindRoom(connID ConnID, roomID string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	e, ok := reg.entries[connID]
	if !ok {
		return ErrNotRegistered
	}

	e.roomID = roomID
	return nil
}

// UnbindRoom clears the room association. It is idempotent: unbinding twice,
// or unbinding a connection that never bound a room, is a no-op.
func (reg *Registry) UnbindRoom(connID ConnID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if e, ok := reg.entries[connID]; ok {
		e.roomID = ""
	}
}

// LookupRoom returns the room the connection is currently bound to.
// The second return value is false when the connection is unknown or unbound.
func (reg *Registry) LookupRoom(connID ConnID) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.entries[connID]
	if !ok || e.roomID == "" {
		return "", false
	}
	return e.roomID, true
}

// Identity returns the identity claims bound to the connection.
func (reg *Registry) Identity(connID ConnID) (identity.Identity, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.entries[connID]
	if !ok {
		return identity.Identity{}, false
	}
	return e.identity, true
}

// Sender returns the outbound message queue of the connection.
func (reg *Registry) Sender(connID ConnID) (Sender, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	e, ok := reg.entries[connID]
	if !ok {
		return nil, false
	}
	return e.sender, true
}

// Unregister removes the entry entirely. It is called exactly once per
// connection, at transport close, after any room unbind.
func (reg *Registry) Unregister(connID ConnID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delete(reg.entries, connID)
}

// Len reports the number of live registered connections.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.entries)
}

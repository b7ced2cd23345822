/*
Package signaling contains the core logic for room coordination and WebRTC
negotiation relay.

This file defines the RoomTable, the authoritative mapping of room identifier
to its ordered set of participants. Rooms are created on first join and
garbage-collected in the same critical section that removes their last
participant, so no caller can ever observe an empty room in the table.
*/
package signaling

import (
	"errors"
	"sync"
	"time"

	"peercall/internal/app/identity"
)

var (
	// ErrAlreadyInRoom is returned when a connection attempts to join a room
	// while its connection identifier is already among the participants.
	ErrAlreadyInRoom = errors.New("connection already in room")

	// ErrRoomFull is returned when a join would exceed the configured capacity.
	ErrRoomFull = errors.New("room is full")
)

// Participant is one bound transport connection inside a room. It is owned
// exclusively by the room it belongs to and never shared across rooms.
type Participant struct {
	ConnID   ConnID
	Identity identity.Identity

	// JoinedAt establishes join order; fan-out and peer notifications walk
	// participants in this order.
	JoinedAt time.Time

	sender Sender
}

// Room is a coordination unit scoping which connections may exchange
// negotiation and chat messages. Its participant slice preserves join order
// and is only touched by RoomTable methods under the table lock.
type Room struct {
	ID           string
	participants []*Participant
}

// RoomTable is the authoritative room-to-participants mapping. A single table
// mutex guards room creation, membership changes, and empty-room deletion, so
// a join racing a leave in the same room can never corrupt the participant
// set or double-create a room.
type RoomTable struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// capacity is the maximum participants per room; 0 means unbounded.
	capacity int
}

// NewRoomTable creates an empty room table with the given capacity policy.
func NewRoomTable(capacity int) *RoomTable {
	return &RoomTable{
		rooms:    make(map[string]*Room),
		capacity: capacity,
	}
}

// GetOrCreate returns the existing room or atomically creates an empty one.
// Two connections racing to be first joiner of the same identifier observe
// the same Room instance.
func (t *RoomTable) GetOrCreate(roomID string) *Room {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.getOrCreateLocked(roomID)
}

func (t *RoomTable) getOrCreateLocked(roomID string) *Room {
	room, ok := t.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID}
		t.rooms[roomID] = room
	}
	return room
}

// AddParticipant appends the participant to the room's ordered list, creating
// the room if it does not exist yet. It returns ErrAlreadyInRoom when the
// connection identifier is already present and ErrRoomFull when the capacity
// policy rejects the join. A rejected join never leaves an empty room behind.
func (t *RoomTable) AddParticipant(roomID string, p *Participant) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.getOrCreateLocked(roomID)

	for _, existing := range room.participants {
		if existing.ConnID == p.ConnID {
			t.deleteIfEmptyLocked(roomID, room)
			return ErrAlreadyInRoom
		}
	}

	if t.capacity > 0 && len(room.participants) >= t.capacity {
		t.deleteIfEmptyLocked(roomID, room)
		return ErrRoomFull
	}

	room.participants = append(room.participants, p)
	return nil
}

// RemoveParticipant removes the connection from the room if present and
// returns the removed participant along with a join-ordered snapshot of the
// remaining occupants. Removing an absent participant is a no-op, which keeps
// the cleanup paths idempotent. When the last participant leaves, the room is
// deleted from the table in the same atomic step.
func (t *RoomTable) RemoveParticipant(roomID string, connID ConnID) (*Participant, []*Participant, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil, nil, false
	}

	idx := -1
	for i, p := range room.participants {
		if p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, nil, false
	}

	removed := room.participants[idx]
	room.participants = append(room.participants[:idx], room.participants[idx+1:]...)

	remaining := make([]*Participant, len(room.participants))
	copy(remaining, room.participants)

	t.deleteIfEmptyLocked(roomID, room)

	return removed, remaining, true
}

func (t *RoomTable) deleteIfEmptyLocked(roomID string, room *Room) {
	if len(room.participants) == 0 {
		delete(t.rooms, roomID)
	}
}

// ListOthers returns the room's participants excluding the given connection,
// in join order. The slice is a snapshot; it is safe to iterate without the lock.
func (t *RoomTable) ListOthers(roomID string, excluding ConnID) []*Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	room, ok := t.rooms[roomID]
	if !ok {
		return nil
	}

	others := make([]*Participant, 0, len(room.participants))
	for _, p := range room.participants {
		if p.ConnID != excluding {
			others = append(others, p)
		}
	}
	return others
}

// Participants returns a join-ordered snapshot of the room's occupants.
func (t *RoomTable) Participants(roomID string) []*Participant {
	return t.ListOthers(roomID, "")
}

// Has reports whether the room currently exists in the table.
func (t *RoomTable) Has(roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.rooms[roomID]
	return ok
}

// Len reports the number of live rooms.
func (t *RoomTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.rooms)
}

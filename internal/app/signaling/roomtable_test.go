package signaling

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"peercall/internal/app/identity"
)

func newParticipant(connID string) *Participant {
	return &Participant{
		ConnID:   ConnID(connID),
		Identity: identity.Identity{UserID: "user-" + connID, DisplayName: connID},
		JoinedAt: time.Now(),
		sender:   nopSender{},
	}
}

func TestRoomTableFirstJoinCreatesRoom(t *testing.T) {
	table := NewRoomTable(0)

	require.False(t, table.Has("room-1"))
	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))
	require.True(t, table.Has("room-1"))
	require.Equal(t, 1, table.Len())
}

func TestRoomTableDuplicateJoinRejected(t *testing.T) {
	table := NewRoomTable(0)

	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))
	err := table.AddParticipant("room-1", newParticipant("a"))
	require.ErrorIs(t, err, ErrAlreadyInRoom)

	// The rejected join must not disturb existing membership.
	require.Len(t, table.Participants("room-1"), 1)
}

func TestRoomTableCapacity(t *testing.T) {
	table := NewRoomTable(2)

	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))
	require.NoError(t, table.AddParticipant("room-1", newParticipant("b")))

	err := table.AddParticipant("room-1", newParticipant("c"))
	require.ErrorIs(t, err, ErrRoomFull)
	require.Len(t, table.Participants("room-1"), 2)
}

func TestRoomTableZeroCapacityIsUnbounded(t *testing.T) {
	table := NewRoomTable(0)

	for i := 0; i < 10; i++ {
		require.NoError(t, table.AddParticipant("room-1", newParticipant(fmt.Sprintf("p%d", i))))
	}
	require.Len(t, table.Participants("room-1"), 10)
}

func TestRoomTableRejectedJoinLeavesNoEmptyRoom(t *testing.T) {
	table := NewRoomTable(1)

	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))

	// A rejected join keeps the occupied room intact and creates nothing new.
	require.ErrorIs(t, table.AddParticipant("room-1", newParticipant("b")), ErrRoomFull)
	require.True(t, table.Has("room-1"))
	require.Equal(t, 1, table.Len())
}

func TestRoomTableRemoveParticipant(t *testing.T) {
	table := NewRoomTable(0)

	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))
	require.NoError(t, table.AddParticipant("room-1", newParticipant("b")))
	require.NoError(t, table.AddParticipant("room-1", newParticipant("c")))

	removed, remaining, ok := table.RemoveParticipant("room-1", ConnID("b"))
	require.True(t, ok)
	require.Equal(t, ConnID("b"), removed.ConnID)
	require.Len(t, remaining, 2)
	require.Equal(t, ConnID("a"), remaining[0].ConnID)
	require.Equal(t, ConnID("c"), remaining[1].ConnID)
}

func TestRoomTableRemoveIsIdempotent(t *testing.T) {
	table := NewRoomTable(0)
	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))

	_, _, ok := table.RemoveParticipant("room-1", ConnID("a"))
	require.True(t, ok)

	// Second removal loses the race and reports it.
	_, _, ok = table.RemoveParticipant("room-1", ConnID("a"))
	require.False(t, ok)

	// Removal from a room that never existed.
	_, _, ok = table.RemoveParticipant("missing", ConnID("a"))
	require.False(t, ok)
}

func TestRoomTableLastLeaverDeletesRoom(t *testing.T) {
	table := NewRoomTable(0)

	require.NoError(t, table.AddParticipant("room-1", newParticipant("a")))
	require.NoError(t, table.AddParticipant("room-1", newParticipant("b")))

	_, _, ok := table.RemoveParticipant("room-1", ConnID("a"))
	require.True(t, ok)
	require.True(t, table.Has("room-1"))

	_, remaining, ok := table.RemoveParticipant("room-1", ConnID("b"))
	require.True(t, ok)
	require.Empty(t, remaining)
	require.False(t, table.Has("room-1"))
	require.Equal(t, 0, table.Len())
}

func TestRoomTableJoinOrderPreserved(t *testing.T) {
	table := NewRoomTable(0)

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		require.NoError(t, table.AddParticipant("room-1", newParticipant(id)))
	}

	others := table.ListOthers("room-1", ConnID("c"))
	require.Len(t, others, 3)
	require.Equal(t, ConnID("a"), others[0].ConnID)
	require.Equal(t, ConnID("b"), others[1].ConnID)
	require.Equal(t, ConnID("d"), others[2].ConnID)
}

func TestRoomTableConcurrentFirstJoin(t *testing.T) {
	table := NewRoomTable(0)

	const joiners = 32
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			require.NoError(t, table.AddParticipant("room-1", newParticipant(fmt.Sprintf("p%d", n))))
		}(i)
	}
	wg.Wait()

	// All joiners landed in one single room instance.
	require.Equal(t, 1, table.Len())
	require.Len(t, table.Participants("room-1"), joiners)
}

func TestRoomTableConcurrentJoinAndLeave(t *testing.T) {
	table := NewRoomTable(0)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("p%d", i)
			require.NoError(t, table.AddParticipant("room-1", newParticipant(connID)))
			_, _, ok := table.RemoveParticipant("room-1", ConnID(connID))
			require.True(t, ok)
		}(i)
	}
	wg.Wait()

	// Every join was matched by a leave; the room must be gone.
	require.False(t, table.Has("room-1"))
	require.Equal(t, 0, table.Len())
}

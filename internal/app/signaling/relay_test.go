package signaling

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"peercall/internal/app/identity"
	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/randx"
)

// fakeSender records every envelope queued for one connection, in order.
type fakeSender struct {
	mu     sync.Mutex
	sent   []Envelope
	closed bool
}

func (f *fakeSender) Send(env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("sender closed")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSender) envelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) types() []MessageType {
	var out []MessageType
	for _, env := range f.envelopes() {
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeSender) lastOfType(t *testing.T, msgType MessageType) Envelope {
	t.Helper()
	envs := f.envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == msgType {
			return envs[i]
		}
	}
	t.Fatalf("no envelope of type %q received", msgType)
	return Envelope{}
}

func newTestRelay(capacity int) *Relay {
	return NewRelay(NewRegistry(), NewRoomTable(capacity))
}

// connect registers a fake connection on the relay.
func connect(rl *Relay, userID, displayName string) (ConnID, *fakeSender) {
	sender := &fakeSender{}
	connID := rl.Connect(identity.Identity{UserID: userID, DisplayName: displayName}, sender)
	return connID, sender
}

func join(t *testing.T, rl *Relay, connID ConnID, roomID string) {
	t.Helper()
	env, err := NewEnvelope(TypeJoin, JoinPayload{RoomID: roomID})
	require.NoError(t, err)
	rl.Dispatch(connID, env)
}

func TestRelayJoinAcknowledged(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	connID, sender := connect(rl, "u1", "Alice")
	join(t, rl, connID, roomID)

	env := sender.lastOfType(t, TypeJoined)
	var ack JoinedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	require.Equal(t, roomID, ack.RoomID)

	state, ok := rl.registry.State(connID)
	require.True(t, ok)
	require.Equal(t, StateJoined, state)
}

func TestRelayJoinInvalidRoomID(t *testing.T) {
	rl := newTestRelay(2)

	connID, sender := connect(rl, "u1", "Alice")
	join(t, rl, connID, "not-a-room")

	env := sender.lastOfType(t, TypeError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	require.Equal(t, errs.ErrInvalidRoomID, errPayload.Code)

	// The connection stays usable and roomless.
	state, _ := rl.registry.State(connID)
	require.Equal(t, StateDisconnected, state)
}

func TestRelaySecondJoinerNotifiesFirst(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)

	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	// The first occupant learns about the newcomer.
	env := aSender.lastOfType(t, TypePeerJoined)
	var peer PeerEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &peer))
	require.Equal(t, "u2", peer.UserID)
	require.Equal(t, "Bob", peer.DisplayName)

	// The newcomer got its acceptance but no peer-joined about itself.
	require.Contains(t, bSender.types(), TypeJoined)
	require.NotContains(t, bSender.types(), TypePeerJoined)
}

func TestRelayJoinedPrecedesPeerTraffic(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, _ := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)

	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	// A immediately fires an offer at the room.
	offer, err := NewEnvelope(TypeOffer, map[string]string{"sdp": "v=0"})
	require.NoError(t, err)
	rl.Dispatch(aConn, offer)

	types := bSender.types()
	require.Equal(t, TypeJoined, types[0], "acceptance must be queued before anything else")
	require.Contains(t, types, TypeOffer)
}

func TestRelayRoomFull(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, _ := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, _ := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	cConn, cSender := connect(rl, "u3", "Carol")
	join(t, rl, cConn, roomID)

	env := cSender.lastOfType(t, TypeError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	require.Equal(t, errs.ErrRoomFull, errPayload.Code)

	// The rejected joiner can still join elsewhere.
	state, _ := rl.registry.State(cConn)
	require.Equal(t, StateDisconnected, state)
	otherRoom := randx.RoomID()
	join(t, rl, cConn, otherRoom)
	cSender.lastOfType(t, TypeJoined)
}

func TestRelayDoubleJoinRejected(t *testing.T) {
	rl := newTestRelay(2)

	connID, sender := connect(rl, "u1", "Alice")
	join(t, rl, connID, randx.RoomID())
	join(t, rl, connID, randx.RoomID())

	env := sender.lastOfType(t, TypeError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	require.Equal(t, errs.ErrAlreadyInRoom, errPayload.Code)
}

func TestRelaySignalForwardedVerbatim(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	raw := json.RawMessage(`{"sdp":"v=0 o=- 46117 2","type":"offer","extra":[1,2,3]}`)
	rl.Dispatch(aConn, Envelope{Type: TypeOffer, Payload: raw})

	env := bSender.lastOfType(t, TypeOffer)
	require.JSONEq(t, string(raw), string(env.Payload))

	// The sender never hears its own signal back.
	require.NotContains(t, aSender.types(), TypeOffer)

	// First forwarded signal advances the sender into negotiation.
	state, _ := rl.registry.State(aConn)
	require.Equal(t, StateNegotiating, state)
}

func TestRelaySignalWithoutRoomRejected(t *testing.T) {
	rl := newTestRelay(2)

	connID, sender := connect(rl, "u1", "Alice")

	offer, err := NewEnvelope(TypeOffer, map[string]string{"sdp": "v=0"})
	require.NoError(t, err)
	rl.Dispatch(connID, offer)

	env := sender.lastOfType(t, TypeError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	require.Equal(t, errs.ErrNotInRoom, errPayload.Code)
}

func TestRelayCandidateOrderPerSender(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, _ := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	for i := 0; i < 5; i++ {
		env, err := NewEnvelope(TypeCandidate, map[string]int{"seq": i})
		require.NoError(t, err)
		rl.Dispatch(aConn, env)
	}

	var got []int
	for _, env := range bSender.envelopes() {
		if env.Type != TypeCandidate {
			continue
		}
		var payload struct {
			Seq int `json:"seq"`
		}
		require.NoError(t, json.Unmarshal(env.Payload, &payload))
		got = append(got, payload.Seq)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestRelayChatStampedAndFannedOut(t *testing.T) {
	rl := newTestRelay(0)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	rl.now = func() time.Time { return fixed }
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)
	cConn, cSender := connect(rl, "u3", "Carol")
	join(t, rl, cConn, roomID)

	chat, err := NewEnvelope(TypeChat, ChatPayload{Text: "hello"})
	require.NoError(t, err)
	rl.Dispatch(aConn, chat)

	for _, recipient := range []*fakeSender{bSender, cSender} {
		env := recipient.lastOfType(t, TypeChat)
		var event ChatEventPayload
		require.NoError(t, json.Unmarshal(env.Payload, &event))
		require.Equal(t, "hello", event.Text)
		require.Equal(t, "Alice", event.SenderDisplayName)
		require.True(t, fixed.Equal(event.ServerTimestamp))
	}

	// Chat does not echo back to the sender.
	require.NotContains(t, aSender.types(), TypeChat)
}

func TestRelayChatTooLong(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	connID, sender := connect(rl, "u1", "Alice")
	join(t, rl, connID, roomID)

	text := make([]byte, MaxChatBytes+1)
	for i := range text {
		text[i] = 'x'
	}
	chat, err := NewEnvelope(TypeChat, ChatPayload{Text: string(text)})
	require.NoError(t, err)
	rl.Dispatch(connID, chat)

	env := sender.lastOfType(t, TypeError)
	var errPayload ErrorPayload
	require.NoError(t, json.Unmarshal(env.Payload, &errPayload))
	require.Equal(t, errs.ErrChatTooLong, errPayload.Code)
}

func TestRelayLeaveNotifiesRemaining(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	rl.Dispatch(bConn, Envelope{Type: TypeLeave})

	env := aSender.lastOfType(t, TypePeerLeft)
	var peer PeerEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &peer))
	require.Equal(t, "u2", peer.UserID)

	// Leaving ends the signaling session for good.
	require.True(t, bSender.isClosed())

	occupancy, exists := rl.RoomOccupancy(roomID)
	require.True(t, exists)
	require.Equal(t, 1, occupancy)
}

func TestRelayDisconnectActsAsLeave(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, _ := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	// Transport drop with no leave message; the room is resolved internally.
	rl.Disconnect(bConn)

	env := aSender.lastOfType(t, TypePeerLeft)
	var peer PeerEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &peer))
	require.Equal(t, "u2", peer.UserID)

	require.Equal(t, 1, rl.registry.Len())
}

func TestRelayLeaveThenDisconnectSingleNotice(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, _ := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	// Explicit leave followed by the transport teardown it triggers.
	rl.Dispatch(bConn, Envelope{Type: TypeLeave})
	rl.Disconnect(bConn)

	var peerLefts int
	for _, msgType := range aSender.types() {
		if msgType == TypePeerLeft {
			peerLefts++
		}
	}
	require.Equal(t, 1, peerLefts, "remaining peer must hear exactly one peer-left")
}

func TestRelayLastLeaverRemovesRoom(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, _ := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, _ := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	rl.Disconnect(aConn)
	rl.Disconnect(bConn)

	_, exists := rl.RoomOccupancy(roomID)
	require.False(t, exists)
	require.Equal(t, 0, rl.registry.Len())
}

func TestRelayTwoPartyCallScenario(t *testing.T) {
	rl := newTestRelay(2)
	roomID := randx.RoomID()

	aConn, aSender := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)

	offer, err := NewEnvelope(TypeOffer, map[string]string{"sdp": "offer-sdp"})
	require.NoError(t, err)
	rl.Dispatch(aConn, offer)

	answer, err := NewEnvelope(TypeAnswer, map[string]string{"sdp": "answer-sdp"})
	require.NoError(t, err)
	rl.Dispatch(bConn, answer)

	for i := 0; i < 3; i++ {
		env, err := NewEnvelope(TypeCandidate, map[string]string{"candidate": fmt.Sprintf("a-cand-%d", i)})
		require.NoError(t, err)
		rl.Dispatch(aConn, env)
	}

	require.Contains(t, bSender.types(), TypeOffer)
	require.Contains(t, aSender.types(), TypeAnswer)

	// Both sides are mid-negotiation now.
	aState, _ := rl.registry.State(aConn)
	bState, _ := rl.registry.State(bConn)
	require.Equal(t, StateNegotiating, aState)
	require.Equal(t, StateNegotiating, bState)

	// B hangs up; A is told, and the room survives with A alone in it.
	rl.Dispatch(bConn, Envelope{Type: TypeLeave})
	rl.Disconnect(bConn)

	aSender.lastOfType(t, TypePeerLeft)

	occupancy, exists := rl.RoomOccupancy(roomID)
	require.True(t, exists)
	require.Equal(t, 1, occupancy)

	// A leaves too; the room disappears.
	rl.Disconnect(aConn)
	_, exists = rl.RoomOccupancy(roomID)
	require.False(t, exists)
}

func TestRelayFanOutSurvivesDeadRecipient(t *testing.T) {
	rl := newTestRelay(0)
	roomID := randx.RoomID()

	aConn, _ := connect(rl, "u1", "Alice")
	join(t, rl, aConn, roomID)
	bConn, bSender := connect(rl, "u2", "Bob")
	join(t, rl, bConn, roomID)
	cConn, cSender := connect(rl, "u3", "Carol")
	join(t, rl, cConn, roomID)

	// B's transport dies without the relay noticing yet.
	bSender.Close()

	offer, err := NewEnvelope(TypeOffer, map[string]string{"sdp": "v=0"})
	require.NoError(t, err)
	rl.Dispatch(aConn, offer)

	// C still receives the signal despite B's failure.
	cSender.lastOfType(t, TypeOffer)
}

func TestRelayUnknownMessageTypeDropped(t *testing.T) {
	rl := newTestRelay(2)

	connID, sender := connect(rl, "u1", "Alice")
	rl.Dispatch(connID, Envelope{Type: MessageType("bogus")})

	require.Empty(t, sender.envelopes())
}

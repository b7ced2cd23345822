/*
Package signaling contains the core logic for room coordination and WebRTC
negotiation relay.

This file defines the Relay, the event-driven router behind the signaling
channel. Every inbound envelope from every connection is dispatched through a
single typed switch; the per-connection state machine lives in the registry
and is advanced here. The relay never parses negotiation payloads: offers,
answers, and candidates are forwarded byte-for-byte to every other occupant
of the sender's room.
*/
package signaling

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"peercall/internal/app/identity"
	"peercall/internal/pkg/errs"
	"peercall/internal/pkg/logx"
	"peercall/internal/pkg/randx"
)

// MaxChatBytes is the maximum allowed size of the chat text field.
const MaxChatBytes = 5000

// Sender is the outbound half of a signaling connection. Send queues an
// envelope for delivery; it must not block the caller (a full queue drops the
// message and returns an error). Close asks the transport to shut down.
type Sender interface {
	Send(env Envelope) error
	Close()
}

// Relay routes signaling traffic between the participants of a room. It owns
// no shared state of its own: the injected Registry and RoomTable carry all
// of it, so independent Relay instances can coexist in one process.
type Relay struct {
	registry *Registry
	rooms    *RoomTable
	logger   zerolog.Logger

	// now stamps chat receipts; replaceable in tests.
	now func() time.Time
}

// NewRelay constructs a Relay over the given registry and room table.
func NewRelay(registry *Registry, rooms *RoomTable) *Relay {
	relayLogger := logx.Logger().With().Str("component", "relay").Logger()

	return &Relay{
		registry: registry,
		rooms:    rooms,
		logger:   relayLogger,
		now:      time.Now,
	}
}

// Connect registers a new transport connection carrying the given identity
// claims and returns its connection identifier.
func (rl *Relay) Connect(id identity.Identity, sender Sender) ConnID {
	connID := rl.registry.Register(id, sender)

	rl.logger.Info().
		Str("conn_id", string(connID)).
		Str("user_id", id.UserID).
		Msg("Connection registered.")

	return connID
}

// RoomOccupancy reports the current participant count of a room and whether
// the room exists at all. It serves the HTTP pre-join probe; the answer may
// be stale by the time the caller's join arrives.
func (rl *Relay) RoomOccupancy(roomID string) (int, bool) {
	if !rl.rooms.Has(roomID) {
		return 0, false
	}
	return len(rl.rooms.Participants(roomID)), true
}

// Capacity reports the room table's configured participant limit, 0 meaning unbounded.
func (rl *Relay) Capacity() int {
	return rl.rooms.capacity
}

// Dispatch routes one inbound envelope from the given connection. Errors are
// reported back to the sender only and never terminate the connection.
func (rl *Relay) Dispatch(connID ConnID, env Envelope) {
	switch env.Type {
	case TypeJoin:
		var payload JoinPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			rl.logger.Warn().Str("conn_id", string(connID)).Err(err).Msg("Malformed join payload.")
			rl.sendError(connID, errs.ErrInvalidRoomID)
			return
		}
		rl.handleJoin(connID, payload.RoomID)

	case TypeLeave:
		rl.handleLeave(connID)

	case TypeOffer, TypeAnswer, TypeCandidate:
		rl.handleSignal(connID, env)

	case TypeChat:
		rl.handleChat(connID, env.Payload)

	default:
		rl.logger.Warn().
			Str("conn_id", string(connID)).
			Str("msg_type", string(env.Type)).
			Msg("Unsupported message type dropped.")
	}
}

// Disconnect runs the teardown path for a closed transport. The room, if any,
// is resolved through the registry and cleaned up exactly as an explicit
// leave would; the registry entry is removed last so LookupRoom stays
// reliable throughout teardown.
func (rl *Relay) Disconnect(connID ConnID) {
	rl.leaveRoom(connID)
	rl.registry.Unregister(connID)

	rl.logger.Info().Str("conn_id", string(connID)).Msg("Connection unregistered.")
}

// handleJoin admits the connection into the named room, creating the room on
// first join. The joiner's acceptance is queued before any peer-joined goes
// out, so the joiner can never see negotiation traffic before it knows it is in.
func (rl *Relay) handleJoin(connID ConnID, roomID string) {
	if !randx.IsValidRoomID(roomID) {
		rl.logger.Warn().Str("conn_id", string(connID)).Str("room_id", roomID).Msg("Join rejected: invalid room identifier.")
		rl.sendError(connID, errs.ErrInvalidRoomID)
		return
	}

	state, ok := rl.registry.State(connID)
	if !ok {
		rl.logger.Error().Str("conn_id", string(connID)).Msg("Join from unregistered connection.")
		return
	}
	if state != StateDisconnected {
		rl.logger.Warn().
			Str("conn_id", string(connID)).
			Str("state", string(state)).
			Msg("Join rejected: connection already has a session.")
		rl.sendError(connID, errs.ErrAlreadyInRoom)
		return
	}

	id, _ := rl.registry.Identity(connID)
	sender, _ := rl.registry.Sender(connID)

	rl.registry.SetState(connID, StateJoining)

	participant := &Participant{
		ConnID:   connID,
		Identity: id,
		JoinedAt: rl.now(),
		sender:   sender,
	}

	if err := rl.rooms.AddParticipant(roomID, participant); err != nil {
		rl.registry.SetState(connID, StateDisconnected)

		switch err {
		case ErrAlreadyInRoom:
			rl.sendError(connID, errs.ErrAlreadyInRoom)
		case ErrRoomFull:
			rl.logger.Info().Str("conn_id", string(connID)).Str("room_id", roomID).Msg("Join rejected: room is full.")
			rl.sendError(connID, errs.ErrRoomFull)
		default:
			rl.logger.Error().Err(err).Str("conn_id", string(connID)).Msg("Join failed.")
			rl.sendError(connID, errs.ErrUnknown)
		}
		return
	}

	if err := rl.registry.BindRoom(connID, roomID); err != nil {
		// The connection vanished between admission and binding; undo the join.
		rl.logger.Error().Err(err).Str("conn_id", string(connID)).Str("room_id", roomID).Msg("Bind after admission failed.")
		rl.rooms.RemoveParticipant(roomID, connID)
		return
	}

	rl.registry.SetState(connID, StateJoined)

	rl.logger.Info().
		Str("conn_id", string(connID)).
		Str("room_id", roomID).
		Str("user_id", id.UserID).
		Msg("Participant joined room.")

	// Acceptance first, then peer-joined to existing occupants in join order.
	rl.sendEvent(connID, sender, TypeJoined, JoinedPayload{RoomID: roomID})

	event := PeerEventPayload{Identity: id}
	for _, other := range rl.rooms.ListOthers(roomID, connID) {
		rl.sendEvent(other.ConnID, other.sender, TypePeerJoined, event)
	}
}

// handleLeave runs the explicit leave path. Leaving is terminal for the
// signaling session, so the transport is asked to close afterwards; the
// disconnect that follows finds nothing left to clean up.
func (rl *Relay) handleLeave(connID ConnID) {
	rl.leaveRoom(connID)

	if sender, ok := rl.registry.Sender(connID); ok {
		sender.Close()
	}
}

// leaveRoom removes the connection from its current room and notifies the
// remaining occupants. It is idempotent: an explicit leave racing a transport
// close resolves through the room table's atomic remove, so exactly one
// caller wins and exactly one peer-left fan-out happens.
func (rl *Relay) leaveRoom(connID ConnID) {
	roomID, bound := rl.registry.LookupRoom(connID)
	if !bound {
		return
	}

	rl.registry.UnbindRoom(connID)
	rl.registry.SetState(connID, StateLeaving)

	removed, remaining, ok := rl.rooms.RemoveParticipant(roomID, connID)
	if !ok {
		// A concurrent leave already cleaned up; nothing to announce.
		return
	}

	rl.logger.Info().
		Str("conn_id", string(connID)).
		Str("room_id", roomID).
		Int("remaining", len(remaining)).
		Msg("Participant left room.")

	event := PeerEventPayload{Identity: removed.Identity}
	for _, p := range remaining {
		rl.sendEvent(p.ConnID, p.sender, TypePeerLeft, event)
	}
}

// handleSignal forwards an offer, answer, or candidate envelope unchanged to
// every other occupant of the sender's room. The payload is never inspected.
func (rl *Relay) handleSignal(connID ConnID, env Envelope) {
	roomID, bound := rl.registry.LookupRoom(connID)
	if !bound {
		rl.logger.Warn().
			Str("conn_id", string(connID)).
			Str("msg_type", string(env.Type)).
			Msg("Signaling message from connection not in a room, dropped.")
		rl.sendError(connID, errs.ErrNotInRoom)
		return
	}

	if state, _ := rl.registry.State(connID); state == StateJoined {
		rl.registry.SetState(connID, StateNegotiating)
	}

	for _, other := range rl.rooms.ListOthers(roomID, connID) {
		if err := other.sender.Send(env); err != nil {
			// Best-effort fan-out: one slow or dying recipient must not
			// starve the rest.
			rl.logger.Warn().
				Err(err).
				Str("recipient", string(other.ConnID)).
				Str("msg_type", string(env.Type)).
				Msg("Failed to forward signaling message.")
		}
	}
}

// handleChat fans a chat message out to the other occupants of the sender's
// room, stamped with the sender's display name and a server receipt time.
// Chat is a separate logical channel from negotiation; no cross-channel
// ordering is promised.
func (rl *Relay) handleChat(connID ConnID, raw json.RawMessage) {
	roomID, bound := rl.registry.LookupRoom(connID)
	if !bound {
		rl.logger.Warn().Str("conn_id", string(connID)).Msg("Chat message from connection not in a room, dropped.")
		rl.sendError(connID, errs.ErrNotInRoom)
		return
	}

	var payload ChatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		rl.logger.Warn().Str("conn_id", string(connID)).Err(err).Msg("Malformed chat payload.")
		return
	}

	if len(payload.Text) > MaxChatBytes {
		rl.sendError(connID, errs.ErrChatTooLong)
		return
	}

	id, _ := rl.registry.Identity(connID)

	event := ChatEventPayload{
		Text:              payload.Text,
		SenderDisplayName: id.DisplayName,
		ServerTimestamp:   rl.now(),
	}

	for _, other := range rl.rooms.ListOthers(roomID, connID) {
		rl.sendEvent(other.ConnID, other.sender, TypeChat, event)
	}
}

// sendEvent marshals and queues one event for one recipient, best-effort.
func (rl *Relay) sendEvent(connID ConnID, sender Sender, msgType MessageType, payload any) {
	env, err := NewEnvelope(msgType, payload)
	if err != nil {
		rl.logger.Error().Err(err).Str("msg_type", string(msgType)).Msg("Failed to build event envelope.")
		return
	}

	if err := sender.Send(env); err != nil {
		rl.logger.Warn().
			Err(err).
			Str("recipient", string(connID)).
			Str("msg_type", string(msgType)).
			Msg("Failed to queue event.")
	}
}

// sendError reports a non-fatal protocol error to the offending connection only.
func (rl *Relay) sendError(connID ConnID, code int) {
	sender, ok := rl.registry.Sender(connID)
	if !ok {
		return
	}

	customErr := errs.NewError(code)
	rl.sendEvent(connID, sender, TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

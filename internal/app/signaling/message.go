/*
Package signaling contains the core logic for room coordination and WebRTC
negotiation relay: the connection registry, the room table, and the relay that
routes join/leave, offer/answer/candidate, and chat messages between peers.

This file defines the wire envelope shared by both directions of the signaling
channel. Negotiation payloads (session descriptions and network candidates) are
opaque to the server: they stay json.RawMessage from receipt to fan-out.
*/
package signaling

import (
	"encoding/json"
	"time"

	"peercall/internal/app/identity"
)

// MessageType discriminates the envelope variants on the signaling channel.
type MessageType string

// Client-to-relay message types.
const (
	// TypeJoin asks to join (or create) the room named in JoinPayload.
	TypeJoin MessageType = "join"

	// TypeLeave leaves the current room. The room is implicit; the registry
	// resolves it, so clients never restate it.
	TypeLeave MessageType = "leave"

	// TypeOffer and TypeAnswer carry opaque session-description blobs.
	TypeOffer  MessageType = "offer"
	TypeAnswer MessageType = "answer"

	// TypeCandidate carries an opaque network-candidate blob.
	TypeCandidate MessageType = "candidate"

	// TypeChat carries a text chat message for the current room.
	TypeChat MessageType = "chat"
)

// Relay-to-client message types. Offer, answer, candidate, and chat are reused
// for the forwarded direction.
const (
	// TypeJoined acknowledges a successful join to the joining client.
	TypeJoined MessageType = "joined"

	// TypePeerJoined notifies existing occupants that a new peer entered the room.
	TypePeerJoined MessageType = "peer-joined"

	// TypePeerLeft notifies remaining occupants that a peer left or disconnected.
	TypePeerLeft MessageType = "peer-left"

	// TypeError reports a non-fatal protocol error to the offending sender only.
	TypeError MessageType = "error"
)

// Envelope is the single tagged message exchanged over the signaling channel.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the given type tag.
func NewEnvelope(msgType MessageType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// JoinPayload names the room the client wants to enter.
type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// JoinedPayload acknowledges admission into a room.
type JoinedPayload struct {
	RoomID string `json:"roomId"`
}

// PeerEventPayload carries the public identity of a joining or leaving peer.
type PeerEventPayload struct {
	identity.Identity
}

// ChatPayload is the inbound chat message body.
type ChatPayload struct {
	Text string `json:"text"`
}

// ChatEventPayload is the outbound chat message, stamped with the sender's
// display name and a server-assigned receipt timestamp.
type ChatEventPayload struct {
	Text              string    `json:"text"`
	SenderDisplayName string    `json:"senderDisplayName"`
	ServerTimestamp   time.Time `json:"serverTimestamp"`
}

// ErrorPayload reports a non-fatal error back to the sender.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

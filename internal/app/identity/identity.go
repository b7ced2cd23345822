/*
Package identity carries the public identity claims of a connected participant.

The claims originate from the authentication collaborator (a validated JWT); the
signaling relay trusts them without re-verification and forwards them verbatim
in peer events. Transport internals never leave the server.
*/
package identity

// Identity is the public identity of a participant as shown to its peers.
type Identity struct {
	// UserID is the unique account identifier from the auth token.
	UserID string `json:"userId"`

	// DisplayName is the name rendered by other clients.
	DisplayName string `json:"displayName"`
}

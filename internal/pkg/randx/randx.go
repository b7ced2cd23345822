/*
Package randx provides generation and validation of the identifiers used across the system.

Room identifiers are random 128-bit values rendered as UUID-v4 strings; the same
namespace is shared with the call-log records so that live rooms and historical
calls can be correlated without sharing any live state.
*/
package randx

import (
	"regexp"

	"github.com/google/uuid"
)

// roomIDRegex matches a UUID-v4 string (lowercase or uppercase hex).
var roomIDRegex = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// RoomID generates a fresh room identifier as a UUID-v4 string.
func RoomID() string {
	return uuid.New().String()
}

// ConnectionID generates a fresh identifier for a live transport connection.
// A new one is minted per connection; reconnecting yields a new identity.
func ConnectionID() string {
	return uuid.New().String()
}

// IsValidRoomID reports whether the given string is a well-formed room identifier.
func IsValidRoomID(id string) bool {
	if len(id) != 36 {
		return false
	}
	return roomIDRegex.MatchString(id)
}

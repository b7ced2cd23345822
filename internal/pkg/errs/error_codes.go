/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally
within the server and in communication with clients, over HTTP and over the
signaling channel alike.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Room and Signaling Errors
const (
	// ErrInvalidRoomID indicates that the supplied room identifier is not a UUID-v4 string.
	ErrInvalidRoomID = 2101

	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = 2102

	// ErrRoomFull indicates that the room has reached its configured participant capacity.
	ErrRoomFull = 2103

	// ErrAlreadyInRoom indicates that the connection is already a participant of a room.
	ErrAlreadyInRoom = 2104

	// ErrNotInRoom indicates that a signaling or chat message arrived from a
	// connection that is not currently in any room. The message is dropped.
	ErrNotInRoom = 2105

	// ErrChatTooLong indicates that a chat message exceeded the maximum length limit.
	ErrChatTooLong = 2201
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid authentication token.
	ErrUnauthorized = 3001

	// ErrInvalidUsername indicates that the supplied username does not meet format requirements.
	ErrInvalidUsername = 3002

	// ErrInvalidEmail indicates that the supplied email address is malformed.
	ErrInvalidEmail = 3003

	// ErrInvalidPassword indicates that the supplied password does not meet length requirements.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates that the username or email is already taken.
	ErrUserAlreadyExists = 3005

	// ErrInvalidCredentials indicates an email/password mismatch at login.
	ErrInvalidCredentials = 3006

	// ErrUserNotFound indicates that the requested user account does not exist.
	ErrUserNotFound = 3007

	// ErrOldPasswordInvalid indicates that the current password given for a password change is wrong.
	ErrOldPasswordInvalid = 3008

	// ErrSamePassword indicates that the new password equals the current one.
	ErrSamePassword = 3009

	// ErrAvatarKeyInvalid indicates that the submitted avatar object key does not belong to the user.
	ErrAvatarKeyInvalid = 3010
)

// 4xxx: Call Log Errors
const (
	// ErrCallLogInvalid indicates that the call log payload failed validation
	// (missing ids, caller equals receiver, or end time before start time).
	ErrCallLogInvalid = 4001

	// ErrCallLogNotFound indicates that no open call log exists for the given room.
	ErrCallLogNotFound = 4002
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrNotRegistered indicates an operation on a connection identifier the
	// registry has never seen. This is an internal invariant violation and is
	// logged loudly; clients never trigger it through the protocol.
	ErrNotRegistered = 5001
)

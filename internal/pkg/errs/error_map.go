/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to
standardize HTTP responses and signaling error events.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
// The key is the error code (int), and the value contains the user message and HTTP status code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Signaling Errors
	ErrInvalidRoomID: {Code: ErrInvalidRoomID, Message: "Invalid room ID format.", Status: http.StatusBadRequest},
	ErrRoomNotFound:  {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomFull:      {Code: ErrRoomFull, Message: "This room is full."},
	ErrAlreadyInRoom: {Code: ErrAlreadyInRoom, Message: "You are already in a room."},
	ErrNotInRoom:     {Code: ErrNotInRoom, Message: "You are not in a room."},
	ErrChatTooLong:   {Code: ErrChatTooLong, Message: "Message is too long."},

	// 3xxx: User, Session, and Security Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidEmail:       {Code: ErrInvalidEmail, Message: "Invalid email address.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be between 8 and 50 characters.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "User with this %s already exists.", Status: http.StatusBadRequest},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid credentials.", Status: http.StatusUnauthorized},
	ErrUserNotFound:       {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrOldPasswordInvalid: {Code: ErrOldPasswordInvalid, Message: "Current password is incorrect.", Status: http.StatusUnauthorized},
	ErrSamePassword:       {Code: ErrSamePassword, Message: "New password must be different from current password.", Status: http.StatusBadRequest},
	ErrAvatarKeyInvalid:   {Code: ErrAvatarKeyInvalid, Message: "Invalid avatar reference.", Status: http.StatusBadRequest},

	// 4xxx: Call Log Errors
	ErrCallLogInvalid:  {Code: ErrCallLogInvalid, Message: "Invalid call log data.", Status: http.StatusBadRequest},
	ErrCallLogNotFound: {Code: ErrCallLogNotFound, Message: "Active call log not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown:       {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrNotRegistered: {Code: ErrNotRegistered, Message: "Connection is not registered.", Status: http.StatusInternalServerError},
}

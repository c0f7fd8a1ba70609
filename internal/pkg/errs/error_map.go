/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError template, used to
standardize wire responses and gateway HTTP responses alike.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// Messages are client-safe; wrong-password and unknown-user deliberately share
// one message so the wire protocol does not allow account enumeration.
var errorMap = map[int]CustomError{
	// 1xxx: Protocol and request handling errors
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrMalformedPacket:   {Code: ErrMalformedPacket, Message: "Malformed packet."},
	ErrUnknownPacketType: {Code: ErrUnknownPacketType, Message: "Unknown packet type %q."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Chat content and query errors
	ErrMessageContentTooLong:  {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrSearchCriteriaRequired: {Code: ErrSearchCriteriaRequired, Message: "Provide at least one search criterion (query, username, from, or to)."},

	// 3xxx: Authentication and session errors
	ErrAuthRequired:         {Code: ErrAuthRequired, Message: "You must register or login first.", Status: http.StatusUnauthorized},
	ErrAlreadyAuthenticated: {Code: ErrAlreadyAuthenticated, Message: "You are already signed in."},
	ErrInvalidCredentials:   {Code: ErrInvalidCredentials, Message: "Incorrect username or password."},
	ErrUserAlreadyExists:    {Code: ErrUserAlreadyExists, Message: "Username %q is already taken."},
	ErrInvalidToken:         {Code: ErrInvalidToken, Message: "Session token is invalid or expired.", Status: http.StatusUnauthorized},
	ErrSessionReplaced:      {Code: ErrSessionReplaced, Message: "You signed in from another connection."},

	// 5xxx: Internal system errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

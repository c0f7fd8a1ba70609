/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific protocol, authentication, or system errors
both internally within the server and in responses sent to clients.
*/
package errs

// 1xxx: Protocol and request handling errors
const (
	// ErrInvalidParams indicates that a packet payload failed validation.
	ErrInvalidParams = 1001

	// ErrMalformedPacket indicates that an inbound line was not a valid packet.
	ErrMalformedPacket = 1002

	// ErrUnknownPacketType indicates a packet with an unrecognized type tag.
	ErrUnknownPacketType = 1003

	// ErrRateLimitExceeded indicates that the connection rate limit was hit.
	ErrRateLimitExceeded = 1004
)

// 2xxx: Chat content and query errors
const (
	// ErrMessageContentTooLong indicates that chat content exceeded the size limit.
	ErrMessageContentTooLong = 2001

	// ErrSearchCriteriaRequired indicates a search with every criterion empty.
	ErrSearchCriteriaRequired = 2002
)

// 3xxx: Authentication and session errors
const (
	// ErrAuthRequired indicates an operation that needs an authenticated session.
	ErrAuthRequired = 3001

	// ErrAlreadyAuthenticated indicates a register/login on an authenticated session.
	ErrAlreadyAuthenticated = 3002

	// ErrInvalidCredentials covers both unknown-user and wrong-password failures.
	ErrInvalidCredentials = 3003

	// ErrUserAlreadyExists indicates a registration with a taken username.
	ErrUserAlreadyExists = 3004

	// ErrInvalidToken indicates an expired or unverifiable session token.
	ErrInvalidToken = 3005

	// ErrSessionReplaced indicates the session was closed by a newer login.
	ErrSessionReplaced = 3006
)

// 5xxx: Internal system errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)

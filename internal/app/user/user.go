/*
Package user contains the core data structure for a registered account.
*/
package user

import "time"

// User represents a registered account. The password hash never leaves the
// store layer in wire payloads.
type User struct {
	// ID is the account's unique identifier (UUIDv4).
	ID string `json:"id"`

	// Username is the display-cased name; uniqueness and lookup are
	// case-insensitive, but the original casing is preserved.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the account password.
	PasswordHash string `json:"password_hash"`

	// CreatedAt records when the account was registered (UTC).
	CreatedAt time.Time `json:"created_at"`
}

/*
Package randx provides generators for user and message identifiers.

User IDs are standard UUIDv4 strings. Message IDs are time-ordered and
strictly increasing across the process, which the store relies on as the
stable tie-break for history and search ordering.
*/
package randx

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// UserID generates a UUIDv4 string identifying a registered account.
func UserID() string {
	return uuid.New().String()
}

// lastID holds the most recently issued message ID value so concurrent
// callers always observe a strictly increasing sequence even when the clock
// reads the same nanosecond twice (or steps backwards).
var lastID atomic.Int64

// MessageID generates an opaque, time-ordered message identifier.
// The zero-padded decimal encoding keeps lexicographic order equal to
// numeric order, so IDs sort the same as strings and as integers.
func MessageID() string {
	for {
		now := time.Now().UnixNano()
		last := lastID.Load()
		if now <= last {
			now = last + 1
		}
		if lastID.CompareAndSwap(last, now) {
			return fmt.Sprintf("%020d", now)
		}
	}
}

package presence

import (
	"context"
)

// Record identifies one ephemeral presence entry: a single connection of a
// user inside a room. A user with several concurrent connections to the same
// room holds several records.
type Record struct {
	Room     string
	Username string
	ConnID   string
}

// Store is the shared TTL-based presence ledger. Records expire on their own
// if a process dies without cleaning up; explicit Delete keeps presence fresh
// on graceful leaves. Global presence questions are always answered by
// scanning the store, never by trusting one process's in-memory state.
type Store interface {
	// Put writes (or refreshes) the record with a fresh TTL.
	Put(ctx context.Context, rec Record) error
	// Delete removes the record proactively. A failed delete is not fatal:
	// the record still expires within one TTL window.
	Delete(ctx context.Context, rec Record) error
	// UserPresent reports whether any record exists for (room, username),
	// across all connections and all processes.
	UserPresent(ctx context.Context, room, username string) (bool, error)
	// ListUsers returns the sorted set of distinct usernames present in the
	// room across all matching records.
	ListUsers(ctx context.Context, room string) ([]string, error)
	Close() error
}

package presence

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the leading segment of every presence key.
const DefaultPrefix = "presence"

// Key layout: <prefix>:<room>:<username>:<connID>

func recordKey(prefix string, rec Record) string {
	return fmt.Sprintf("%s:%s:%s:%s", prefix, rec.Room, rec.Username, rec.ConnID)
}

func roomPattern(prefix, room string) string {
	return fmt.Sprintf("%s:%s:*", prefix, room)
}

func userPattern(prefix, room, username string) string {
	return fmt.Sprintf("%s:%s:%s:*", prefix, room, username)
}

// usernameFromKey extracts the username field from a presence key. Keys that
// do not split into exactly four fields are skipped rather than treated as
// errors; a malformed key in the store must never break a presence scan.
func usernameFromKey(key string) (string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 {
		return "", false
	}
	if parts[2] == "" {
		return "", false
	}
	return parts[2], true
}

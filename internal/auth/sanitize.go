package auth

import (
	"errors"
	"strings"
)

// ErrInvalidUsername is returned when a username cannot be normalized into
// the accepted form.
var ErrInvalidUsername = errors.New("invalid username")

// SanitizeUsername normalizes a raw username: lowercase, runs of spaces,
// hyphens and underscores collapse to a single underscore, leading and
// trailing underscores are trimmed. The result must match [a-z0-9_.]+ and be
// 3 to 32 characters long, otherwise ErrInvalidUsername is returned.
func SanitizeUsername(raw string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return "", ErrInvalidUsername
	}

	var b strings.Builder
	b.Grow(len(lowered))
	inSeparator := false
	for _, r := range lowered {
		if r == ' ' || r == '-' || r == '_' {
			if !inSeparator {
				b.WriteByte('_')
				inSeparator = true
			}
			continue
		}
		inSeparator = false
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		} else {
			return "", ErrInvalidUsername
		}
	}

	name := strings.Trim(b.String(), "_")
	if len(name) < 3 || len(name) > 32 {
		return "", ErrInvalidUsername
	}
	return name, nil
}

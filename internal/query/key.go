package query

import (
	"fmt"
	"strings"
)

// Key identifies a cached query. Keys are compared part by part and
// invalidation matches on prefix, so ["Teams", "1"] covers every
// ["Teams", "1", ...] entry.
type Key []string

// NewKey builds a key from arbitrary parts using their default formatting
func NewKey(parts ...any) Key {
	k := make(Key, len(parts))
	for i, p := range parts {
		k[i] = fmt.Sprint(p)
	}
	return k
}

// String returns a stable representation usable as a map key
func (k Key) String() string {
	return strings.Join(k, "\x1f")
}

// HasPrefix reports whether prefix matches the leading parts of k
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Overlaps reports whether one key is a prefix of the other
func (k Key) Overlaps(other Key) bool {
	return k.HasPrefix(other) || other.HasPrefix(k)
}

// Append returns a new key with parts added at the end
func (k Key) Append(parts ...any) Key {
	out := make(Key, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, NewKey(parts...)...)
}

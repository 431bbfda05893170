package query

import "strings"

// Key identifies a cached resource. Keys are hierarchical: invalidating
// {"orders"} also invalidates {"orders", "open"}.
type Key []string

// NewKey builds a key from its parts.
func NewKey(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, "/")
}

// Resource is the first segment, used as the metrics label.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether prefix matches the leading segments of k.
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

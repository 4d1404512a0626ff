package canvas

import (
	"fmt"
	"strings"
	"unicode"
)

// slugFallback is used when a label contains no usable characters at all.
const slugFallback = "node"

// Slugify converts an arbitrary label into a lower-case identifier made of
// alphanumeric runs joined by single underscores.
func Slugify(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	parts := make([]string, 0, 4)
	for _, part := range strings.Split(b.String(), "_") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return slugFallback
	}
	return strings.Join(parts, "_")
}

// IdentifierRegistry hands out unique node ids. A fresh registry is used per
// plan sanitization so a bulk plan dedupes within itself; the store keeps a
// persistent registry seeded from the metadata document for direct creates.
type IdentifierRegistry struct {
	used map[string]int
}

func NewIdentifierRegistry(seed ...string) *IdentifierRegistry {
	r := &IdentifierRegistry{used: map[string]int{}}
	for _, id := range seed {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := r.used[id]; !ok {
			r.used[id] = 1
		}
	}
	return r
}

// Reserve slugifies the candidate and appends a numeric suffix until the
// result is unique within this registry, then records it.
func (r *IdentifierRegistry) Reserve(candidate string) string {
	id := Slugify(candidate)
	count, taken := r.used[id]
	if !taken {
		r.used[id] = 1
		return id
	}
	for {
		count++
		suffixed := fmt.Sprintf("%s_%d", id, count)
		if _, exists := r.used[suffixed]; !exists {
			r.used[id] = count
			r.used[suffixed] = 1
			return suffixed
		}
	}
}

// Known reports whether an id has already been handed out or seeded.
func (r *IdentifierRegistry) Known(id string) bool {
	_, ok := r.used[id]
	return ok
}

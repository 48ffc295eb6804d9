package twitch

import (
	"strings"
	"sync"
)

// Sigil prefixes channel names on the wire. It never appears in Channel.Name.
const Sigil = "#"

// Channel is the canonical handle for one chat channel. Handles are only
// created by a Registry, so two handles are equal exactly when their names are.
type Channel struct {
	name string
}

// Name returns the normalized channel name without the sigil.
func (c *Channel) Name() string {
	if c == nil {
		return ""
	}

	return c.name
}

// String renders the wire form, for example "#bob".
func (c *Channel) String() string {
	return Sigil + c.Name()
}

// Registry interns channel names. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
}

// NewRegistry creates an empty intern table.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Intern returns the single handle for name. Surrounding spaces and a leading
// sigil are dropped and the name is lowercased. An empty name yields nil.
func (r *Registry) Intern(name string) *Channel {
	key := NormalizeName(name)
	if key == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[key]; ok {
		return ch
	}

	ch := &Channel{name: key}
	r.channels[key] = ch
	return ch
}

// InternAll interns every non-empty name, dropping duplicates while keeping order.
func (r *Registry) InternAll(names []string) []*Channel {
	out := make([]*Channel, 0, len(names))
	seen := make(map[*Channel]struct{}, len(names))
	for _, name := range names {
		ch := r.Intern(name)
		if ch == nil {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}

	return out
}

// Len returns the number of interned channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// NormalizeName maps a user- or wire-supplied name to its registry key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), Sigil))
}

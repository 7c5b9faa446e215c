package chat

import (
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/lo"
)

// MaxNameLength is the longest display name, in characters, a connection may claim.
const MaxNameLength = 20

// Conn is a live bidirectional channel to one peer. Implementations are owned
// by the transport; the registry only keeps references for bookkeeping.
type Conn interface {
	// ID returns a stable identifier used in logs.
	ID() string
	// Send queues one text frame for the peer. It must not block on a slow
	// peer and must return an error once the connection is unusable.
	Send(frame []byte) error
	// Close tears down the transport. It is safe to call more than once.
	Close()
}

// Registry tracks live connections and the display name each one claimed.
// All methods are safe for concurrent use; every mutation happens inside a
// single critical section so a snapshot never sees a half-applied change.
type Registry struct {
	mu     sync.RWMutex
	conns  map[Conn]struct{}
	names  map[Conn]string
	owners map[string]Conn
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[Conn]struct{}),
		names:  make(map[Conn]string),
		owners: make(map[string]Conn),
	}
}

// Add inserts c into the live set. Adding a present connection is a no-op.
func (r *Registry) Add(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c] = struct{}{}
}

// Remove drops c from the live set and frees its name. The freed name is
// returned with ok=true only to the first caller, so departure handling
// built on top of it runs at most once per connection.
func (r *Registry) Remove(c Conn) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, c)
	return r.unname(c)
}

// Release frees the name held by c while keeping it in the live set.
func (r *Registry) Release(c Conn) (name string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unname(c)
}

func (r *Registry) unname(c Conn) (string, bool) {
	name, ok := r.names[c]
	if !ok {
		return "", false
	}
	delete(r.names, c)
	delete(r.owners, name)
	return name, true
}

// ClaimName binds the trimmed name to c and returns it. Validation runs in a
// fixed order: empty, too long, already joined, taken. A failed claim leaves
// the registry untouched.
func (r *Registry) ClaimName(c Conn, name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return name, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, live := r.conns[c]; !live {
		return name, ErrUnknownConn
	}
	if _, named := r.names[c]; named {
		return name, ErrAlreadyJoined
	}
	if _, taken := r.owners[name]; taken {
		return name, ErrNameTaken
	}

	r.names[c] = name
	r.owners[name] = c
	return name, nil
}

// ValidateName checks an already trimmed display name against the length rules.
func ValidateName(name string) error {
	switch {
	case name == "":
		return ErrEmptyName
	case utf8.RuneCountInString(name) > MaxNameLength:
		return ErrNameTooLong
	}
	return nil
}

// NameOf returns the display name claimed by c, if any.
func (r *Registry) NameOf(c Conn) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[c]
	return name, ok
}

// IsNamed reports whether c has completed a join.
func (r *Registry) IsNamed(c Conn) bool {
	_, ok := r.NameOf(c)
	return ok
}

// Contains reports whether c is in the live set.
func (r *Registry) Contains(c Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[c]
	return ok
}

// Snapshot copies the live set, leaving out exclude when it is non-nil.
// Order is unspecified.
func (r *Registry) Snapshot(exclude Conn) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(lo.Keys(r.conns), func(c Conn, _ int) bool {
		return exclude == nil || c != exclude
	})
}

// Names returns the claimed display names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := lo.Values(r.names)
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Len returns the number of live connections, named or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

package chat

import (
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
)

// typingTracker remembers who typed recently. Each mark schedules its own
// expiry with time.AfterFunc, so marking never blocks the caller. The marker
// is informational only and produces no protocol traffic.
type typingTracker struct {
	mu     sync.Mutex
	ttl    time.Duration
	timers map[string]*time.Timer
}

func newTypingTracker(ttl time.Duration) *typingTracker {
	return &typingTracker{
		ttl:    ttl,
		timers: make(map[string]*time.Timer),
	}
}

func (t *typingTracker) mark(name string) {
	if t.ttl <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.timers[name]; ok {
		old.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// a newer mark may have replaced this timer
		if t.timers[name] == timer {
			delete(t.timers, name)
		}
	})
	t.timers[name] = timer
}

func (t *typingTracker) clear(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[name]; ok {
		timer.Stop()
		delete(t.timers, name)
	}
}

func (t *typingTracker) names() []string {
	t.mu.Lock()
	names := lo.Keys(t.timers)
	t.mu.Unlock()

	slices.Sort(names)
	return names
}

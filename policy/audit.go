package policy

import (
	"sync"
	"time"
)

// AuditLog is an ordered, append-only record of every Decision the engine
// has produced. Entries are never removed or mutated. Safe for concurrent
// appenders and readers.
type AuditLog struct {
	mu      sync.RWMutex
	entries []Decision
	subs    map[int]chan Decision
	nextSub int
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{
		subs: make(map[int]chan Decision),
	}
}

// Append records a decision. Called by the engine for every evaluation,
// including denials and failed lookups. Subscribers with full buffers miss
// the event rather than blocking the append.
func (l *AuditLog) Append(d Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, d)
	for _, ch := range l.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// Len returns the number of recorded decisions.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of every recorded decision in insertion order.
func (l *AuditLog) Snapshot() []Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Decision, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter selects audit entries. Zero-valued fields match everything.
type Filter struct {
	Requester string
	Action    Action
	Allowed   *bool
	Since     time.Time
	Until     time.Time
}

// Query returns the decisions matching the filter, in insertion order.
func (l *AuditLog) Query(f Filter) []Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Decision
	for _, d := range l.entries {
		if f.Requester != "" && d.Requester != f.Requester {
			continue
		}
		if f.Action != "" && d.Action != f.Action {
			continue
		}
		if f.Allowed != nil && d.Allowed != *f.Allowed {
			continue
		}
		if !f.Since.IsZero() && d.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && d.Timestamp.After(f.Until) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Subscribe registers for future decisions. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (l *AuditLog) Subscribe(buf int) (<-chan Decision, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Decision, buf)

	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

package conversation

import "sync"

// Locks serializes turns per conversation: no two turns for the same
// conversation run concurrently, while different conversations proceed in
// parallel. Entries are reference-counted and removed when idle.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{entries: map[string]*lockEntry{}}
}

// Acquire blocks until the conversation's lock is held and returns the
// release function. A later turn waits here for the prior turn's state write.
func (l *Locks) Acquire(conversationID string) func() {
	l.mu.Lock()
	e, ok := l.entries[conversationID]
	if !ok {
		e = &lockEntry{}
		l.entries[conversationID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}

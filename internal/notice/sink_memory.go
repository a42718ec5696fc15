package notice

import (
	"context"
	"sync"
)

// MemorySink keeps the most recent events for inspection by tests and the
// notices endpoint. Bounded so a long-lived offer cannot grow it without
// limit.
type MemorySink struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

const defaultMemoryLimit = 1024

// NewMemorySink constructs a sink retaining up to limit events; limit <= 0
// falls back to the default.
func NewMemorySink(limit int) *MemorySink {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	return &MemorySink{limit: limit}
}

func (s *MemorySink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
	return nil
}

// List returns a copy of the retained events, oldest first.
func (s *MemorySink) List() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

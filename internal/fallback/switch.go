// Package fallback tracks the one-way transition of a store from its durable
// backend to the process-local in-memory backend.
package fallback

import (
	"sync"
	"sync/atomic"
)

// Notify is called once per Switch, on the transition into degraded mode.
type Notify func(store string, cause error)

// Switch is safe for concurrent use. Once tripped it never resets: the two
// backends are not reconciled, so returning to the durable store would
// resurrect or lose state written in the meantime.
type Switch struct {
	name    string
	notify  Notify
	tripped atomic.Bool
	once    sync.Once
}

func New(name string, notify Notify) *Switch {
	return &Switch{name: name, notify: notify}
}

func (s *Switch) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Active reports whether the in-memory backend is serving requests.
func (s *Switch) Active() bool {
	return s != nil && s.tripped.Load()
}

// Trip moves the store into degraded mode. Safe to call repeatedly.
func (s *Switch) Trip(cause error) {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.tripped.Store(true)
		if s.notify != nil {
			s.notify(s.name, cause)
		}
	})
}

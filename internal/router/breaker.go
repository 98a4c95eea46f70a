package router

import (
	"sync"
	"time"
)

// BreakerState is the per-broker circuit snapshot exposed on the status
// surface.
type BreakerState struct {
	Failures  int       `json:"failures"`
	Active    bool      `json:"active"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// breakerBoard tracks consecutive connector failures per broker. Checks are
// O(1) timestamp comparisons; the cooldown is a timed state transition, not
// a wait.
type breakerBoard struct {
	mu        sync.RWMutex
	threshold int
	cooldown  time.Duration
	byBroker  map[string]*BreakerState
	now       func() time.Time
}

func newBreakerBoard(threshold int, cooldown time.Duration, now func() time.Time) *breakerBoard {
	return &breakerBoard{
		threshold: threshold,
		cooldown:  cooldown,
		byBroker:  make(map[string]*BreakerState),
		now:       now,
	}
}

// allowed reports whether calls to the broker may proceed. An expired trip
// clears itself on the next check.
func (b *breakerBoard) allowed(broker string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.byBroker[broker]
	if !ok || !st.Active {
		return true
	}
	if b.now().After(st.ExpiresAt) {
		st.Active = false
		st.Failures = 0
		st.ExpiresAt = time.Time{}
		return true
	}
	return false
}

// recordFailure counts one failure and trips the breaker at the threshold.
// Returns true when this failure tripped it.
func (b *breakerBoard) recordFailure(broker string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.byBroker[broker]
	if !ok {
		st = &BreakerState{}
		b.byBroker[broker] = st
	}
	st.Failures++
	if !st.Active && st.Failures >= b.threshold {
		st.Active = true
		st.ExpiresAt = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// recordSuccess clears the broker's failure count and any active trip.
func (b *breakerBoard) recordSuccess(broker string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.byBroker[broker]; ok {
		st.Failures = 0
		st.Active = false
		st.ExpiresAt = time.Time{}
	}
}

// state returns a copy of the broker's breaker state.
func (b *breakerBoard) state(broker string) BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if st, ok := b.byBroker[broker]; ok {
		return *st
	}
	return BreakerState{}
}

// states snapshots every tracked broker.
func (b *breakerBoard) states() map[string]BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]BreakerState, len(b.byBroker))
	for broker, st := range b.byBroker {
		out[broker] = *st
	}
	return out
}

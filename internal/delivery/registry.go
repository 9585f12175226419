package delivery

import (
	"sync"
	"time"

	"skybite/internal/domain"
)

type timerKey struct {
	orderID string
	phase   domain.TimerPhase
}

// timerRegistry tracks the live timer for each (order, phase) pair. Arming a
// key cancels any timer already held under it, so at most one timer per
// phase can ever fire for an order.
type timerRegistry struct {
	mu     sync.Mutex
	active map[timerKey]func()
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{active: make(map[timerKey]func())}
}

// arm schedules fn after d under key, replacing any existing timer. The
// registry entry is removed before fn runs, so a callback never cancels
// itself.
func (r *timerRegistry) arm(key timerKey, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.active[key]; ok {
		cancel()
	}
	timer := time.AfterFunc(d, func() {
		r.remove(key)
		fn()
	})
	r.active[key] = func() { timer.Stop() }
}

// put registers an externally managed cancellation (the simulation ticker
// goroutine), replacing any existing entry.
func (r *timerRegistry) put(key timerKey, cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.active[key]; ok {
		old()
	}
	r.active[key] = cancel
}

func (r *timerRegistry) cancel(key timerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[key]
	if !ok {
		return false
	}
	cancel()
	delete(r.active, key)
	return true
}

// cancelOrder cancels every pending phase timer for the order.
func (r *timerRegistry) cancelOrder(orderID string) {
	for _, phase := range []domain.TimerPhase{
		domain.TimerPhaseSimulation,
		domain.TimerPhaseArrivalGrace,
		domain.TimerPhaseResponseWindow,
		domain.TimerPhaseReturnFlight,
	} {
		r.cancel(timerKey{orderID: orderID, phase: phase})
	}
}

func (r *timerRegistry) cancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, cancel := range r.active {
		cancel()
		delete(r.active, key)
	}
}

func (r *timerRegistry) remove(key timerKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, key)
}

func (r *timerRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

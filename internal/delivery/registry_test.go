package delivery

import (
	"sync/atomic"
	"testing"
	"time"

	"skybite/internal/domain"
)

func TestArmReplacesExistingTimer(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{orderID: "o1", phase: domain.TimerPhaseResponseWindow}

	var old, replacement atomic.Int32
	r.arm(key, 20*time.Millisecond, func() { old.Add(1) })
	r.arm(key, 5*time.Millisecond, func() { replacement.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if old.Load() != 0 {
		t.Fatalf("replaced timer still fired")
	}
	if replacement.Load() != 1 {
		t.Fatalf("expected replacement to fire once, got %d", replacement.Load())
	}
}

func TestCallbackRemovesItself(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{orderID: "o1", phase: domain.TimerPhaseArrivalGrace}

	done := make(chan struct{})
	r.arm(key, time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
	if r.len() != 0 {
		t.Fatalf("expected empty registry after callback, got %d", r.len())
	}
}

func TestCancelOrderStopsAllPhases(t *testing.T) {
	r := newTimerRegistry()
	var fired atomic.Int32
	for _, phase := range []domain.TimerPhase{
		domain.TimerPhaseSimulation,
		domain.TimerPhaseArrivalGrace,
		domain.TimerPhaseResponseWindow,
		domain.TimerPhaseReturnFlight,
	} {
		r.arm(timerKey{orderID: "o1", phase: phase}, 10*time.Millisecond, func() { fired.Add(1) })
	}
	r.arm(timerKey{orderID: "o2", phase: domain.TimerPhaseArrivalGrace}, 10*time.Millisecond, func() { fired.Add(1) })

	r.cancelOrder("o1")
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected only the other order's timer to fire, got %d", fired.Load())
	}
}

func TestCancelReportsWhetherTimerExisted(t *testing.T) {
	r := newTimerRegistry()
	key := timerKey{orderID: "o1", phase: domain.TimerPhaseSimulation}
	if r.cancel(key) {
		t.Fatalf("cancel of missing key reported true")
	}
	r.arm(key, time.Hour, func() {})
	if !r.cancel(key) {
		t.Fatalf("cancel of armed key reported false")
	}
	if r.len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

package monitor

import (
	"testing"
	"time"

	"github.com/jvolkova/autoquest/internal/events"
)

type fakeScreen struct {
	width  int
	height int
}

func (f *fakeScreen) Dimensions() (int, int) { return f.width, f.height }

func TestCheckStuckTriggersAfterThreshold(t *testing.T) {
	w := NewWatchdog(&fakeScreen{1920, 1080}, nil).
		WithStuckTimeout(time.Millisecond)

	var reasons []string
	w.WithUnhealthyCallback(func(reason string, err error) {
		reasons = append(reasons, reason)
	})

	// Age the last activity past the timeout
	w.mu.Lock()
	w.lastActivity = time.Now().Add(-time.Second)
	w.mu.Unlock()

	// Two quiet checks stay under the threshold of three
	w.check()
	w.check()
	if len(reasons) != 0 {
		t.Fatalf("callback fired after %d checks, want none before threshold", 2)
	}

	w.check()
	if len(reasons) != 1 || reasons[0] != "session_stuck" {
		t.Fatalf("reasons = %v, want [session_stuck]", reasons)
	}

	// Counter resets after firing; the next check starts over
	w.check()
	if len(reasons) != 1 {
		t.Fatalf("callback fired again immediately after reset")
	}
}

func TestRecordActivityResetsStuckCounter(t *testing.T) {
	w := NewWatchdog(nil, nil).WithStuckTimeout(time.Millisecond)

	fired := false
	w.WithUnhealthyCallback(func(string, error) { fired = true })

	w.mu.Lock()
	w.lastActivity = time.Now().Add(-time.Second)
	w.mu.Unlock()

	w.check()
	w.check()
	w.RecordActivity()
	w.check()

	if fired {
		t.Fatal("callback fired even though activity reset the counter")
	}
}

func TestCheckScreenUnresponsive(t *testing.T) {
	w := NewWatchdog(&fakeScreen{0, 0}, nil)

	var reason string
	w.WithUnhealthyCallback(func(r string, err error) { reason = r })

	w.check()
	if reason != "screen_unresponsive" {
		t.Fatalf("reason = %q, want screen_unresponsive", reason)
	}
}

func TestObserveCountsBusTrafficAsActivity(t *testing.T) {
	w := NewWatchdog(nil, nil).WithStuckTimeout(time.Minute)
	bus := events.NewBus(8)
	defer bus.Stop()

	w.Observe(bus)

	w.mu.Lock()
	w.lastActivity = time.Now().Add(-time.Hour)
	w.mu.Unlock()

	bus.Publish(events.TypeActionDispatched, "loop", nil)

	deadline := time.Now().Add(time.Second)
	for {
		w.mu.Lock()
		fresh := time.Since(w.lastActivity) < time.Minute
		w.mu.Unlock()
		if fresh {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bus event never recorded as activity")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := NewWatchdog(nil, nil).WithCheckInterval(time.Hour)
	w.Start()
	w.Stop()
	w.Stop()
}

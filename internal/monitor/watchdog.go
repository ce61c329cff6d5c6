package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/jvolkova/autoquest/internal/events"
	"github.com/jvolkova/autoquest/internal/logging"
)

// ScreenSource is the capture dependency probed by responsiveness checks.
// Satisfied by *cv.ScreenCapturer.
type ScreenSource interface {
	Dimensions() (int, int)
}

// UnhealthyCallback is called when the session looks wedged
type UnhealthyCallback func(reason string, err error)

// Watchdog watches a running session for stalls. Bus traffic counts as
// activity; a quiet stretch longer than the stuck timeout, seen several
// checks in a row, triggers the unhealthy callback. It never restarts
// anything itself.
type Watchdog struct {
	screen ScreenSource
	log    *logging.Logger

	lastActivity   time.Time
	stuckCount     int
	stuckThreshold int
	stuckTimeout   time.Duration
	checkInterval  time.Duration
	onUnhealthy    UnhealthyCallback

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
	mu     sync.Mutex
}

// NewWatchdog creates a watchdog with the default thresholds
func NewWatchdog(screen ScreenSource, log *logging.Logger) *Watchdog {
	if log == nil {
		log = logging.NewLogger("watchdog")
	}
	return &Watchdog{
		screen:         screen,
		log:            log,
		lastActivity:   time.Now(),
		stuckThreshold: 3,
		stuckTimeout:   30 * time.Second,
		checkInterval:  10 * time.Second,
		stopCh:         make(chan struct{}),
	}
}

// WithUnhealthyCallback sets the callback for unhealthy events
func (w *Watchdog) WithUnhealthyCallback(callback UnhealthyCallback) *Watchdog {
	w.onUnhealthy = callback
	return w
}

// WithCheckInterval sets the check interval
func (w *Watchdog) WithCheckInterval(interval time.Duration) *Watchdog {
	w.checkInterval = interval
	return w
}

// WithStuckTimeout sets how long the session may stay quiet before a
// check counts against the stuck threshold
func (w *Watchdog) WithStuckTimeout(timeout time.Duration) *Watchdog {
	w.stuckTimeout = timeout
	return w
}

// Observe registers the watchdog on the bus: every loop event counts as
// activity. Call before Start.
func (w *Watchdog) Observe(bus *events.Bus) {
	for _, t := range []events.Type{
		events.TypeLoopStateChanged,
		events.TypeEventDetected,
		events.TypeActionDispatched,
		events.TypeCycleSkipped,
	} {
		bus.Subscribe(t, func(events.Event) { w.RecordActivity() })
	}
}

// Start begins monitoring
func (w *Watchdog) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop stops monitoring. Safe to call more than once.
func (w *Watchdog) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
	})
}

// RecordActivity marks the session as alive and resets the stuck counter
func (w *Watchdog) RecordActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActivity = time.Now()
	w.stuckCount = 0
}

func (w *Watchdog) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check runs one round of stall and responsiveness checks
func (w *Watchdog) check() {
	if err := w.checkScreen(); err != nil {
		w.log.Error("screen responsiveness check failed", err)
		w.notify("screen_unresponsive", err)
		return
	}
	w.checkStuck()
}

func (w *Watchdog) checkStuck() {
	w.mu.Lock()
	quiet := time.Since(w.lastActivity)
	trigger := false
	if quiet <= w.stuckTimeout {
		w.stuckCount = 0
	} else {
		w.stuckCount++
		if w.stuckCount >= w.stuckThreshold {
			trigger = true
			w.stuckCount = 0
		}
	}
	w.mu.Unlock()

	if trigger {
		w.notify("session_stuck", fmt.Errorf("no activity for %v", quiet.Round(time.Second)))
	}
}

// checkScreen verifies the capture source still reports a usable display
func (w *Watchdog) checkScreen() error {
	if w.screen == nil {
		return nil
	}
	width, height := w.screen.Dimensions()
	if width <= 0 || height <= 0 {
		return fmt.Errorf("screen reported %dx%d", width, height)
	}
	return nil
}

func (w *Watchdog) notify(reason string, err error) {
	if w.onUnhealthy != nil {
		w.onUnhealthy(reason, err)
	}
}

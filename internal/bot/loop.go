package bot

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/detect"
	"github.com/jvolkova/autoquest/internal/events"
	"github.com/jvolkova/autoquest/internal/logging"
)

// DefaultCooldown is the minimum interval before the same event kind may
// be dispatched again. 1500 ms outlasts several cycles at the default
// rate, so a slow-changing frame cannot double-trigger.
const DefaultCooldown = 1500 * time.Millisecond

// DefaultCycleInterval paces the capture-detect-dispatch cycle
const DefaultCycleInterval = 250 * time.Millisecond

// FrameSource supplies frames. May block until a frame is available; a
// source that never returns stalls the loop, by design.
type FrameSource interface {
	CaptureFrame() (*image.RGBA, error)
}

// Classifier turns a frame into at most one event kind
type Classifier interface {
	Classify(frame *image.RGBA) (detect.EventKind, cv.MatchResult, bool)
}

// ActionDispatcher executes the sequence bound to a classified event
type ActionDispatcher interface {
	Dispatch(kind detect.EventKind, match cv.MatchResult) error
}

// KeyRestorer returns the keyboard to its pre-run state. Satisfied by
// *input.Controller.
type KeyRestorer interface {
	ReleaseHeld() error
}

// Deps collects the loop's collaborators. All of them are required except
// Bus and Restorer.
type Deps struct {
	Frames     FrameSource
	Classifier Classifier
	Dispatcher ActionDispatcher
	Restorer   KeyRestorer
	Bus        *events.Bus
	Log        *logging.Logger
}

// Options tunes loop timing
type Options struct {
	CycleInterval time.Duration // inter-cycle delay; 0 means DefaultCycleInterval
	Cooldown      time.Duration // same-kind debounce window; 0 means DefaultCooldown
	MaxCycles     int           // stop after this many cycles; 0 means unbounded
}

// Loop drives the detect-and-act cycle:
//
//	IDLE -> DETECTING -> DISPATCHING -> WAITING -> IDLE
//
// with STOPPED as the terminal state. One goroutine owns the whole cycle,
// which is what guarantees at most one in-flight input action. The stop
// signal is sampled only at state-transition boundaries; a dispatch in
// progress always finishes because device actions cannot be safely aborted
// mid-flight.
type Loop struct {
	frames     FrameSource
	classifier Classifier
	dispatcher ActionDispatcher
	restorer   KeyRestorer
	bus        *events.Bus
	log        *logging.Logger

	limiter   *rate.Limiter
	cooldown  time.Duration
	maxCycles int

	sess *session

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	restore sync.Once
}

// New builds a loop over the given collaborators
func New(deps Deps, opts Options) (*Loop, error) {
	if deps.Frames == nil {
		return nil, fmt.Errorf("bot: frame source is required")
	}
	if deps.Classifier == nil {
		return nil, fmt.Errorf("bot: classifier is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("bot: dispatcher is required")
	}
	if deps.Log == nil {
		deps.Log = logging.NewLogger("loop")
	}

	interval := opts.CycleInterval
	if interval <= 0 {
		interval = DefaultCycleInterval
	}
	cooldown := opts.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	return &Loop{
		frames:     deps.Frames,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		restorer:   deps.Restorer,
		bus:        deps.Bus,
		log:        deps.Log,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		cooldown:   cooldown,
		maxCycles:  opts.MaxCycles,
		sess:       newSession(),
	}, nil
}

// State returns the loop's current state
func (l *Loop) State() State {
	return l.sess.currentState()
}

// Stats returns a snapshot of the session counters
func (l *Loop) Stats() Stats {
	return l.sess.snapshot()
}

// Run executes the loop until ctx is cancelled, Stop is called, or an
// unrecoverable error occurs. Blocking; returns nil on a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("bot: loop already running")
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.running = true
	l.restore = sync.Once{}
	l.mu.Unlock()

	l.sess.begin()
	l.publish(events.TypeLoopStarted, nil)
	l.log.Info("automation loop started")

	err := l.run(ctx)

	l.shutdown()
	if err != nil {
		l.log.Error("automation loop stopped", err)
		l.publish(events.TypeError, map[string]interface{}{"error": err.Error()})
	} else {
		l.log.Info("automation loop stopped")
	}
	return err
}

func (l *Loop) run(ctx context.Context) error {
	for cycle := 0; l.maxCycles == 0 || cycle < l.maxCycles; cycle++ {
		// IDLE: pace the cycle. Cancellation is honored here and at every
		// transition below.
		l.transition(StateIdle)
		if err := l.limiter.Wait(ctx); err != nil {
			return nil // cancelled while idle
		}
		l.sess.countCycle()

		// IDLE -> DETECTING: acquire the latest frame
		l.transition(StateDetecting)
		frame, err := l.frames.CaptureFrame()
		if err != nil {
			return fmt.Errorf("frame acquisition failed: %w", err)
		}

		kind, match, found := l.classifier.Classify(frame)
		if !found {
			// Normal miss: DETECTING -> IDLE, skip dispatching
			continue
		}
		l.sess.countDetection()
		l.publish(events.TypeEventDetected, map[string]interface{}{
			"kind":       string(kind),
			"confidence": match.Confidence,
		})

		if l.sess.debounced(kind, l.cooldown) {
			l.sess.countSkip()
			l.log.Debugf("%s suppressed by cool-down", kind)
			l.publish(events.TypeCycleSkipped, map[string]interface{}{"kind": string(kind)})
			continue
		}

		if ctx.Err() != nil {
			return nil // cancelled between detection and dispatch
		}

		// DETECTING -> DISPATCHING: the sequence always runs to completion
		// once started
		l.transition(StateDispatching)
		if err := l.dispatcher.Dispatch(kind, match); err != nil {
			return fmt.Errorf("dispatch failed: %w", err)
		}
		l.sess.recordDispatch(kind)
		l.publish(events.TypeActionDispatched, map[string]interface{}{"kind": string(kind)})

		// DISPATCHING -> WAITING; the next limiter wait completes the
		// WAITING -> IDLE transition
		l.transition(StateWaiting)
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// Stop requests a cooperative stop. The in-flight cycle finishes first.
// Safe to call multiple times and before Run.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// shutdown marks the terminal state and restores the keyboard exactly once
func (l *Loop) shutdown() {
	l.transition(StateStopped)

	l.restore.Do(func() {
		if l.restorer == nil {
			return
		}
		if err := l.restorer.ReleaseHeld(); err != nil {
			l.log.Error("failed to restore key state", err)
		}
	})

	l.mu.Lock()
	l.running = false
	l.cancel = nil
	l.mu.Unlock()

	stats := l.sess.snapshot()
	l.log.InfoWithFields("session summary", map[string]interface{}{
		"cycles":     stats.Cycles,
		"detections": stats.Detections,
		"skipped":    stats.Skipped,
	})
	l.publish(events.TypeLoopStopped, map[string]interface{}{"cycles": stats.Cycles})
}

func (l *Loop) transition(next State) {
	prev := l.sess.setState(next)
	if prev != next {
		l.publish(events.TypeLoopStateChanged, map[string]interface{}{
			"from": string(prev),
			"to":   string(next),
		})
	}
}

func (l *Loop) publish(t events.Type, data map[string]interface{}) {
	if l.bus != nil {
		l.bus.Publish(t, "loop", data)
	}
}

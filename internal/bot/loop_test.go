package bot

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/detect"
)

// fakeFrames returns a fixed frame, optionally failing
type fakeFrames struct {
	mu       sync.Mutex
	captures int
	err      error
}

func (f *fakeFrames) CaptureFrame() (*image.RGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

// fakeClassifier yields a scripted sequence of results, then misses
type fakeClassifier struct {
	mu      sync.Mutex
	script  []detect.EventKind // "" entries are misses
	pos     int
	forever detect.EventKind // when set, returned on every call
}

func (f *fakeClassifier) Classify(*image.RGBA) (detect.EventKind, cv.MatchResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forever != "" {
		return f.forever, cv.MatchResult{Confidence: 0.95}, true
	}
	if f.pos >= len(f.script) {
		return "", cv.MatchResult{}, false
	}
	kind := f.script[f.pos]
	f.pos++
	if kind == "" {
		return "", cv.MatchResult{}, false
	}
	return kind, cv.MatchResult{Confidence: 0.95}, true
}

// fakeDispatcher counts dispatches per kind
type fakeDispatcher struct {
	mu    sync.Mutex
	calls map[detect.EventKind]int
	err   error
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: map[detect.EventKind]int{}}
}

func (f *fakeDispatcher) Dispatch(kind detect.EventKind, _ cv.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls[kind]++
	return nil
}

func (f *fakeDispatcher) count(kind detect.EventKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[kind]
}

// fakeRestorer counts key-state restorations
type fakeRestorer struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRestorer) ReleaseHeld() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func fastOptions(maxCycles int) Options {
	return Options{
		CycleInterval: time.Millisecond,
		Cooldown:      time.Hour, // effectively infinite within a test
		MaxCycles:     maxCycles,
	}
}

func TestDispatchExactlyOnceWithinCooldown(t *testing.T) {
	classifier := &fakeClassifier{forever: detect.KindInvite}
	dispatcher := newFakeDispatcher()

	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: classifier,
		Dispatcher: dispatcher,
	}, fastOptions(6))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Same kind every cycle but an uncooled kind dispatches only once
	if got := dispatcher.count(detect.KindInvite); got != 1 {
		t.Errorf("expected exactly 1 dispatch, got %d", got)
	}

	stats := loop.Stats()
	if stats.Cycles != 6 {
		t.Errorf("expected 6 cycles, got %d", stats.Cycles)
	}
	if stats.Skipped != 5 {
		t.Errorf("expected 5 cool-down skips, got %d", stats.Skipped)
	}
}

func TestCooldownExpiryAllowsRedispatch(t *testing.T) {
	classifier := &fakeClassifier{forever: detect.KindInvite}
	dispatcher := newFakeDispatcher()

	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: classifier,
		Dispatcher: dispatcher,
	}, Options{
		CycleInterval: time.Millisecond,
		Cooldown:      time.Nanosecond, // elapses before the next cycle
		MaxCycles:     4,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := dispatcher.count(detect.KindInvite); got != 4 {
		t.Errorf("expected 4 dispatches after cool-down expiry, got %d", got)
	}
}

func TestDifferentKindNotDebounced(t *testing.T) {
	classifier := &fakeClassifier{script: []detect.EventKind{
		detect.KindInvite, detect.KindActivate, detect.KindInvite,
	}}
	dispatcher := newFakeDispatcher()

	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: classifier,
		Dispatcher: dispatcher,
	}, fastOptions(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Alternating kinds break the consecutive-cycle rule, so all dispatch
	if dispatcher.count(detect.KindInvite) != 2 || dispatcher.count(detect.KindActivate) != 1 {
		t.Errorf("unexpected dispatch counts: %v", dispatcher.calls)
	}
}

func TestMissSkipsDispatching(t *testing.T) {
	dispatcher := newFakeDispatcher()
	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: &fakeClassifier{}, // always misses
		Dispatcher: dispatcher,
	}, fastOptions(5))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(dispatcher.calls) != 0 {
		t.Errorf("dispatcher invoked on misses: %v", dispatcher.calls)
	}
	if loop.State() != StateStopped {
		t.Errorf("expected terminal state, got %s", loop.State())
	}
}

func TestCaptureFailureIsFatal(t *testing.T) {
	loop, err := New(Deps{
		Frames:     &fakeFrames{err: errors.New("source gone")},
		Classifier: &fakeClassifier{},
		Dispatcher: newFakeDispatcher(),
	}, fastOptions(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err == nil {
		t.Error("expected capture failure to propagate")
	}
	if loop.State() != StateStopped {
		t.Errorf("expected terminal state, got %s", loop.State())
	}
}

func TestDispatchFailureIsFatal(t *testing.T) {
	dispatcher := newFakeDispatcher()
	dispatcher.err = errors.New("device refused input")

	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: &fakeClassifier{forever: detect.KindInvite},
		Dispatcher: dispatcher,
	}, fastOptions(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := loop.Run(context.Background()); err == nil {
		t.Error("expected dispatch failure to propagate")
	}
}

func TestStopRestoresKeysExactlyOnce(t *testing.T) {
	restorer := &fakeRestorer{}
	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: &fakeClassifier{},
		Dispatcher: newFakeDispatcher(),
		Restorer:   restorer,
	}, Options{CycleInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	// Let the loop spin a little, then stop it twice
	time.Sleep(20 * time.Millisecond)
	loop.Stop()
	loop.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	restorer.mu.Lock()
	defer restorer.mu.Unlock()
	if restorer.calls != 1 {
		t.Errorf("expected exactly 1 key restore, got %d", restorer.calls)
	}
}

func TestContextCancellationStopsLoop(t *testing.T) {
	loop, err := New(Deps{
		Frames:     &fakeFrames{},
		Classifier: &fakeClassifier{},
		Dispatcher: newFakeDispatcher(),
	}, Options{CycleInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not honor cancellation")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Classifier: &fakeClassifier{}, Dispatcher: newFakeDispatcher()}, Options{})
	if err == nil {
		t.Error("expected error for missing frame source")
	}
	_, err = New(Deps{Frames: &fakeFrames{}, Dispatcher: newFakeDispatcher()}, Options{})
	if err == nil {
		t.Error("expected error for missing classifier")
	}
	_, err = New(Deps{Frames: &fakeFrames{}, Classifier: &fakeClassifier{}}, Options{})
	if err == nil {
		t.Error("expected error for missing dispatcher")
	}
}

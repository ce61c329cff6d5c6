package actions

import (
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/jvolkova/autoquest/internal/character"
	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/detect"
	"github.com/jvolkova/autoquest/internal/faults"
)

// recordingController captures the calls the dispatcher makes
type recordingController struct {
	calls    []string
	failWith error
	validate func(pt image.Point) error
}

func (r *recordingController) record(format string, args ...interface{}) error {
	if r.failWith != nil {
		return r.failWith
	}
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	return nil
}

func (r *recordingController) MoveTo(pt image.Point, d time.Duration) error {
	if r.validate != nil {
		if err := r.validate(pt); err != nil {
			return err
		}
	}
	return r.record("move(%d,%d)", pt.X, pt.Y)
}

func (r *recordingController) Click(pt image.Point, button string, hold time.Duration) error {
	if r.validate != nil {
		if err := r.validate(pt); err != nil {
			return err
		}
	}
	return r.record("click(%s,%d,%d)", button, pt.X, pt.Y)
}

func (r *recordingController) PressKey(key string) error   { return r.record("press(%s)", key) }
func (r *recordingController) ReleaseKey(key string) error { return r.record("release(%s)", key) }
func (r *recordingController) TapKey(key string, hold time.Duration) error {
	return r.record("tap(%s)", key)
}

type fixedSizes map[detect.EventKind]image.Point

func (f fixedSizes) TemplateSize(kind detect.EventKind) (image.Point, bool) {
	size, ok := f[kind]
	return size, ok
}

func newDispatcher(t *testing.T, bindings Bindings, ctrl *recordingController, char *character.Character) *Dispatcher {
	t.Helper()
	kinds := make([]detect.EventKind, 0, len(bindings))
	for kind := range bindings {
		kinds = append(kinds, kind)
	}
	d, err := NewDispatcher(bindings, ctrl, fixedSizes{detect.KindStartSquad: {X: 10, Y: 6}}, char, kinds, nil)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	d.sleep = func(time.Duration) {}
	return d
}

func TestValidateMissingBinding(t *testing.T) {
	b := Bindings{detect.KindInvite: {TapKey("enter", 0)}}

	err := b.Validate([]detect.EventKind{detect.KindInvite, detect.KindActivate})
	if err == nil {
		t.Fatal("expected error for unbound kind")
	}
	var cerr *faults.ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestValidateEmptySequence(t *testing.T) {
	b := Bindings{detect.KindInvite: {}}
	if err := b.Validate([]detect.EventKind{detect.KindInvite}); err == nil {
		t.Error("expected error for empty sequence")
	}
}

func TestDefaultBindingsCoverAllKinds(t *testing.T) {
	if err := DefaultBindings().Validate(detect.AllKinds()); err != nil {
		t.Errorf("default bindings incomplete: %v", err)
	}
}

func TestNewDispatcherRejectsUnboundKind(t *testing.T) {
	_, err := NewDispatcher(Bindings{}, &recordingController{}, nil, nil,
		[]detect.EventKind{detect.KindInvite}, nil)
	if err == nil {
		t.Fatal("expected construction to fail")
	}
	var cerr *faults.ConfigError
	if !errors.As(err, &cerr) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestDispatchRunsSequenceInOrder(t *testing.T) {
	ctrl := &recordingController{}
	b := Bindings{detect.KindActivate: {
		TapKey("f", 0),
		Wait(10 * time.Millisecond),
		TapKey("enter", 0),
	}}
	d := newDispatcher(t, b, ctrl, nil)

	if err := d.Dispatch(detect.KindActivate, cv.MatchResult{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	want := []string{"tap(f)", "tap(enter)"}
	if len(ctrl.calls) != 2 || ctrl.calls[0] != want[0] || ctrl.calls[1] != want[1] {
		t.Errorf("unexpected call sequence: %v", ctrl.calls)
	}
}

func TestDispatchClicksMatchCenter(t *testing.T) {
	ctrl := &recordingController{}
	b := Bindings{detect.KindStartSquad: {ClickMatch(0)}}
	d := newDispatcher(t, b, ctrl, nil)

	match := cv.MatchResult{Location: image.Point{X: 100, Y: 50}}
	if err := d.Dispatch(detect.KindStartSquad, match); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	// Template size is 10x6, so center is (105, 53). The cursor travels
	// there first, then the click lands on the same point.
	want := []string{"move(105,53)", "click(left,105,53)"}
	if len(ctrl.calls) != 2 || ctrl.calls[0] != want[0] || ctrl.calls[1] != want[1] {
		t.Errorf("unexpected calls: %v", ctrl.calls)
	}
}

func TestConditionGatesStep(t *testing.T) {
	healthy := &character.Character{Name: "t", Level: 1, HP: 90, MaxHP: 100}
	hurt := &character.Character{Name: "t", Level: 1, HP: 20, MaxHP: 100}

	b := Bindings{detect.KindLowHealth: {If(HealthBelow(0.3), TapKey("q", 0))}}

	ctrl := &recordingController{}
	d := newDispatcher(t, b, ctrl, healthy)
	if err := d.Dispatch(detect.KindLowHealth, cv.MatchResult{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(ctrl.calls) != 0 {
		t.Errorf("heal dispatched at 90%% health: %v", ctrl.calls)
	}

	ctrl = &recordingController{}
	d = newDispatcher(t, b, ctrl, hurt)
	if err := d.Dispatch(detect.KindLowHealth, cv.MatchResult{}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(ctrl.calls) != 1 || ctrl.calls[0] != "tap(q)" {
		t.Errorf("expected heal at 20%% health, got: %v", ctrl.calls)
	}
}

func TestValidationErrorSkipsCycle(t *testing.T) {
	ctrl := &recordingController{
		validate: func(image.Point) error {
			return faults.NewValidationError("coordinate.x", "out of bounds")
		},
	}
	b := Bindings{detect.KindStartSquad: {ClickMatch(0), TapKey("enter", 0)}}
	d := newDispatcher(t, b, ctrl, nil)

	// Recoverable: the cycle is skipped, not the loop
	if err := d.Dispatch(detect.KindStartSquad, cv.MatchResult{}); err != nil {
		t.Fatalf("expected nil after validation skip, got %v", err)
	}
	if len(ctrl.calls) != 0 {
		t.Errorf("steps ran after validation failure: %v", ctrl.calls)
	}
}

func TestDeviceErrorIsFatal(t *testing.T) {
	ctrl := &recordingController{failWith: errors.New("input queue rejected")}
	b := Bindings{detect.KindInvite: {TapKey("enter", 0)}}
	d := newDispatcher(t, b, ctrl, nil)

	if err := d.Dispatch(detect.KindInvite, cv.MatchResult{}); err == nil {
		t.Error("expected device error to propagate")
	}
}

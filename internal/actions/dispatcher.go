package actions

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/jvolkova/autoquest/internal/character"
	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/detect"
	"github.com/jvolkova/autoquest/internal/faults"
	"github.com/jvolkova/autoquest/internal/logging"
)

func errUnbound(kind detect.EventKind) error {
	return faults.NewConfigError("event kind %q has no bound action sequence", kind)
}

func errEmpty(kind detect.EventKind) error {
	return faults.NewConfigError("event kind %q is bound to an empty sequence", kind)
}

// InputController is the facade the dispatcher drives. Satisfied by
// *input.Controller.
type InputController interface {
	MoveTo(pt image.Point, duration time.Duration) error
	Click(pt image.Point, button string, holdDuration time.Duration) error
	PressKey(key string) error
	ReleaseKey(key string) error
	TapKey(key string, holdDuration time.Duration) error
}

// TemplateSizer resolves template pixel sizes for match-relative clicks.
// Satisfied by *detect.Detector.
type TemplateSizer interface {
	TemplateSize(kind detect.EventKind) (image.Point, bool)
}

// Dispatcher executes the action sequence bound to a classified event.
// The character is consulted read-only by step conditions.
type Dispatcher struct {
	bindings Bindings
	ctrl     InputController
	sizes    TemplateSizer
	char     *character.Character
	log      *logging.Logger
	sleep    func(time.Duration)
}

// NewDispatcher wires a dispatcher. Bindings are validated against kinds
// up front; an unbound kind fails construction with a ConfigError.
func NewDispatcher(bindings Bindings, ctrl InputController, sizes TemplateSizer,
	char *character.Character, kinds []detect.EventKind, log *logging.Logger) (*Dispatcher, error) {

	if ctrl == nil {
		return nil, fmt.Errorf("actions: input controller is required")
	}
	if err := bindings.Validate(kinds); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewLogger("dispatcher")
	}
	return &Dispatcher{
		bindings: bindings,
		ctrl:     ctrl,
		sizes:    sizes,
		char:     char,
		log:      log,
		sleep:    time.Sleep,
	}, nil
}

// Dispatch runs the sequence bound to kind to completion. A per-step
// ValidationError (e.g. a click target off screen) skips the rest of the
// cycle and returns nil; it is logged, never silently corrected. Any other
// failure is a device error and propagates as fatal.
func (d *Dispatcher) Dispatch(kind detect.EventKind, match cv.MatchResult) error {
	steps := d.bindings[kind]

	for i, step := range steps {
		if step.When != nil && !step.When(d.char) {
			d.log.Debugf("step %d of %s skipped by condition", i, kind)
			continue
		}

		err := d.execute(kind, step, match)
		if err == nil {
			continue
		}

		var verr *faults.ValidationError
		if errors.As(err, &verr) {
			d.log.WarnWithFields("action cycle skipped", map[string]interface{}{
				"event": string(kind),
				"step":  i,
				"cause": verr.Error(),
			})
			return nil
		}
		return fmt.Errorf("dispatch of %s failed at step %d: %w", kind, i, err)
	}
	return nil
}

func (d *Dispatcher) execute(kind detect.EventKind, step Step, match cv.MatchResult) error {
	switch step.Kind {
	case StepTapKey:
		return d.ctrl.TapKey(step.Key, step.Hold)
	case StepPressKey:
		return d.ctrl.PressKey(step.Key)
	case StepReleaseKey:
		return d.ctrl.ReleaseKey(step.Key)
	case StepClick:
		pt := d.target(kind, step, match)
		if step.Move > 0 {
			if err := d.ctrl.MoveTo(pt, step.Move); err != nil {
				return err
			}
		}
		return d.ctrl.Click(pt, step.Button, step.Hold)
	case StepMoveTo:
		return d.ctrl.MoveTo(d.target(kind, step, match), step.Move)
	case StepWait:
		d.sleep(step.Hold)
		return nil
	default:
		return faults.NewConfigError("unknown step kind %d in binding for %q", step.Kind, kind)
	}
}

// target resolves the step's screen point: either its fixed point or the
// center of the template match.
func (d *Dispatcher) target(kind detect.EventKind, step Step, match cv.MatchResult) image.Point {
	if !step.AtMatch {
		return step.Point
	}
	if d.sizes != nil {
		if size, ok := d.sizes.TemplateSize(kind); ok {
			return match.Center(size)
		}
	}
	return match.Location
}

package input

import (
	"fmt"
	"image"
	"time"

	"github.com/jvolkova/autoquest/internal/faults"
	"github.com/jvolkova/autoquest/internal/logging"
)

// Buttons accepted by Click
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonCenter = "center"
)

// moveStepInterval is how often the cursor position is updated during a
// bounded-duration move.
const moveStepInterval = 10 * time.Millisecond

// Controller is the single facade over pointer and keyboard primitives.
// Every coordinate is validated against the live screen bounds strictly
// before any device mutation; no call is ever silently clamped. Calls with
// a nonzero duration block for that duration, which is how the automation
// loop paces itself.
//
// Not safe for concurrent use. The loop structure guarantees at most one
// in-flight action.
type Controller struct {
	device Device
	screen Screen
	log    *logging.Logger
	held   map[string]bool
	sleep  func(time.Duration)
}

// NewController creates a controller over the given device and screen.
// Both collaborators are required; there is no implicit default so
// construction stays side-effect-free and testable.
func NewController(device Device, screen Screen, log *logging.Logger) (*Controller, error) {
	if device == nil {
		return nil, fmt.Errorf("input: device is required")
	}
	if screen == nil {
		return nil, fmt.Errorf("input: screen is required")
	}
	if log == nil {
		log = logging.NewLogger("input")
	}
	return &Controller{
		device: device,
		screen: screen,
		log:    log,
		held:   make(map[string]bool),
		sleep:  time.Sleep,
	}, nil
}

// validate checks pt against the current screen bounds, queried now
func (c *Controller) validate(pt image.Point) error {
	width, height := c.screen.Size()
	if pt.X < 0 || pt.X > width {
		return faults.NewValidationError("coordinate.x",
			fmt.Sprintf("%d outside screen width [0, %d]", pt.X, width))
	}
	if pt.Y < 0 || pt.Y > height {
		return faults.NewValidationError("coordinate.y",
			fmt.Sprintf("%d outside screen height [0, %d]", pt.Y, height))
	}
	return nil
}

// MoveTo moves the cursor to pt along a straight line over the given
// duration. Fails with a ValidationError before touching the device when
// pt is out of bounds.
func (c *Controller) MoveTo(pt image.Point, duration time.Duration) error {
	if err := c.validate(pt); err != nil {
		return err
	}

	startX, startY := c.device.MousePosition()
	steps := int(duration / moveStepInterval)
	if steps < 1 {
		steps = 1
	}

	for i := 1; i <= steps; i++ {
		progress := float64(i) / float64(steps)
		x := startX + int(float64(pt.X-startX)*progress)
		y := startY + int(float64(pt.Y-startY)*progress)
		c.device.MoveMouse(x, y)
		if i < steps {
			c.sleep(moveStepInterval)
		}
	}
	// Land exactly on target
	c.device.MoveMouse(pt.X, pt.Y)
	return nil
}

// Click moves to pt, presses the button, holds it for holdDuration and
// releases it.
func (c *Controller) Click(pt image.Point, button string, holdDuration time.Duration) error {
	if err := c.MoveTo(pt, moveStepInterval); err != nil {
		return err
	}

	if err := c.device.ToggleButton(button, true); err != nil {
		return fmt.Errorf("button press failed: %w", err)
	}
	if holdDuration > 0 {
		c.sleep(holdDuration)
	}
	if err := c.device.ToggleButton(button, false); err != nil {
		return fmt.Errorf("button release failed: %w", err)
	}

	c.log.Debugf("clicked %s at (%d, %d)", button, pt.X, pt.Y)
	return nil
}

// PressKey holds the key down until ReleaseKey or ReleaseHeld
func (c *Controller) PressKey(key string) error {
	if err := c.device.ToggleKey(key, true); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	c.held[key] = true
	return nil
}

// ReleaseKey releases a previously pressed key
func (c *Controller) ReleaseKey(key string) error {
	if err := c.device.ToggleKey(key, false); err != nil {
		return fmt.Errorf("key release failed: %w", err)
	}
	delete(c.held, key)
	return nil
}

// TapKey presses the key, holds it for holdDuration and releases it
func (c *Controller) TapKey(key string, holdDuration time.Duration) error {
	if err := c.PressKey(key); err != nil {
		return err
	}
	if holdDuration > 0 {
		c.sleep(holdDuration)
	}
	return c.ReleaseKey(key)
}

// HeldKeys returns the keys currently held down by this controller
func (c *Controller) HeldKeys() []string {
	keys := make([]string, 0, len(c.held))
	for k := range c.held {
		keys = append(keys, k)
	}
	return keys
}

// ReleaseHeld releases every key this controller still holds, restoring
// the pre-run keyboard state. Idempotent: once the held set is empty,
// further calls do nothing.
func (c *Controller) ReleaseHeld() error {
	for key := range c.held {
		if err := c.device.ToggleKey(key, false); err != nil {
			return fmt.Errorf("failed to release held key %q: %w", key, err)
		}
		delete(c.held, key)
	}
	return nil
}

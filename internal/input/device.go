package input

import (
	"github.com/go-vgo/robotgo"
)

// Device is the OS input-injection primitive the controller drives. Every
// call is an irreversible external side effect.
type Device interface {
	MoveMouse(x, y int)
	MousePosition() (x, y int)
	ToggleButton(button string, down bool) error
	ToggleKey(key string, down bool) error
}

// Screen exposes host display geometry. Implementations must query the
// host on every call rather than caching, so validation never trusts a
// stale size.
type Screen interface {
	Size() (width, height int)
}

// SystemDevice injects input through robotgo
type SystemDevice struct{}

// NewSystemDevice returns the real OS-backed device
func NewSystemDevice() *SystemDevice {
	return &SystemDevice{}
}

func (d *SystemDevice) MoveMouse(x, y int) {
	robotgo.Move(x, y)
}

func (d *SystemDevice) MousePosition() (int, int) {
	return robotgo.Location()
}

func (d *SystemDevice) ToggleButton(button string, down bool) error {
	if down {
		return robotgo.Toggle(button)
	}
	return robotgo.Toggle(button, "up")
}

func (d *SystemDevice) ToggleKey(key string, down bool) error {
	if down {
		return robotgo.KeyToggle(key)
	}
	return robotgo.KeyToggle(key, "up")
}

// SystemScreen reports the primary display size through robotgo
type SystemScreen struct{}

// NewSystemScreen returns the real host screen
func NewSystemScreen() *SystemScreen {
	return &SystemScreen{}
}

func (s *SystemScreen) Size() (int, int) {
	return robotgo.GetScreenSize()
}

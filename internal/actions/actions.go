package actions

import (
	"image"
	"time"

	"github.com/jvolkova/autoquest/internal/character"
	"github.com/jvolkova/autoquest/internal/detect"
	"github.com/jvolkova/autoquest/internal/input"
)

// StepKind identifies one input primitive within an action sequence
type StepKind int

const (
	StepTapKey StepKind = iota
	StepPressKey
	StepReleaseKey
	StepClick
	StepMoveTo
	StepWait
)

// Condition gates a step on the current character state. The character is
// never mutated here; conditions are read-only policy checks.
type Condition func(c *character.Character) bool

// HealthBelow returns a condition that holds when hp/maxHp < ratio
func HealthBelow(ratio float64) Condition {
	return func(c *character.Character) bool {
		return c != nil && c.HealthRatio() < ratio
	}
}

// EnergyBelow returns a condition that holds when energy/maxEnergy < ratio
func EnergyBelow(ratio float64) Condition {
	return func(c *character.Character) bool {
		return c != nil && c.EnergyRatio() < ratio
	}
}

// Alive returns a condition that holds while the character has health left
func Alive() Condition {
	return func(c *character.Character) bool {
		return c != nil && c.IsAlive()
	}
}

// Step is one input primitive in the sequence bound to an event kind
type Step struct {
	Kind     StepKind
	Key      string        // for key steps
	Button   string        // for StepClick
	Point    image.Point   // for StepClick / StepMoveTo with fixed targets
	AtMatch  bool          // click/move at the match center instead of Point
	Hold     time.Duration // press or button hold time
	Move     time.Duration // cursor travel time
	When     Condition     // optional gate; nil means always
}

// Sequence builders keep DefaultBindings readable

// TapKey taps a key with the given hold time
func TapKey(key string, hold time.Duration) Step {
	return Step{Kind: StepTapKey, Key: key, Hold: hold}
}

// ClickMatch left-clicks the center of wherever the template matched
func ClickMatch(hold time.Duration) Step {
	return Step{Kind: StepClick, Button: input.ButtonLeft, AtMatch: true, Hold: hold, Move: 150 * time.Millisecond}
}

// ClickAt left-clicks a fixed screen point
func ClickAt(pt image.Point, hold time.Duration) Step {
	return Step{Kind: StepClick, Button: input.ButtonLeft, Point: pt, Hold: hold, Move: 150 * time.Millisecond}
}

// Wait pauses the sequence without touching the device
func Wait(d time.Duration) Step {
	return Step{Kind: StepWait, Hold: d}
}

// If gates a step on a character condition
func If(cond Condition, step Step) Step {
	step.When = cond
	return step
}

// Bindings is the static map from event kind to its response sequence
type Bindings map[detect.EventKind][]Step

// DefaultBindings returns the stock event responses
func DefaultBindings() Bindings {
	return TunedBindings(50*time.Millisecond, 150*time.Millisecond)
}

// TunedBindings builds the stock responses with the given key hold and
// cursor travel times
func TunedBindings(keyHold, move time.Duration) Bindings {
	startClick := ClickMatch(60 * time.Millisecond)
	startClick.Move = move
	return Bindings{
		// Accept a squad invitation
		detect.KindInvite: {
			TapKey("enter", keyHold),
		},
		// Activate the challenge: interact, then confirm
		detect.KindActivate: {
			TapKey("f", keyHold),
			Wait(300 * time.Millisecond),
			TapKey("enter", keyHold),
		},
		// Start the squad run by clicking the matched start button
		detect.KindStartSquad: {
			startClick,
		},
		// Dismiss the completion banner
		detect.KindSquadComplete: {
			TapKey("esc", keyHold),
		},
		// Drink a potion, but only when health is actually critical
		detect.KindLowHealth: {
			If(HealthBelow(0.3), TapKey("q", keyHold)),
		},
	}
}

// Validate checks that every kind has a non-empty sequence. A recognized
// kind with no binding is a configuration defect caught here at startup,
// never at dispatch time.
func (b Bindings) Validate(kinds []detect.EventKind) error {
	for _, kind := range kinds {
		steps, ok := b[kind]
		if !ok {
			return errUnbound(kind)
		}
		if len(steps) == 0 {
			return errEmpty(kind)
		}
	}
	return nil
}

package character

import (
	"fmt"
	"strconv"

	"github.com/jvolkova/autoquest/internal/faults"
)

// Mapping keys for the persisted character record. Loading fails when any
// key is absent.
const (
	FieldName      = "name"
	FieldLevel     = "level"
	FieldHP        = "hp"
	FieldMaxHP     = "maxHp"
	FieldEnergy    = "energy"
	FieldMaxEnergy = "maxEnergy"
)

// Character is the session's lightweight mutable record. The automation
// loop consults it read-only; gameplay-observation code outside the loop
// mutates it.
type Character struct {
	Name      string
	Level     int
	HP        int
	MaxHP     int
	Energy    int
	MaxEnergy int
}

// NewDefault returns a fresh character used when no persisted record exists
func NewDefault(name string) *Character {
	return &Character{
		Name:      name,
		Level:     1,
		HP:        100,
		MaxHP:     100,
		Energy:    50,
		MaxEnergy: 50,
	}
}

// Validate checks the record invariants: level >= 1, 0 <= hp <= maxHp,
// 0 <= energy <= maxEnergy.
func (c *Character) Validate() error {
	if c.Name == "" {
		return faults.NewValidationError(FieldName, "must not be empty")
	}
	if c.Level < 1 {
		return faults.NewValidationError(FieldLevel, fmt.Sprintf("must be >= 1, got %d", c.Level))
	}
	if c.MaxHP < 0 {
		return faults.NewValidationError(FieldMaxHP, fmt.Sprintf("must be >= 0, got %d", c.MaxHP))
	}
	if c.HP < 0 || c.HP > c.MaxHP {
		return faults.NewValidationError(FieldHP, fmt.Sprintf("must be within [0, %d], got %d", c.MaxHP, c.HP))
	}
	if c.MaxEnergy < 0 {
		return faults.NewValidationError(FieldMaxEnergy, fmt.Sprintf("must be >= 0, got %d", c.MaxEnergy))
	}
	if c.Energy < 0 || c.Energy > c.MaxEnergy {
		return faults.NewValidationError(FieldEnergy, fmt.Sprintf("must be within [0, %d], got %d", c.MaxEnergy, c.Energy))
	}
	return nil
}

// IsAlive reports whether the character has any health left
func (c *Character) IsAlive() bool {
	return c.HP > 0
}

// HealthRatio returns hp/maxHp in [0,1], 0 when maxHp is 0
func (c *Character) HealthRatio() float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.MaxHP)
}

// EnergyRatio returns energy/maxEnergy in [0,1], 0 when maxEnergy is 0
func (c *Character) EnergyRatio() float64 {
	if c.MaxEnergy <= 0 {
		return 0
	}
	return float64(c.Energy) / float64(c.MaxEnergy)
}

// ToMapping serializes the character into a flat key/value record
func (c *Character) ToMapping() map[string]string {
	return map[string]string{
		FieldName:      c.Name,
		FieldLevel:     strconv.Itoa(c.Level),
		FieldHP:        strconv.Itoa(c.HP),
		FieldMaxHP:     strconv.Itoa(c.MaxHP),
		FieldEnergy:    strconv.Itoa(c.Energy),
		FieldMaxEnergy: strconv.Itoa(c.MaxEnergy),
	}
}

// LoadFrom builds a character from a flat key/value record. It fails with a
// ValidationError when a required key is absent, a numeric field does not
// parse, or a range invariant would be violated.
func LoadFrom(mapping map[string]string) (*Character, error) {
	name, ok := mapping[FieldName]
	if !ok {
		return nil, faults.NewValidationError(FieldName, "missing required key")
	}

	c := &Character{Name: name}

	intFields := []struct {
		key  string
		dest *int
	}{
		{FieldLevel, &c.Level},
		{FieldHP, &c.HP},
		{FieldMaxHP, &c.MaxHP},
		{FieldEnergy, &c.Energy},
		{FieldMaxEnergy, &c.MaxEnergy},
	}

	for _, f := range intFields {
		raw, ok := mapping[f.key]
		if !ok {
			return nil, faults.NewValidationError(f.key, "missing required key")
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, faults.NewValidationError(f.key, fmt.Sprintf("not an integer: %q", raw))
		}
		*f.dest = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

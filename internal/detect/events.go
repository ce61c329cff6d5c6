package detect

// EventKind is a closed category of recognizable game-state change. Every
// kind must have both a template image and a bound action sequence; startup
// validation enforces this.
type EventKind string

const (
	// KindInvite is a squad invitation prompt
	KindInvite EventKind = "invite"
	// KindActivate is an activation prompt at a challenge entrance
	KindActivate EventKind = "activate"
	// KindStartSquad is the squad start confirmation button
	KindStartSquad EventKind = "start_squad"
	// KindSquadComplete is the squad completion banner
	KindSquadComplete EventKind = "squad_complete"
	// KindLowHealth is the low-health warning indicator
	KindLowHealth EventKind = "low_health"
)

// AllKinds returns every event kind in default priority order. Earlier
// entries win when multiple templates match the same frame.
func AllKinds() []EventKind {
	return []EventKind{
		KindLowHealth,
		KindInvite,
		KindActivate,
		KindStartSquad,
		KindSquadComplete,
	}
}

// Valid reports whether k is a member of the closed set
func (k EventKind) Valid() bool {
	switch k {
	case KindInvite, KindActivate, KindStartSquad, KindSquadComplete, KindLowHealth:
		return true
	}
	return false
}

func (k EventKind) String() string {
	return string(k)
}

package bot

import (
	"sync"
	"time"

	"github.com/jvolkova/autoquest/internal/detect"
)

// State is the loop's position in its cycle
type State string

const (
	StateIdle        State = "idle"
	StateDetecting   State = "detecting"
	StateDispatching State = "dispatching"
	StateWaiting     State = "waiting"
	StateStopped     State = "stopped"
)

// Stats accumulates session counters
type Stats struct {
	StartedAt  time.Time
	Cycles     int
	Detections int
	Dispatches map[detect.EventKind]int
	Skipped    int // cycles suppressed by the cool-down
}

// session tracks mutable run data behind a lock so the GUI can read it
// while the loop runs.
type session struct {
	mu           sync.Mutex
	state        State
	stats        Stats
	lastKind     detect.EventKind
	lastDispatch time.Time
}

func newSession() *session {
	return &session{
		state: StateIdle,
		stats: Stats{Dispatches: make(map[detect.EventKind]int)},
	}
}

func (s *session) setState(next State) (prev State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.state
	s.state = next
	return prev
}

func (s *session) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = Stats{
		StartedAt:  time.Now(),
		Dispatches: make(map[detect.EventKind]int),
	}
	s.lastKind = ""
	s.lastDispatch = time.Time{}
}

func (s *session) countCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Cycles++
}

func (s *session) countDetection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Detections++
}

func (s *session) countSkip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Skipped++
}

// debounced reports whether dispatching kind now would violate the
// cool-down: the same kind within cooldown of its last dispatch.
func (s *session) debounced(kind detect.EventKind, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return kind == s.lastKind && time.Since(s.lastDispatch) < cooldown
}

func (s *session) recordDispatch(kind detect.EventKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKind = kind
	s.lastDispatch = time.Now()
	s.stats.Dispatches[kind]++
}

// Snapshot returns a copy of the current counters
func (s *session) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Dispatches = make(map[detect.EventKind]int, len(s.stats.Dispatches))
	for k, v := range s.stats.Dispatches {
		out.Dispatches[k] = v
	}
	return out
}

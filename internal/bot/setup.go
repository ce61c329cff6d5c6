package bot

import (
	"fmt"

	"github.com/jvolkova/autoquest/internal/actions"
	"github.com/jvolkova/autoquest/internal/character"
	"github.com/jvolkova/autoquest/internal/config"
	"github.com/jvolkova/autoquest/internal/cv"
	"github.com/jvolkova/autoquest/internal/detect"
	"github.com/jvolkova/autoquest/internal/events"
	"github.com/jvolkova/autoquest/internal/input"
	"github.com/jvolkova/autoquest/internal/logging"
	"github.com/jvolkova/autoquest/internal/monitor"
	"github.com/jvolkova/autoquest/internal/storage"
	"github.com/jvolkova/autoquest/pkg/templates"
)

// Session bundles a fully wired loop with its supporting resources
type Session struct {
	Loop      *Loop
	Character *character.Character
	Store     *storage.Store
	Bus       *events.Bus
	Watchdog  *monitor.Watchdog
}

// Close persists the character and releases resources
func (s *Session) Close() error {
	var firstErr error
	if s.Watchdog != nil {
		s.Watchdog.Stop()
	}
	if s.Store != nil && s.Character != nil {
		if err := s.Store.SaveCharacter(s.Character); err != nil {
			firstErr = err
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Bus != nil {
		s.Bus.Stop()
	}
	return firstErr
}

// Assemble builds a complete session from configuration: template registry,
// detector, input controller over the real device, dispatcher, storage and
// the loop itself. Configuration or resource problems abort here, before
// anything touches the screen.
func Assemble(cfg *config.Config, log *logging.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewLogger("autoquest")
	}
	log.SetMinLevel(logging.ParseLevel(cfg.LogLevel))

	// Templates: explicit registry file when configured, otherwise the
	// {root}/{kind}_template.png convention
	registry := templates.NewRegistry(cfg.TemplatesRoot)
	if cfg.TemplatesFile != "" {
		if err := registry.LoadFromFile(cfg.TemplatesFile); err != nil {
			return nil, err
		}
	}
	kinds := detect.AllKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	if err := registry.AddConvention(names...); err != nil {
		return nil, err
	}

	detector, err := detect.NewDetector(registry, kinds)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	char, err := store.LoadOrDefault(cfg.CharacterName)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctrl, err := input.NewController(input.NewSystemDevice(), input.NewSystemScreen(), log.Named("input"))
	if err != nil {
		store.Close()
		return nil, err
	}

	bindings := actions.TunedBindings(cfg.KeyHold, cfg.MoveDuration)
	dispatcher, err := actions.NewDispatcher(bindings, ctrl, detector,
		char, kinds, log.Named("dispatcher"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("startup validation failed: %w", err)
	}

	bus := events.NewBus(64)
	capturer := cv.NewScreenCapturer()

	watchdog := monitor.NewWatchdog(capturer, log.Named("watchdog")).
		WithUnhealthyCallback(func(reason string, err error) {
			log.ErrorWithFields("session unhealthy", err, map[string]interface{}{"reason": reason})
			bus.Publish(events.TypeError, "watchdog", map[string]interface{}{
				"reason": reason,
				"error":  err.Error(),
			})
		})
	watchdog.Observe(bus)
	watchdog.Start()

	loop, err := New(Deps{
		Frames:     capturer,
		Classifier: detector,
		Dispatcher: dispatcher,
		Restorer:   ctrl,
		Bus:        bus,
		Log:        log.Named("loop"),
	}, Options{
		CycleInterval: cfg.CycleInterval,
		Cooldown:      cfg.Cooldown,
		MaxCycles:     cfg.MaxCycles,
	})
	if err != nil {
		watchdog.Stop()
		bus.Stop()
		store.Close()
		return nil, err
	}

	return &Session{
		Loop:      loop,
		Character: char,
		Store:     store,
		Bus:       bus,
		Watchdog:  watchdog,
	}, nil
}

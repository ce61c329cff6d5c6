package gui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/jvolkova/autoquest/internal/bot"
	"github.com/jvolkova/autoquest/internal/config"
	"github.com/jvolkova/autoquest/internal/events"
	"github.com/jvolkova/autoquest/internal/logging"
)

const maxLogLines = 200

// Controller manages the dashboard state and the running automation session
type Controller struct {
	config *config.Config
	app    fyne.App
	window fyne.Window
	log    *logging.Logger

	// Active session; nil while stopped
	session *bot.Session
	cancel  context.CancelFunc
	mu      sync.Mutex

	// Widgets
	stateLabel     *widget.Label
	lastEventLabel *widget.Label
	characterLabel *widget.Label
	statsLabel     *widget.Label
	startButton    *widget.Button
	stopButton     *widget.Button
	logView        *widget.Entry

	logLines []string
	logMu    sync.Mutex
}

// NewController creates a new dashboard controller
func NewController(cfg *config.Config, app fyne.App, window fyne.Window, log *logging.Logger) *Controller {
	if log == nil {
		log = logging.NewLogger("gui")
	}
	return &Controller{
		config: cfg,
		app:    app,
		window: window,
		log:    log,
	}
}

// BuildUI constructs the dashboard layout
func (c *Controller) BuildUI() fyne.CanvasObject {
	c.stateLabel = widget.NewLabel("idle")
	c.lastEventLabel = widget.NewLabel("none")
	c.characterLabel = widget.NewLabel(c.config.CharacterName)
	c.statsLabel = widget.NewLabel("0 cycles")

	c.startButton = widget.NewButton("Start", c.onStart)
	c.stopButton = widget.NewButton("Stop", c.onStop)
	c.stopButton.Disable()

	c.logView = widget.NewMultiLineEntry()
	c.logView.Wrapping = fyne.TextWrapWord
	c.logView.Disable()

	status := widget.NewForm(
		widget.NewFormItem("State", c.stateLabel),
		widget.NewFormItem("Last event", c.lastEventLabel),
		widget.NewFormItem("Character", c.characterLabel),
		widget.NewFormItem("Session", c.statsLabel),
	)

	controls := container.NewHBox(c.startButton, c.stopButton)

	return container.NewBorder(
		container.NewVBox(status, controls), // Top
		nil,                                 // Bottom
		nil,                                 // Left
		nil,                                 // Right
		container.NewScroll(c.logView),      // Center
	)
}

// onStart assembles a fresh session and runs the loop in the background
func (c *Controller) onStart() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return
	}

	session, err := bot.Assemble(c.config, c.log.Named("bot"))
	if err != nil {
		dialog.ShowError(err, c.window)
		return
	}
	c.session = session
	c.subscribe(session.Bus)
	c.refreshCharacter()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	go func() {
		runErr := session.Loop.Run(ctx)
		if runErr != nil {
			c.appendLog("loop error: " + runErr.Error())
		}
		c.teardown()
	}()

	c.startButton.Disable()
	c.stopButton.Enable()
	c.appendLog("session started")
}

// onStop requests a cooperative shutdown; teardown runs when Run returns
func (c *Controller) onStop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}
	c.session.Loop.Stop()
	if c.cancel != nil {
		c.cancel()
	}
}

// teardown persists the character and resets the controls
func (c *Controller) teardown() {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.cancel = nil
	c.mu.Unlock()

	if session == nil {
		return
	}
	if err := session.Close(); err != nil {
		c.log.Error("session close failed", err)
	}

	fyne.Do(func() {
		c.startButton.Enable()
		c.stopButton.Disable()
		c.stateLabel.SetText("stopped")
	})
	c.appendLog("session stopped")
}

// Shutdown stops any running session. Called when the window closes.
func (c *Controller) Shutdown() {
	c.onStop()
}

// subscribe wires bus events to widget updates. Handlers run on the bus
// delivery goroutine, so every widget touch goes through fyne.Do.
func (c *Controller) subscribe(bus *events.Bus) {
	bus.Subscribe(events.TypeLoopStateChanged, func(e events.Event) {
		state, ok := e.Data["to"].(string)
		if !ok {
			return
		}
		fyne.Do(func() {
			c.stateLabel.SetText(state)
		})
	})

	bus.Subscribe(events.TypeEventDetected, func(e events.Event) {
		kind, _ := e.Data["kind"].(string)
		confidence, _ := e.Data["confidence"].(float64)
		fyne.Do(func() {
			c.lastEventLabel.SetText(fmt.Sprintf("%s (%.2f)", kind, confidence))
		})
		c.appendLog(fmt.Sprintf("detected %s at %.2f confidence", kind, confidence))
	})

	bus.Subscribe(events.TypeActionDispatched, func(e events.Event) {
		kind, _ := e.Data["kind"].(string)
		c.appendLog("dispatched response for " + kind)
		c.refreshStats()
	})

	bus.Subscribe(events.TypeCycleSkipped, func(e events.Event) {
		kind, _ := e.Data["kind"].(string)
		c.appendLog("skipped repeat " + kind + " within cooldown")
	})

	bus.Subscribe(events.TypeLoopStopped, func(e events.Event) {
		cycles, _ := e.Data["cycles"].(int)
		c.appendLog(fmt.Sprintf("loop finished after %d cycles", cycles))
	})

	bus.Subscribe(events.TypeError, func(e events.Event) {
		msg, _ := e.Data["error"].(string)
		c.appendLog("error: " + msg)
	})
}

// refreshCharacter updates the character line from the loaded record.
// Called from the start handler, which already runs on the UI thread.
func (c *Controller) refreshCharacter() {
	session := c.session
	if session == nil || session.Character == nil {
		return
	}
	char := session.Character
	c.characterLabel.SetText(fmt.Sprintf("%s  lv%d  hp %d/%d  energy %d/%d",
		char.Name, char.Level, char.HP, char.MaxHP, char.Energy, char.MaxEnergy))
}

// refreshStats updates the session counters line
func (c *Controller) refreshStats() {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return
	}
	stats := session.Loop.Stats()
	text := fmt.Sprintf("%d cycles, %d detections, %d skipped",
		stats.Cycles, stats.Detections, stats.Skipped)
	fyne.Do(func() {
		c.statsLabel.SetText(text)
	})
}

// appendLog adds a line to the log view, trimming the oldest entries
func (c *Controller) appendLog(line string) {
	c.logMu.Lock()
	c.logLines = append(c.logLines, line)
	if len(c.logLines) > maxLogLines {
		c.logLines = c.logLines[len(c.logLines)-maxLogLines:]
	}
	text := strings.Join(c.logLines, "\n")
	c.logMu.Unlock()

	fyne.Do(func() {
		c.logView.SetText(text)
	})
}

package main

import (
	"log"

	"fyne.io/fyne/v2/app"

	"github.com/jvolkova/autoquest/internal/config"
	"github.com/jvolkova/autoquest/internal/gui"
	"github.com/jvolkova/autoquest/internal/logging"
)

func main() {
	// Create Fyne application
	myApp := app.NewWithID("com.jvolkova.autoquest")
	myApp.Settings().SetTheme(&gui.BotTheme{})

	// Create main window
	mainWindow := myApp.NewWindow("AutoQuest")
	mainWindow.Resize(gui.DefaultWindowSize)

	// Load configuration
	cfg, err := config.LoadFromINI("Settings.ini")
	if err != nil {
		log.Printf("Warning: Failed to load config: %v", err)
		cfg = config.NewDefault()
	}

	// Create dashboard controller
	controller := gui.NewController(cfg, myApp, mainWindow, logging.NewLogger("gui"))

	// Set content and show
	mainWindow.SetContent(controller.BuildUI())
	mainWindow.SetMaster()
	mainWindow.ShowAndRun()

	// Cleanup on exit
	controller.Shutdown()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jvolkova/autoquest/internal/bot"
	"github.com/jvolkova/autoquest/internal/config"
	"github.com/jvolkova/autoquest/internal/logging"
)

func main() {
	configPath := flag.String("config", "Settings.ini", "path to the settings file")
	maxCycles := flag.Int("max-cycles", 0, "stop after this many cycles (0 = run until interrupted)")
	flag.Parse()

	log := logging.NewLogger("autoquest")

	cfg, err := config.LoadFromINI(*configPath)
	if err != nil {
		log.Warn(fmt.Sprintf("failed to load %s, using defaults: %v", *configPath, err))
		cfg = config.NewDefault()
		if envErr := config.ApplyEnv(cfg); envErr != nil {
			log.Fatal("invalid environment configuration", envErr)
		}
	}
	if *maxCycles > 0 {
		cfg.MaxCycles = *maxCycles
	}

	session, err := bot.Assemble(cfg, log)
	if err != nil {
		log.Fatal("startup failed", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.InfoWithFields("running", map[string]interface{}{
		"character": cfg.CharacterName,
		"templates": cfg.TemplatesRoot,
	})

	runErr := session.Loop.Run(ctx)

	stats := session.Loop.Stats()
	if err := session.Close(); err != nil {
		log.Error("session close failed", err)
	}

	fmt.Printf("session summary: %d cycles, %d detections, %d dispatched, %d skipped\n",
		stats.Cycles, stats.Detections, totalDispatches(stats), stats.Skipped)
	for kind, count := range stats.Dispatches {
		fmt.Printf("  %-16s %d\n", kind, count)
	}

	if runErr != nil && ctx.Err() == nil {
		log.Error("loop terminated", runErr)
		os.Exit(1)
	}
}

func totalDispatches(stats bot.Stats) int {
	total := 0
	for _, count := range stats.Dispatches {
		total += count
	}
	return total
}

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/app"
	"checkin/internal/config"
	"checkin/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	noDelay := flag.Bool("no-delay", false, "Start immediately, skipping the random delay")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.CheckCredentials(); err != nil {
		log.Fatalf("Nothing to do: %v", err)
	}
	if *noDelay {
		cfg.MaxDelay = 0
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to start: %v", err)
		appLogger.Close()
		os.Exit(1)
	}

	runErr := application.Run(ctx)
	application.Close()
	if runErr != nil {
		appLogger.Close()
		os.Exit(1)
	}
}

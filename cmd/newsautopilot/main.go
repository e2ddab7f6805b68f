package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"NewsAutopilot/internal/app"
	"NewsAutopilot/internal/config"
	"NewsAutopilot/internal/logging"
)

func main() {
	serve := flag.Bool("serve", false, "run the scheduler and HTTP trigger API until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if *serve {
		err = application.Serve(ctx)
	} else {
		err = application.Run(ctx)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		stop()
		_ = application.Close()
		os.Exit(1)
	}
}

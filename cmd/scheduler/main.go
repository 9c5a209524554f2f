// Command scheduler runs migrations, seeding and schedule regeneration outside the API process.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vishaldhankecha/prodigy-api/internal/config"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp(cfg, logger)).ExecuteContext(ctx); err != nil {
		logger.Error("scheduler failed", "error", err)
		stop()
		os.Exit(1)
	}
}

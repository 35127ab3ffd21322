package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/calliri/hearth/internal/app"
	"github.com/calliri/hearth/internal/config"
	"github.com/calliri/hearth/pkg/logger"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	l := logger.New("hearth", cfg.LogLevel)
	slog.SetDefault(l)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		l.Error("application error", slog.String("error", err.Error()))
	}

	l.Info("shutting down")
	if err := a.Shutdown(context.Background()); err != nil {
		l.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	l.Info("shutdown complete")
}

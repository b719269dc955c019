// Package main is the entry point for the ClarifyAI campus assistant server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clarifyai/config"
	"clarifyai/internal/app"
	"clarifyai/internal/logging"
	"clarifyai/internal/providers"
	"clarifyai/internal/providers/gemini"
	"clarifyai/internal/providers/openai"
)

func main() {
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "how long in-flight streams may run after SIGTERM")
	flag.Parse()

	// Load configuration
	result, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := result.Config

	logger := logging.Setup(logging.Options{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
	if result.Source != "" {
		logger.Info("configuration loaded", "source", result.Source)
	}

	factory := providers.NewProviderFactory()
	factory.Add(openai.Registration)
	factory.Add(gemini.Registration)

	application, err := app.New(context.Background(), app.Config{
		AppConfig: result,
		Factory:   factory,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := application.Start(":" + cfg.Server.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

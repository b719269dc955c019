// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the ClarifyAI server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"clarifyai/config"
	"clarifyai/internal/auth"
	"clarifyai/internal/campus"
	"clarifyai/internal/conversation"
	"clarifyai/internal/httpclient"
	"clarifyai/internal/kvstore"
	"clarifyai/internal/metrics"
	"clarifyai/internal/providers"
	"clarifyai/internal/relay"
	"clarifyai/internal/server"
	"clarifyai/internal/storage"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config        *config.Config
	storage       storage.Storage
	conversations conversation.Store
	campus        campus.Store
	relay         *relay.Relay
	server        *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// Config holds the configuration options for creating an App.
type Config struct {
	// AppConfig holds the loaded application configuration produced by config.Load.
	AppConfig *config.LoadResult

	// Factory provides the ProviderFactory used to construct the vendor adapter.
	Factory *providers.ProviderFactory

	// Registerer receives the relay collectors. Defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.AppConfig.Config == nil {
		return nil, fmt.Errorf("app config contains nil Config")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("factory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.AppConfig.Config
	app := &App{config: appCfg}

	// Vendor adapter and relay
	vendor := providers.ResolveConfig(appCfg.LLM)
	clientCfg := httpclient.DefaultConfig().WithTimeouts(
		time.Duration(appCfg.HTTP.Timeout)*time.Second,
		time.Duration(appCfg.HTTP.ResponseHeaderTimeout)*time.Second,
	)
	provider, err := cfg.Factory.Create(vendor, httpclient.NewHTTPClient(&clientCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	if vendor.APIKey == "" {
		logger.Warn("no API key configured for the selected vendor; chat turns will fail until one is set",
			"provider", vendor.Type)
	}

	var recorder metrics.Recorder = metrics.Noop{}
	if appCfg.Metrics.Enabled {
		reg := cfg.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		prom, err := metrics.NewPrometheus(reg)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		recorder = prom
	}

	app.relay = relay.New(provider, relay.Config{
		Model:        vendor.Model,
		Temperature:  appCfg.LLM.Temperature,
		MaxTokens:    appCfg.LLM.MaxTokens,
		SystemPrompt: appCfg.LLM.SystemPrompt,
	}, relay.WithRecorder(recorder), relay.WithLogger(logger))

	// Identity
	identity, err := auth.New(*appCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	// Storage shared by the campus content and table-backed conversations
	store, err := storage.New(ctx, storage.FromAppConfig(appCfg.Storage))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.storage = store

	var kv kvstore.Store
	if appCfg.Conversations.Backend == conversation.BackendKV {
		kv, err = kvstore.New(ctx, kvstore.FromAppConfig(appCfg.KV))
		if err != nil {
			return nil, app.abort(fmt.Errorf("failed to initialize key-value store: %w", err))
		}
	}

	app.conversations, err = conversation.New(ctx, appCfg.Conversations.Backend, store, kv)
	if err != nil {
		if kv != nil {
			_ = kv.Close()
		}
		return nil, app.abort(fmt.Errorf("failed to initialize conversation store: %w", err))
	}

	app.campus, err = campus.NewStore(ctx, store)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize campus store: %w", err))
	}
	campusSvc := campus.NewService(app.campus)
	if err := campusSvc.Seed(ctx); err != nil {
		return nil, app.abort(fmt.Errorf("failed to seed campus content: %w", err))
	}

	app.logStartupInfo(vendor)

	app.server = server.New(app.relay, &server.Config{
		Identity:        identity,
		Conversations:   app.conversations,
		Campus:          campusSvc,
		MetricsEnabled:  appCfg.Metrics.Enabled,
		MetricsEndpoint: appCfg.Metrics.Endpoint,
		BodySizeLimit:   appCfg.Server.BodySizeLimit,
		SwaggerEnabled:  appCfg.Server.SwaggerEnabled,
		Logger:          logger,
	})

	return app, nil
}

// abort releases whatever New managed to open and returns err, annotated with close failures.
func (a *App) abort(err error) error {
	if closeErr := a.closeStores(); closeErr != nil {
		return fmt.Errorf("%w (also: close error: %v)", err, closeErr)
	}
	return err
}

// Relay returns the streaming relay.
func (a *App) Relay() *relay.Relay {
	return a.relay
}

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown, honoring the passed context so in-flight streams can finish.
// 2. Conversation store close (releases the key-value backend when one is used).
// 3. Campus store close.
// 4. Storage close.
//
// Shutdown is idempotent; after the first call, subsequent calls are no-ops.
// It attempts every close step, aggregates failures, and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.closeStores(); err != nil {
		slog.Error("store close error", "error", err)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

func (a *App) closeStores() error {
	var errs []error
	if a.conversations != nil {
		if err := a.conversations.Close(); err != nil {
			errs = append(errs, fmt.Errorf("conversations close: %w", err))
		}
		a.conversations = nil
	}
	if a.campus != nil {
		if err := a.campus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("campus close: %w", err))
		}
		a.campus = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
		a.storage = nil
	}
	return errors.Join(errs...)
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo(vendor providers.Config) {
	cfg := a.config

	slog.Info("llm vendor configured", "provider", vendor.Type, "model", vendor.Model)

	switch {
	case cfg.Auth.Provider == auth.ProviderJWT:
		slog.Info("authentication enabled", "mode", "jwt", "master_key", cfg.Server.MasterKey != "")
	case cfg.Server.MasterKey != "":
		slog.Info("authentication enabled", "mode", "master_key")
	default:
		slog.Warn("SECURITY WARNING: no identity provider configured - every request runs as the anonymous user",
			"recommendation", "set AUTH_PROVIDER=jwt with AUTH_JWT_SECRET, or CLARIFYAI_MASTER_KEY")
	}

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	if cfg.Server.SwaggerEnabled {
		slog.Info("swagger UI enabled", "path", "/swagger/index.html")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)
	if cfg.Conversations.Backend == conversation.BackendKV {
		slog.Info("conversations stored in key-value store", "type", cfg.KV.Type)
	} else {
		slog.Info("conversations stored in table storage", "type", cfg.Storage.Type)
	}
}

package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/config"
	"clarifyai/internal/providers"
	"clarifyai/internal/providers/gemini"
	"clarifyai/internal/providers/openai"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Port: "0", MasterKey: "mk-test"},
		LLM: config.LLMConfig{
			Provider:    "gemini",
			Temperature: config.DefaultTemperature,
			MaxTokens:   config.DefaultMaxTokens,
		},
		Storage: config.StorageConfig{
			Type:   "sqlite",
			SQLite: config.SQLiteConfig{Path: ":memory:"},
		},
		Conversations: config.ConversationsConfig{Backend: "table"},
		KV: config.KVConfig{
			Type:  "local",
			Local: config.LocalKVConfig{Path: filepath.Join(t.TempDir(), "kv.json")},
		},
		Metrics: config.MetricsConfig{Enabled: true, Endpoint: "/metrics"},
	}
}

func testFactory() *providers.ProviderFactory {
	f := providers.NewProviderFactory()
	f.Add(openai.Registration)
	f.Add(gemini.Registration)
	return f
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Factory: testFactory()})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{AppConfig: &config.LoadResult{}, Factory: testFactory()})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{AppConfig: &config.LoadResult{Config: testConfig(t)}})
	assert.Error(t, err)
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "anthropic"
	_, err := New(context.Background(), Config{AppConfig: &config.LoadResult{Config: cfg}, Factory: testFactory()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestApp_ServesAndShutsDown(t *testing.T) {
	for _, backend := range []string{"table", "kv"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Conversations.Backend = backend

			a, err := New(context.Background(), Config{
				AppConfig:  &config.LoadResult{Config: cfg},
				Factory:    testFactory(),
				Registerer: prometheus.NewRegistry(),
			})
			require.NoError(t, err)
			assert.Equal(t, "gemini", a.Relay().Vendor())

			rec := httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, http.StatusOK, rec.Code)

			req := httptest.NewRequest(http.MethodGet, "/v1/faqs", nil)
			rec = httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), "BCA"), "seeded FAQs should be listed")

			req = httptest.NewRequest(http.MethodGet, "/v1/conversations", nil)
			req.Header.Set("Authorization", "Bearer mk-test")
			rec = httptest.NewRecorder()
			a.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)

			require.NoError(t, a.Shutdown(context.Background()))
			require.NoError(t, a.Shutdown(context.Background()))
		})
	}
}

func TestNew_DuplicateMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(t)

	first, err := New(context.Background(), Config{AppConfig: &config.LoadResult{Config: cfg}, Factory: testFactory(), Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, err = New(context.Background(), Config{AppConfig: &config.LoadResult{Config: cfg}, Factory: testFactory(), Registerer: reg})
	assert.Error(t, err)
}

// Package config provides configuration management for the application.
//
// Values are resolved in order: built-in defaults, an optional config.yaml
// (with ${VAR} and ${VAR:-default} expansion), an optional .env file, and
// finally environment variables, which always win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default vendor settings carried over from the original web client.
const (
	DefaultGeminiModel  = "gemini-2.0-flash-exp"
	DefaultOpenAIModel  = "gpt-4o-mini"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 2000
	DefaultBodySize     = "1M"
	DefaultRedisTTL     = 30 * 24 * 3600
	DefaultRedisKey     = "clarifyai:"
	DefaultKVLocalPath  = "data/conversations.json"
	DefaultSQLitePath   = "data/clarifyai.db"
	DefaultMongoDBName  = "clarifyai"
	DefaultMetricsRoute = "/metrics"
)

// Config holds the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	LLM           LLMConfig           `yaml:"llm"`
	Storage       StorageConfig       `yaml:"storage"`
	Conversations ConversationsConfig `yaml:"conversations"`
	KV            KVConfig            `yaml:"kv"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LogConfig           `yaml:"logging"`
	HTTP          HTTPConfig          `yaml:"http"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	// MasterKey, when set, is accepted as an admin bearer token
	MasterKey string `yaml:"master_key"`
	// BodySizeLimit uses echo's size syntax, e.g. "1M" or "512K"
	BodySizeLimit string `yaml:"body_size_limit"`
	// SwaggerEnabled serves the API description at /swagger/index.html
	SwaggerEnabled bool `yaml:"swagger_enabled"`
}

// AuthConfig selects the identity provider.
type AuthConfig struct {
	// Provider is "", "masterkey" or "jwt". Empty runs every request anonymously.
	Provider  string `yaml:"provider"`
	JWTSecret string `yaml:"jwt_secret"`
}

// LLMConfig selects and tunes the vendor behind the streaming relay.
type LLMConfig struct {
	// Provider is "gemini" or "openai"
	Provider     string       `yaml:"provider"`
	Model        string       `yaml:"model"`
	Temperature  float64      `yaml:"temperature"`
	MaxTokens    int          `yaml:"max_tokens"`
	SystemPrompt string       `yaml:"system_prompt"`
	OpenAI       VendorConfig `yaml:"openai"`
	Gemini       VendorConfig `yaml:"gemini"`
}

// VendorConfig holds the credentials for a single vendor.
type VendorConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// StorageConfig holds the table-store backend configuration.
type StorageConfig struct {
	// Type is "sqlite", "postgresql" or "mongodb"
	Type       string           `yaml:"type"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`
	MongoDB    MongoDBConfig    `yaml:"mongodb"`
}

// SQLiteConfig holds SQLite-specific settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgreSQLConfig holds PostgreSQL-specific settings
type PostgreSQLConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

// MongoDBConfig holds MongoDB-specific settings
type MongoDBConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// ConversationsConfig selects the conversation persistence family.
type ConversationsConfig struct {
	// Backend is "table" (the storage backend) or "kv" (the key-value store)
	Backend string `yaml:"backend"`
}

// KVConfig holds the key-value store configuration.
type KVConfig struct {
	// Type is "local" or "redis"
	Type  string           `yaml:"type"`
	Local LocalKVConfig    `yaml:"local"`
	Redis RedisStoreConfig `yaml:"redis"`
}

// LocalKVConfig holds the file-backed store settings.
type LocalKVConfig struct {
	Path string `yaml:"path"`
}

// RedisStoreConfig holds Redis-specific settings
type RedisStoreConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
	// TTL in seconds; zero disables expiry
	TTL int `yaml:"ttl"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Format is "auto", "text" or "json"
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// HTTPConfig holds outbound HTTP client timeouts in seconds.
type HTTPConfig struct {
	Timeout               int `yaml:"timeout"`
	ResponseHeaderTimeout int `yaml:"response_header_timeout"`
}

// LoadResult is returned by Load.
type LoadResult struct {
	Config *Config
	// Source is the YAML file that was read, or "" when none was found
	Source string
}

// configPaths lists where config.yaml is looked up, in order.
var configPaths = []string{"config/config.yaml", "config.yaml"}

// Load reads configuration from file and environment
func Load() (*LoadResult, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}

	cfg := buildDefaultConfig()
	result := &LoadResult{Config: cfg}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expandString(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		result.Source = path
		break
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func buildDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "8080",
			BodySizeLimit: DefaultBodySize,
		},
		LLM: LLMConfig{
			Provider:    "gemini",
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
		},
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLite:     SQLiteConfig{Path: DefaultSQLitePath},
			PostgreSQL: PostgreSQLConfig{MaxConns: 10},
			MongoDB:    MongoDBConfig{Database: DefaultMongoDBName},
		},
		Conversations: ConversationsConfig{Backend: "table"},
		KV: KVConfig{
			Type:  "local",
			Local: LocalKVConfig{Path: DefaultKVLocalPath},
			Redis: RedisStoreConfig{Key: DefaultRedisKey, TTL: DefaultRedisTTL},
		},
		Metrics: MetricsConfig{Endpoint: DefaultMetricsRoute},
		Logging: LogConfig{Format: "auto", Level: "info"},
		HTTP:    HTTPConfig{Timeout: 600, ResponseHeaderTimeout: 600},
	}
}

// envBinding maps one environment variable onto a config field.
type envBinding struct {
	key   string
	apply func(cfg *Config, value string) error
}

func stringEnv(key string, field func(*Config) *string) envBinding {
	return envBinding{key: key, apply: func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func intEnv(key string, field func(*Config) *int) envBinding {
	return envBinding{key: key, apply: func(cfg *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		*field(cfg) = n
		return nil
	}}
}

var envBindings = []envBinding{
	stringEnv("PORT", func(c *Config) *string { return &c.Server.Port }),
	stringEnv("CLARIFYAI_MASTER_KEY", func(c *Config) *string { return &c.Server.MasterKey }),
	stringEnv("BODY_SIZE_LIMIT", func(c *Config) *string { return &c.Server.BodySizeLimit }),
	stringEnv("AUTH_PROVIDER", func(c *Config) *string { return &c.Auth.Provider }),
	stringEnv("AUTH_JWT_SECRET", func(c *Config) *string { return &c.Auth.JWTSecret }),
	stringEnv("LLM_PROVIDER", func(c *Config) *string { return &c.LLM.Provider }),
	stringEnv("LLM_MODEL", func(c *Config) *string { return &c.LLM.Model }),
	{key: "LLM_TEMPERATURE", apply: func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid LLM_TEMPERATURE %q: %w", v, err)
		}
		c.LLM.Temperature = f
		return nil
	}},
	intEnv("LLM_MAX_TOKENS", func(c *Config) *int { return &c.LLM.MaxTokens }),
	stringEnv("LLM_SYSTEM_PROMPT", func(c *Config) *string { return &c.LLM.SystemPrompt }),
	// The original web client read the Gemini key from a Vite variable; accept it as a fallback.
	stringEnv("VITE_GEMINI_API_KEY", func(c *Config) *string { return &c.LLM.Gemini.APIKey }),
	stringEnv("GEMINI_API_KEY", func(c *Config) *string { return &c.LLM.Gemini.APIKey }),
	stringEnv("GEMINI_BASE_URL", func(c *Config) *string { return &c.LLM.Gemini.BaseURL }),
	stringEnv("OPENAI_API_KEY", func(c *Config) *string { return &c.LLM.OpenAI.APIKey }),
	stringEnv("OPENAI_BASE_URL", func(c *Config) *string { return &c.LLM.OpenAI.BaseURL }),
	stringEnv("STORAGE_TYPE", func(c *Config) *string { return &c.Storage.Type }),
	stringEnv("SQLITE_PATH", func(c *Config) *string { return &c.Storage.SQLite.Path }),
	stringEnv("POSTGRES_URL", func(c *Config) *string { return &c.Storage.PostgreSQL.URL }),
	intEnv("POSTGRES_MAX_CONNS", func(c *Config) *int { return &c.Storage.PostgreSQL.MaxConns }),
	stringEnv("MONGODB_URL", func(c *Config) *string { return &c.Storage.MongoDB.URL }),
	stringEnv("MONGODB_DATABASE", func(c *Config) *string { return &c.Storage.MongoDB.Database }),
	stringEnv("CONVERSATIONS_BACKEND", func(c *Config) *string { return &c.Conversations.Backend }),
	stringEnv("KV_TYPE", func(c *Config) *string { return &c.KV.Type }),
	stringEnv("KV_LOCAL_PATH", func(c *Config) *string { return &c.KV.Local.Path }),
	stringEnv("REDIS_URL", func(c *Config) *string { return &c.KV.Redis.URL }),
	stringEnv("REDIS_KEY_PREFIX", func(c *Config) *string { return &c.KV.Redis.Key }),
	intEnv("REDIS_TTL", func(c *Config) *int { return &c.KV.Redis.TTL }),
	{key: "METRICS_ENABLED", apply: func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid METRICS_ENABLED %q: %w", v, err)
		}
		c.Metrics.Enabled = b
		return nil
	}},
	{key: "SWAGGER_ENABLED", apply: func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SWAGGER_ENABLED %q: %w", v, err)
		}
		c.Server.SwaggerEnabled = b
		return nil
	}},
	stringEnv("METRICS_ENDPOINT", func(c *Config) *string { return &c.Metrics.Endpoint }),
	stringEnv("LOG_FORMAT", func(c *Config) *string { return &c.Logging.Format }),
	stringEnv("LOG_LEVEL", func(c *Config) *string { return &c.Logging.Level }),
	intEnv("HTTP_TIMEOUT", func(c *Config) *int { return &c.HTTP.Timeout }),
	intEnv("HTTP_RESPONSE_HEADER_TIMEOUT", func(c *Config) *int { return &c.HTTP.ResponseHeaderTimeout }),
}

// applyEnvOverrides overlays non-empty environment variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := os.LookupEnv(b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.apply(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", name, strings.Join(allowed, ", "), value))
	}

	oneOf("llm.provider", c.LLM.Provider, "gemini", "openai")
	oneOf("auth.provider", c.Auth.Provider, "", "masterkey", "jwt")
	oneOf("storage.type", c.Storage.Type, "sqlite", "postgresql", "mongodb")
	oneOf("conversations.backend", c.Conversations.Backend, "table", "kv")
	oneOf("kv.type", c.KV.Type, "local", "redis")
	oneOf("logging.format", c.Logging.Format, "auto", "text", "json")

	if c.Auth.Provider == "jwt" && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth.provider is jwt"))
	}
	if c.Auth.Provider == "masterkey" && c.Server.MasterKey == "" {
		errs = append(errs, errors.New("server.master_key is required when auth.provider is masterkey"))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	return errors.Join(errs...)
}

// expandString replaces ${VAR} and ${VAR:-default} with environment values.
// Placeholders without a value or default are left untouched.
func expandString(s string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start

		b.WriteString(s[:start])
		expr := s[start+2 : end]
		name, def, hasDefault := strings.Cut(expr, ":-")
		if v := os.Getenv(name); v != "" {
			b.WriteString(v)
		} else if hasDefault {
			b.WriteString(def)
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}

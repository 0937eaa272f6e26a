// Package config loads the formrules application configuration.
//
// Precedence is flags > environment (FORMRULES_*) > config file > defaults.
// The OpenAI API key is read from the environment only.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-formrules/pkg/runtime"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FORMRULES"

// ErrSecretInFile rejects credentials written into a config file.
var ErrSecretInFile = errors.New("config: secrets are not allowed in config files (use FORMRULES_OPENAI_API_KEY)")

// Config is the application configuration.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Options     OptionsConfig
	OpenAI      OpenAIConfig
	Definitions DefinitionsConfig
	Log         LogConfig
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
	PayloadMode     runtime.PayloadMode
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	DataDir  string
	InMemory bool
}

// OptionsConfig configures remote option resolution.
type OptionsConfig struct {
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
	// RateLimit caps outbound fetches per second; zero disables the limit.
	RateLimit float64
	RateBurst int
}

// OpenAIConfig configures the AI collaborator. An empty APIKey disables it.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	MaxTokens   int
}

// DefinitionsConfig points at form definition files installed on start.
type DefinitionsConfig struct {
	Dir string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
			PayloadMode:     runtime.PayloadValue,
		},
		Storage: StorageConfig{DataDir: "./data"},
		Options: OptionsConfig{
			CacheTTL:    30 * time.Minute,
			HTTPTimeout: 15 * time.Second,
			RateBurst:   1,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-3.5-turbo",
			VisionModel: "gpt-4o-mini",
			MaxTokens:   150,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path, when set, and applies environment
// overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	def := Default()

	v.SetDefault("server.listen_addr", def.Server.ListenAddr)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout.String())
	v.SetDefault("server.payload_mode", string(def.Server.PayloadMode))
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("storage.in_memory", def.Storage.InMemory)
	v.SetDefault("options.cache_ttl", def.Options.CacheTTL.String())
	v.SetDefault("options.http_timeout", def.Options.HTTPTimeout.String())
	v.SetDefault("options.rate_limit", def.Options.RateLimit)
	v.SetDefault("options.rate_burst", def.Options.RateBurst)
	v.SetDefault("openai.base_url", def.OpenAI.BaseURL)
	v.SetDefault("openai.model", def.OpenAI.Model)
	v.SetDefault("openai.vision_model", def.OpenAI.VisionModel)
	v.SetDefault("openai.max_tokens", def.OpenAI.MaxTokens)
	v.SetDefault("definitions.dir", def.Definitions.Dir)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key"); err != nil {
		return Config{}, fmt.Errorf("config: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if v.InConfig("openai.api_key") {
			return Config{}, ErrSecretInFile
		}
	}

	mode, err := runtime.ParsePayloadMode(v.GetString("server.payload_mode"))
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg := Config{
		Server: ServerConfig{
			ListenAddr:      v.GetString("server.listen_addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			PayloadMode:     mode,
		},
		Storage: StorageConfig{
			DataDir:  v.GetString("storage.data_dir"),
			InMemory: v.GetBool("storage.in_memory"),
		},
		Options: OptionsConfig{
			CacheTTL:    v.GetDuration("options.cache_ttl"),
			HTTPTimeout: v.GetDuration("options.http_timeout"),
			RateLimit:   v.GetFloat64("options.rate_limit"),
			RateBurst:   v.GetInt("options.rate_burst"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      v.GetString("openai.api_key"),
			BaseURL:     v.GetString("openai.base_url"),
			Model:       v.GetString("openai.model"),
			VisionModel: v.GetString("openai.vision_model"),
			MaxTokens:   v.GetInt("openai.max_tokens"),
		},
		Definitions: DefinitionsConfig{Dir: v.GetString("definitions.dir")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return errors.New("config: server.listen_addr is required")
	}
	if !c.Storage.InMemory && strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("config: storage.data_dir is required unless storage.in_memory is set")
	}
	if c.Options.CacheTTL <= 0 {
		return fmt.Errorf("config: options.cache_ttl must be positive, got %v", c.Options.CacheTTL)
	}
	if c.Options.HTTPTimeout <= 0 {
		return fmt.Errorf("config: options.http_timeout must be positive, got %v", c.Options.HTTPTimeout)
	}
	if c.Options.RateLimit < 0 {
		return fmt.Errorf("config: options.rate_limit must not be negative, got %v", c.Options.RateLimit)
	}
	if c.Options.RateLimit > 0 && c.Options.RateBurst <= 0 {
		return fmt.Errorf("config: options.rate_burst must be positive, got %d", c.Options.RateBurst)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", name)
	}
	return level, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Tts      TtsConfig      `mapstructure:"tts"`
	Voices   VoicesConfig   `mapstructure:"voices"`
	Document DocumentConfig `mapstructure:"document"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Panels   PanelsConfig   `mapstructure:"panels"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	WebDir         string   `mapstructure:"web_dir"` // optional override for embedded assets
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	PasswordHash  string `mapstructure:"password_hash"` // bcrypt; empty disables login
}

type TtsConfig struct {
	Provider        string        `mapstructure:"provider"` // google, elevenlabs, htgotts or dummy
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Burst           int           `mapstructure:"burst"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	LanguageCode    string        `mapstructure:"language_code"` // filters the voice list

	ElevenLabsAPIKey string `mapstructure:"elevenlabs_api_key"`
	ElevenLabsModel  string `mapstructure:"elevenlabs_model"`

	HtgoTtsLanguages []string `mapstructure:"htgotts_languages"`
}

type VoicesConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	Reselect        string        `mapstructure:"reselect"` // "first" or "preserve"
}

type DocumentConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type CacheConfig struct {
	Path    string        `mapstructure:"path"` // sqlite file, ":memory:" keeps nothing on disk
	ClipTTL time.Duration `mapstructure:"clip_ttl"`
}

type PanelsConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	v.SetDefault("log.level", "info")

	v.SetDefault("auth.session_secret", "your-secret-key-change-this-in-production")
	v.SetDefault("auth.password_hash", "")

	v.SetDefault("tts.provider", "google")
	v.SetDefault("tts.timeout", 30*time.Second)
	v.SetDefault("tts.rate_per_second", 2.0)
	v.SetDefault("tts.burst", 4)
	v.SetDefault("tts.elevenlabs_model", "eleven_multilingual_v2")
	v.SetDefault("tts.htgotts_languages", []string{"en", "es", "fr", "de"})

	v.SetDefault("voices.refresh_interval", 5*time.Minute)
	v.SetDefault("voices.reselect", "first")

	v.SetDefault("document.max_bytes", 1<<20)

	v.SetDefault("cache.path", ":memory:")
	v.SetDefault("cache.clip_ttl", 10*time.Minute)

	v.SetDefault("panels.idle_ttl", 2*time.Hour)
}

// Load reads config.yaml (and config.local.yaml on top of it) from the
// given paths, then environment variables prefixed LECTOR_.
func Load(paths ...string) (*Config, error) {
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no config file, defaults and env only
	}

	// Local overrides (ignored by git)
	v.SetConfigName("config.local")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to merge local config: %w", err)
		}
	}

	v.SetEnvPrefix("LECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	switch c.Tts.Provider {
	case "google", "elevenlabs", "htgotts", "dummy":
	default:
		return fmt.Errorf("config: unsupported tts.provider %q", c.Tts.Provider)
	}
	if c.Tts.Provider == "elevenlabs" && c.Tts.ElevenLabsAPIKey == "" {
		return fmt.Errorf("config: tts.elevenlabs_api_key is required for the elevenlabs provider")
	}
	if c.Tts.Timeout <= 0 {
		return fmt.Errorf("config: tts.timeout must be positive, got %s", c.Tts.Timeout)
	}
	if c.Tts.RatePerSecond < 0 {
		return fmt.Errorf("config: tts.rate_per_second must not be negative, got %f", c.Tts.RatePerSecond)
	}
	switch c.Voices.Reselect {
	case "first", "preserve":
	default:
		return fmt.Errorf("config: voices.reselect must be first or preserve, got %q", c.Voices.Reselect)
	}
	if c.Voices.RefreshInterval < 0 {
		return fmt.Errorf("config: voices.refresh_interval must not be negative")
	}
	if c.Document.MaxBytes <= 0 {
		return fmt.Errorf("config: document.max_bytes must be positive, got %d", c.Document.MaxBytes)
	}
	if c.Cache.ClipTTL <= 0 {
		return fmt.Errorf("config: cache.clip_ttl must be positive")
	}
	if c.Panels.IdleTTL <= 0 {
		return fmt.Errorf("config: panels.idle_ttl must be positive")
	}
	return nil
}

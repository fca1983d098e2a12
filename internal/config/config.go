// Package config loads NexusMena's settings.
//
// SOURCES, LOWEST PRIORITY FIRST:
//  1. defaults (setDefaults)
//  2. config.yaml in ./ or ./config, or the file given with --config
//  3. a .env file in the working directory (loaded into the process env)
//  4. environment variables: NEXUSMENA_<SECTION>_<KEY>, e.g. NEXUSMENA_SERVER_PORT
//
// The AI key additionally falls back to API_KEY and GEMINI_API_KEY, the
// names the browser build used. A missing key is not an error: the gateway
// answers with fallbacks.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "NEXUSMENA"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Storage StorageConfig `mapstructure:"storage"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Market  MarketConfig  `mapstructure:"market"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host          string   `mapstructure:"host"`
	Port          int      `mapstructure:"port"`
	PublicURL     string   `mapstructure:"public_url"` // used to build OAuth callback and reset links
	CORSOrigins   []string `mapstructure:"cors_origins"`
	SecureCookies bool     `mapstructure:"secure_cookies"`
}

// AIConfig configures the generative-AI gateway.
type AIConfig struct {
	APIKey      string `mapstructure:"api_key"`
	TextModel   string `mapstructure:"text_model"`
	SpeechModel string `mapstructure:"speech_model"`
	Voice       string `mapstructure:"voice"`
}

// StorageConfig selects the user-data backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" | "postgres"
	Path   string `mapstructure:"path"`   // sqlite file
	URL    string `mapstructure:"url"`    // postgres connection string
}

// CacheConfig configures the AI response cache. With RedisAddr empty the
// cache is in-process.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	Size          int           `mapstructure:"size"` // in-process entries
}

type AuthConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	GitHubClientID     string        `mapstructure:"github_client_id"`
	GitHubClientSecret string        `mapstructure:"github_client_secret"`
	GitHubCallbackURL  string        `mapstructure:"github_callback_url"`
	ResetURL           string        `mapstructure:"reset_url"`
}

// FeedConfig is one RSS/Atom source.
type FeedConfig struct {
	URL    string `mapstructure:"url"`
	Kind   string `mapstructure:"kind"`   // news | startup
	Source string `mapstructure:"source"` // overrides the feed title
	Region string `mapstructure:"region"`
}

type IngestConfig struct {
	Schedule string        `mapstructure:"schedule"` // cron spec; empty disables
	Timeout  time.Duration `mapstructure:"timeout"`
	Feeds    []FeedConfig  `mapstructure:"feeds"`
}

type MarketConfig struct {
	RefreshSchedule string `mapstructure:"refresh_schedule"` // cron spec; empty disables
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // text | json
}

// Load reads the configuration. path names a config file explicitly; when
// empty, config.yaml is looked up in ./ and ./config and may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	overrideFromEnv(&cfg)
	cfg.fillDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can override it during Unmarshal.
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.text_model", "gemini-2.5-flash")
	v.SetDefault("ai.speech_model", "gemini-2.5-flash-preview-tts")
	v.SetDefault("ai.voice", "Kore")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "data/nexusmena.db")
	v.SetDefault("storage.url", "")

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", 6*time.Hour)
	v.SetDefault("cache.size", 512)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.github_client_id", "")
	v.SetDefault("auth.github_client_secret", "")
	v.SetDefault("auth.github_callback_url", "")
	v.SetDefault("auth.reset_url", "")

	v.SetDefault("ingest.schedule", "")
	v.SetDefault("ingest.timeout", 20*time.Second)
	v.SetDefault("ingest.feeds", []map[string]any{})

	v.SetDefault("market.refresh_schedule", "@every 5m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv applies the unprefixed key names.
func overrideFromEnv(cfg *Config) {
	if cfg.AI.APIKey != "" {
		return
	}
	for _, name := range []string{"API_KEY", "GEMINI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			cfg.AI.APIKey = key
			return
		}
	}
}

func (c *Config) fillDerived() {
	if c.Server.PublicURL == "" {
		c.Server.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.PublicURL = strings.TrimSuffix(c.Server.PublicURL, "/")
	if c.Auth.GitHubCallbackURL == "" {
		c.Auth.GitHubCallbackURL = c.Server.PublicURL + "/auth/github/callback"
	}
	if c.Auth.ResetURL == "" {
		c.Auth.ResetURL = c.Server.PublicURL + "/reset-password"
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case "postgres":
		if c.Storage.URL == "" {
			errs = append(errs, errors.New("storage.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite or postgres", c.Storage.Driver))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Logging.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", f))
	}
	for i, f := range c.Ingest.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("ingest.feeds[%d].url is required", i))
		}
		if k := strings.ToLower(f.Kind); k != "" && k != "news" && k != "latest" && k != "startup" && k != "startups" {
			errs = append(errs, fmt.Errorf("ingest.feeds[%d].kind %q must be news or startup", i, f.Kind))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

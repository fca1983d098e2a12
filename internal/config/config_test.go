package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate runs the test in an empty directory with no NexusMena env set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, EnvPrefix+"_") || name == "API_KEY" || name == "GEMINI_API_KEY" {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path == "" {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.AI.TextModel != "gemini-2.5-flash" || cfg.AI.Voice != "Kore" {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("session ttl = %v", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.GitHubCallbackURL != "http://localhost:8080/auth/github/callback" {
		t.Errorf("callback = %q", cfg.Auth.GitHubCallbackURL)
	}
	if cfg.Auth.ResetURL != "http://localhost:8080/reset-password" {
		t.Errorf("reset url = %q", cfg.Auth.ResetURL)
	}
	if cfg.AI.APIKey != "" {
		t.Errorf("api key should be empty, got %q", cfg.AI.APIKey)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("NEXUSMENA_SERVER_PORT", "9090")
	t.Setenv("NEXUSMENA_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NEXUSMENA_CACHE_TTL", "90s")
	t.Setenv("NEXUSMENA_LOGGING_FORMAT", "json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Auth.GitHubCallbackURL != "http://localhost:9090/auth/github/callback" {
		t.Errorf("callback should follow the port: %q", cfg.Auth.GitHubCallbackURL)
	}
}

func TestLoad_APIKeyFallbacks(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"prefixed wins", map[string]string{"NEXUSMENA_AI_API_KEY": "a", "API_KEY": "b", "GEMINI_API_KEY": "c"}, "a"},
		{"API_KEY next", map[string]string{"API_KEY": "b", "GEMINI_API_KEY": "c"}, "b"},
		{"GEMINI_API_KEY last", map[string]string{"GEMINI_API_KEY": "c"}, "c"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.AI.APIKey != tt.want {
				t.Errorf("api key = %q, want %q", cfg.AI.APIKey, tt.want)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "from-dotenv" {
		t.Errorf("api key = %q", cfg.AI.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nexus.yaml")
	yaml := `
server:
  port: 7000
  public_url: https://nexusmena.example/
storage:
  driver: postgres
  url: postgres://localhost/nexus
ingest:
  schedule: "@hourly"
  feeds:
    - url: https://example.com/rss
      kind: startup
      region: Egypt
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 || cfg.Storage.Driver != "postgres" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Auth.ResetURL != "https://nexusmena.example/reset-password" {
		t.Errorf("reset url = %q", cfg.Auth.ResetURL)
	}
	if len(cfg.Ingest.Feeds) != 1 || cfg.Ingest.Feeds[0].Kind != "startup" || cfg.Ingest.Feeds[0].Region != "Egypt" {
		t.Errorf("feeds = %+v", cfg.Ingest.Feeds)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080},
			Storage: StorageConfig{Driver: "sqlite", Path: "x.db"},
			Logging: LoggingConfig{Level: "info", Format: "text"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"postgres without url", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.url"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"feed without url", func(c *Config) { c.Ingest.Feeds = []FeedConfig{{Kind: "news"}} }, "feeds[0].url"},
		{"feed bad kind", func(c *Config) { c.Ingest.Feeds = []FeedConfig{{URL: "https://x", Kind: "podcast"}} }, "feeds[0].kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError} {
		got, err := LoggingConfig{Level: in}.SlogLevel()
		if err != nil || got != want {
			t.Errorf("SlogLevel(%q) = %v, %v", in, got, err)
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" || cfg.Server.Scheme != "bearer" {
		t.Fatalf("unexpected server defaults %+v", cfg.Server)
	}
	if cfg.Server.ChatPath != "/api/chat" || cfg.Server.MatchPath != "/api/match" {
		t.Fatalf("unexpected paths %+v", cfg.Server)
	}
	if cfg.Session.Debounce() != 500*time.Millisecond || cfg.Session.Ping() != 30*time.Second {
		t.Fatalf("unexpected session timings")
	}
	if cfg.API.RequestTimeout() != 5*time.Second {
		t.Fatalf("timeout=%v", cfg.API.RequestTimeout())
	}
	if cfg.Logging.Backend != "std" || cfg.Logging.Service != "pairchat" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
	if cfg.Store.Path == "" {
		t.Fatalf("store path must default")
	}
	if cfg.Dev.Addr != ":8080" || cfg.Dev.TTL() != 24*time.Hour || cfg.Dev.Ping() != 15*time.Second {
		t.Fatalf("unexpected dev defaults %+v", cfg.Dev)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, `
server:
  baseURL: https://chat.example.com
  scheme: channel
session:
  typingDebounce: 250ms
logging:
  backend: zap
  output: /tmp/pairchat.log
`))
	t.Setenv("PAIRCHAT_STORE_PATH", "/tmp/state.yaml")
	t.Setenv("APP_ENV", "prod")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Scheme != "channel" || cfg.Server.BaseURL != "https://chat.example.com" {
		t.Fatalf("unexpected server %+v", cfg.Server)
	}
	if cfg.Session.Debounce() != 250*time.Millisecond {
		t.Fatalf("debounce=%v", cfg.Session.Debounce())
	}
	if cfg.Store.Path != "/tmp/state.yaml" || cfg.Logging.Env != "prod" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.Store, cfg.Logging)
	}
	if cfg.Logging.Backend != "zap" || cfg.Logging.Output != "/tmp/pairchat.log" {
		t.Fatalf("unexpected logging %+v", cfg.Logging)
	}
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, "server:\n  baseURL: http://file:1\n"))
	t.Setenv("PAIRCHAT_BASE_URL", "http://env:2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.BaseURL != "http://env:2" {
		t.Fatalf("baseURL=%q", cfg.Server.BaseURL)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]string{
		"scheme":   "server:\n  scheme: cookie\n",
		"base url": "server:\n  baseURL: ftp://x\n",
		"backend":  "logging:\n  backend: syslog\n",
		"yaml":     "server: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_PATH", writeConfig(t, body))
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseDurationOr(t *testing.T) {
	if d := parseDurationOr(time.Second, "bogus"); d != time.Second {
		t.Fatalf("got %v", d)
	}
	if d := parseDurationOr(time.Second, "-5s"); d != time.Second {
		t.Fatalf("negative must fall back, got %v", d)
	}
	if d := parseDurationOr(time.Second, "2m"); d != 2*time.Minute {
		t.Fatalf("got %v", d)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Server struct {
	BaseURL   string `yaml:"baseURL" env:"PAIRCHAT_BASE_URL"`
	Scheme    string `yaml:"scheme" env:"PAIRCHAT_SCHEME"` // bearer|channel
	ChatPath  string `yaml:"chatPath"`
	MatchPath string `yaml:"matchPath"`
}

type Paths struct {
	DisplayName  string `yaml:"displayName"`
	OnlineUsers  string `yaml:"onlineUsers"`
	ChannelUsers string `yaml:"channelUsers"`
	Backlog      string `yaml:"backlog"`
	LeaveChannel string `yaml:"leaveChannel"`
	CreateUser   string `yaml:"createUser"`
	CurrentUser  string `yaml:"currentUser"`
}

type API struct {
	Timeout string `yaml:"timeout" env:"PAIRCHAT_API_TIMEOUT"` // 5s
	Paths   Paths  `yaml:"paths"`
}

type Session struct {
	TypingDebounce string `yaml:"typingDebounce"` // 500ms
	PingEvery      string `yaml:"pingEvery"`      // 30s
	WriteTimeout   string `yaml:"writeTimeout"`   // 5s
}

type Store struct {
	Path string `yaml:"path" env:"PAIRCHAT_STORE_PATH"`
}

type Logging struct {
	Env       string `yaml:"env" env:"APP_ENV"`
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend" env:"PAIRCHAT_LOG_BACKEND"`
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug" env:"PAIRCHAT_DEBUG"`

	// путь к файлу логов, пусто: stdout
	Output string `yaml:"output" env:"PAIRCHAT_LOG_OUTPUT"`
}

// Dev: локальный сервер pairchat-dev.
type Dev struct {
	Addr      string `yaml:"addr" env:"PAIRCHAT_DEV_ADDR"`
	Secret    string `yaml:"secret" env:"PAIRCHAT_DEV_SECRET"`
	TokenTTL  string `yaml:"tokenTTL"`  // 24h
	PingEvery string `yaml:"pingEvery"` // 15s
}

type Config struct {
	Server  Server  `yaml:"server"`
	API     API     `yaml:"api"`
	Session Session `yaml:"session"`
	Store   Store   `yaml:"store"`
	Logging Logging `yaml:"logging"`
	Dev     Dev     `yaml:"dev"`
}

// LoadConfig читает yaml из CONFIG_PATH (по умолчанию ./config/config.yaml),
// затем накладывает переменные окружения. Файла нет: берутся дефолты.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8080"
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server.baseURL must be an http(s) url, got %q", c.Server.BaseURL)
	}
	switch c.Server.Scheme {
	case "":
		c.Server.Scheme = "bearer"
	case "bearer", "channel":
	default:
		return fmt.Errorf("server.scheme must be bearer or channel, got %q", c.Server.Scheme)
	}
	// установка дефолтов, если значения не указаны
	if c.Server.ChatPath == "" {
		c.Server.ChatPath = "/api/chat"
	}
	if c.Server.MatchPath == "" {
		c.Server.MatchPath = "/api/match"
	}
	if c.Dev.Addr == "" {
		c.Dev.Addr = ":8080"
	}
	if c.Dev.Secret == "" {
		c.Dev.Secret = "dev-secret"
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath()
	}
	if c.Logging.Service == "" {
		c.Logging.Service = "pairchat"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Logging.Backend != "std" && c.Logging.Backend != "zap" {
		return fmt.Errorf("logging.backend must be std or zap, got %q", c.Logging.Backend)
	}
	return nil
}

func (a API) RequestTimeout() time.Duration { return parseDurationOr(5*time.Second, a.Timeout) }

func (s Session) Debounce() time.Duration { return parseDurationOr(500*time.Millisecond, s.TypingDebounce) }

func (s Session) Ping() time.Duration { return parseDurationOr(30*time.Second, s.PingEvery) }

func (s Session) Write() time.Duration { return parseDurationOr(5*time.Second, s.WriteTimeout) }

func (d Dev) TTL() time.Duration { return parseDurationOr(24*time.Hour, d.TokenTTL) }

func (d Dev) Ping() time.Duration { return parseDurationOr(15*time.Second, d.PingEvery) }

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pairchat.yaml"
	}
	return filepath.Join(dir, "pairchat", "state.yaml")
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}

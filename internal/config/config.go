package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/dealyze/pos-demo/internal/dealyze"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultURL is the local Dealyze endpoint.
const DefaultURL = "ws://localhost:3100"

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Reconnect ReconnectConfig  `yaml:"reconnect"`
	Employee  dealyze.Employee `yaml:"employee"`
	Log       LogConfig        `yaml:"log"`
	UI        UIConfig         `yaml:"ui"`
	Mock      MockConfig       `yaml:"mock"`
}

type ServerConfig struct {
	URL       string `yaml:"url"`
	EIO       int    `yaml:"eio"`
	Namespace string `yaml:"namespace"`

	// StringPayloads wraps redemption answers in a JSON string.
	StringPayloads bool `yaml:"string_payloads"`
}

type ReconnectConfig struct {
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File receives logs; empty means stderr.
	File string `yaml:"file"`
}

type UIConfig struct {
	Plain bool `yaml:"plain"`
}

type MockConfig struct {
	Addr         string        `yaml:"addr"`
	Interval     time.Duration `yaml:"interval"`
	PingInterval time.Duration `yaml:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       DefaultURL,
			EIO:       3,
			Namespace: "/",
		},
		Reconnect: ReconnectConfig{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
		Employee: dealyze.TestEmployee(),
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Addr:         "127.0.0.1:3100",
			Interval:     20 * time.Second,
			PingInterval: 25 * time.Second,
			PingTimeout:  20 * time.Second,
		},
	}
}

// Load reads path over the defaults, then applies DEALYZE_* environment
// variables. A .env file in the working directory is read first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefault is Load, except that a missing file (or empty path) yields
// the defaults plus environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return finish(defaultConfig())
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(defaultConfig())
	}
	return cfg, err
}

func finish(cfg *Config) (*Config, error) {
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DEALYZE_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("DEALYZE_EIO"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEALYZE_EIO: %w", err)
		}
		c.Server.EIO = n
	}
	if v := os.Getenv("DEALYZE_NAMESPACE"); v != "" {
		c.Server.Namespace = v
	}
	if v := os.Getenv("DEALYZE_STRING_PAYLOADS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DEALYZE_STRING_PAYLOADS: %w", err)
		}
		c.Server.StringPayloads = b
	}
	if v := os.Getenv("DEALYZE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("DEALYZE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("DEALYZE_MOCK_ADDR"); v != "" {
		c.Mock.Addr = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("server.url: unsupported scheme %q", u.Scheme)
	}
	if c.Server.EIO != 3 && c.Server.EIO != 4 {
		return fmt.Errorf("server.eio: must be 3 or 4, got %d", c.Server.EIO)
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay: must be positive")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return errors.New("reconnect.max_delay: must not be below base_delay")
	}
	if c.Employee == (dealyze.Employee{}) {
		return errors.New("employee: must not be empty")
	}
	return nil
}

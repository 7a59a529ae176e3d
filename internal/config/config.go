package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for keys missing from blueprint.yml.
const (
	DefaultDriver         = "file"
	DefaultPath           = ".blueprint"
	DefaultRedisPrefix    = "blueprint:"
	DefaultGatewayTimeout = 2 * time.Minute
	DefaultRatePerSecond  = 4.0
	DefaultBurst          = 4
	DefaultAutosave       = "@every 30s"
	DefaultHTTPAddr       = "127.0.0.1:8080"
	DefaultAgentAddr      = "127.0.0.1:9100"
	DefaultDotEnv         = ".env"
)

// Config holds settings loaded from blueprint.yml.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Autosave AutosaveConfig `yaml:"autosave"`
	HTTP     HTTPConfig     `yaml:"http"`
	Agent    AgentConfig    `yaml:"agent"`
	Verbose  bool           `yaml:"verbose,omitempty"`
}

// StoreConfig selects and locates the project store.
type StoreConfig struct {
	Driver      string `yaml:"driver,omitempty"`
	Path        string `yaml:"path,omitempty"`
	DSN         string `yaml:"dsn,omitempty"`
	RedisAddr   string `yaml:"redisAddr,omitempty"`
	RedisDB     int    `yaml:"redisDB,omitempty"`
	RedisPrefix string `yaml:"redisPrefix,omitempty"`
}

// GatewayConfig lists the A2A agents that regenerate stages and execute
// plans.
type GatewayConfig struct {
	Agents        []string      `yaml:"agents,omitempty"`
	Executor      string        `yaml:"executor,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
	RatePerSecond float64       `yaml:"ratePerSecond,omitempty"`
	Burst         int           `yaml:"burst,omitempty"`
}

// AutosaveConfig schedules periodic saves. An empty schedule disables them.
type AutosaveConfig struct {
	Schedule string `yaml:"schedule"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// AgentConfig configures the local drafting agent.
type AgentConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:      DefaultDriver,
			Path:        DefaultPath,
			RedisPrefix: DefaultRedisPrefix,
		},
		Gateway: GatewayConfig{
			Timeout:       DefaultGatewayTimeout,
			RatePerSecond: DefaultRatePerSecond,
			Burst:         DefaultBurst,
		},
		Autosave: AutosaveConfig{Schedule: DefaultAutosave},
		HTTP:     HTTPConfig{Addr: DefaultHTTPAddr},
		Agent:    AgentConfig{Addr: DefaultAgentAddr},
	}
}

// Load reads an optional .env file into the process environment, then
// blueprint.yml or blueprint.yaml from dir over the defaults. A missing file
// is not an error.
func Load(dir string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(dir, DefaultDotEnv)); err != nil {
		return nil, err
	}
	cfg := Default()
	for _, name := range []string{"blueprint.yml", "blueprint.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		break
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

var drivers = map[string]bool{
	"memory": true, "file": true, "sqlite": true, "postgres": true, "redis": true, "kuzu": true,
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if !drivers[c.Store.Driver] {
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		return errors.New("config: store.dsn is required for the postgres driver")
	}
	if c.Gateway.Timeout < 0 {
		return errors.New("config: gateway.timeout must not be negative")
	}
	if c.Gateway.RatePerSecond < 0 {
		return errors.New("config: gateway.ratePerSecond must not be negative")
	}
	return nil
}

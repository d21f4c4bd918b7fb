package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingUser is returned by Validate when no user is configured.
	ErrMissingUser = errors.New("config: user is required")
	// ErrMissingDatabase is returned by Validate when no database name is configured.
	ErrMissingDatabase = errors.New("config: database is required")
	// ErrInvalidValue is returned by Validate for out-of-range settings.
	ErrInvalidValue = errors.New("config: invalid value")
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MYSQLPOOL_"

// Config describes one database target and how the pool talks to it.
type Config struct {
	// Driver is the database/sql driver name: mysql, postgres or sqlite3.
	Driver   string `yaml:"driver"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Host     string `yaml:"host"`
	// Port 0 selects the driver's default port.
	Port int `yaml:"port"`

	// LogFile receives persisted error reports. Empty disables persistence.
	LogFile string `yaml:"log_file"`

	// MaxOpenConns bounds connections bound to Database. 0 keeps the pool unbounded.
	MaxOpenConns int `yaml:"max_open_conns"`

	Retry   RetryConfig   `yaml:"retry"`
	Logging LoggingConfig `yaml:"logging"`
	SlowLog SlowLogConfig `yaml:"slow_log"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RetryConfig controls connection establishment retries.
type RetryConfig struct {
	// MaxAttempts 0 retries forever.
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// LoggingConfig controls the operational logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SlowLogConfig enables logging of statements slower than Threshold.
type SlowLogConfig struct {
	Threshold time.Duration `yaml:"threshold"`
	Path      string        `yaml:"path"`
}

// RedisConfig mirrors error reports onto a Redis list when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// Default returns a Config with every optional field at its default.
func Default() Config {
	return Config{
		Driver: "mysql",
		Host:   "127.0.0.1",
		Retry: RetryConfig{
			Interval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// ApplyDefaults fills zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.Driver == "" {
		c.Driver = def.Driver
	}
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.Retry.Interval <= 0 {
		c.Retry.Interval = def.Retry.Interval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate checks required fields and ranges. An empty password is allowed.
func (c *Config) Validate() error {
	if c.User == "" && c.Driver != "sqlite3" {
		return ErrMissingUser
	}
	if c.Database == "" {
		return ErrMissingDatabase
	}
	switch c.Driver {
	case "mysql", "postgres", "sqlite3":
	default:
		return fmt.Errorf("%w: driver %q", ErrInvalidValue, c.Driver)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidValue, c.Port)
	}
	if c.MaxOpenConns < 0 {
		return fmt.Errorf("%w: max_open_conns %d", ErrInvalidValue, c.MaxOpenConns)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry.max_attempts %d", ErrInvalidValue, c.Retry.MaxAttempts)
	}
	return nil
}

// ApplyEnv overrides fields from MYSQLPOOL_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DRIVER":   &c.Driver,
		"USER":     &c.User,
		"PASSWORD": &c.Password,
		"DATABASE": &c.Database,
		"HOST":     &c.Host,
		"LOG_FILE": &c.LogFile,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":           &c.Port,
		"MAX_OPEN_CONNS": &c.MaxOpenConns,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q", ErrInvalidValue, EnvPrefix, key, v)
		}
		*dst = n
	}
	return nil
}

// Load reads a YAML file, applies environment overrides and defaults, and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

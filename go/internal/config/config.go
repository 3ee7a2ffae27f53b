package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Duration is a time.Duration that reads from YAML and the environment either
// as a Go duration string ("5s") or as a number of seconds (5, 0.5).
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Config is the gateway configuration
type Config struct {
	ListenAddr     string   `yaml:"listen_addr"`
	SyncInterval   Duration `yaml:"sync_interval"`
	Leeway         float64  `yaml:"leeway"`
	SeekThreshold  float64  `yaml:"seek_threshold"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`

	Connection struct {
		WriteTimeout   Duration `yaml:"write_timeout"`
		ReadTimeout    Duration `yaml:"read_timeout"`
		PingInterval   Duration `yaml:"ping_interval"`
		MaxMessageSize int64    `yaml:"max_message_size"`
		SendBufferSize int      `yaml:"send_buffer_size"`
	} `yaml:"connection"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	cfg := &Config{
		ListenAddr:     ":3000",
		SyncInterval:   Duration(5 * time.Second),
		Leeway:         2,
		SeekThreshold:  0.5,
		AllowedOrigins: []string{"*"},
	}
	cfg.NATS.Subject = "mediasync.events"
	cfg.Connection.WriteTimeout = Duration(10 * time.Second)
	cfg.Connection.ReadTimeout = Duration(60 * time.Second)
	cfg.Connection.PingInterval = Duration(54 * time.Second)
	cfg.Connection.MaxMessageSize = 4096
	cfg.Connection.SendBufferSize = 256
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	return cfg
}

// LoadDotEnv loads a .env file into the environment. A missing file is not an error.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// Load builds the configuration from defaults, the optional YAML file at path
// and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.ListenAddr = ":" + port
	}
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("NATS_SUBJECT", c.NATS.Subject)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}

	var err error
	if c.SyncInterval, err = getEnvAsDuration("SYNC_INTERVAL", c.SyncInterval); err != nil {
		return err
	}
	if c.Leeway, err = getEnvAsFloat("LEEWAY", c.Leeway); err != nil {
		return err
	}
	if c.SeekThreshold, err = getEnvAsFloat("SEEK_THRESHOLD", c.SeekThreshold); err != nil {
		return err
	}
	return nil
}

// Validate checks the tunables
func (c *Config) Validate() error {
	switch {
	case c.ListenAddr == "":
		return fmt.Errorf("%w: listen_addr is empty", ErrInvalidConfig)
	case c.SyncInterval <= 0:
		return fmt.Errorf("%w: sync_interval must be positive", ErrInvalidConfig)
	case c.Leeway < 0:
		return fmt.Errorf("%w: leeway must not be negative", ErrInvalidConfig)
	case c.SeekThreshold < 0:
		return fmt.Errorf("%w: seek_threshold must not be negative", ErrInvalidConfig)
	case c.Connection.SendBufferSize <= 0:
		return fmt.Errorf("%w: connection.send_buffer_size must be positive", ErrInvalidConfig)
	case c.Connection.PingInterval <= 0 || c.Connection.ReadTimeout <= 0 || c.Connection.WriteTimeout <= 0:
		return fmt.Errorf("%w: connection timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not a number", ErrInvalidConfig, key, value)
	}
	return f, nil
}

func getEnvAsDuration(key string, defaultValue Duration) (Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := parseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return Duration(d), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

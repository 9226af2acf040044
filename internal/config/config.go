package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrConfigReadFailed  = errors.New("failed to read config file")
	ErrConfigParseFailed = errors.New("failed to parse config file")
	ErrInvalidConfig     = errors.New("invalid config")
)

const (
	DefaultNodeID          = "fcheck"
	DefaultListenAddr      = "127.0.0.1:7470"
	DefaultMaxMessageBytes = 64 << 20
)

type Config struct {
	NodeID string `yaml:"node_id"`
	Log    struct {
		Dir   string `yaml:"dir"`
		Level string `yaml:"level"`
	} `yaml:"log"`
	Server struct {
		ListenAddr      string `yaml:"listen_addr"`
		MaxMessageBytes int    `yaml:"max_message_bytes"`
	} `yaml:"server"`
	Loader struct {
		Mmap bool `yaml:"mmap"`
	} `yaml:"loader"`
}

func Default() *Config {
	c := &Config{NodeID: DefaultNodeID}
	c.Log.Level = "INFO"
	c.Server.ListenAddr = DefaultListenAddr
	c.Server.MaxMessageBytes = DefaultMaxMessageBytes
	c.Loader.Mmap = true
	return c
}

// Load reads a YAML config over the defaults. An empty path yields the
// defaults; a path that does not exist is an error.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigReadFailed, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParseFailed, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("%w: node_id is empty", ErrInvalidConfig)
	}
	if c.Server.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: max_message_bytes must be positive, got %d", ErrInvalidConfig, c.Server.MaxMessageBytes)
	}
	switch c.Log.Level {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

package config

import (
	"fmt"
	"time"
)

// Config represents a sluice.yaml configuration file.
// All values are optional and act as defaults for sluice send flags.
// CLI flags always override config values.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	ChunkSize int64           `yaml:"chunk_size"`
	Timeout   Duration        `yaml:"timeout"`
	Log       LogConfig       `yaml:"log"`
}

// TransportConfig holds transport defaults from the config file.
// Type selects the connector; the remaining fields apply to whichever
// connector they belong to and are ignored otherwise.
type TransportConfig struct {
	Type string `yaml:"type"`

	// TCP
	Addr string `yaml:"addr"`

	// WebSocket
	URL string `yaml:"url"`

	// Redis (URL is shared with WebSocket)
	Channel string `yaml:"channel,omitempty"`

	// S3
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// LogConfig holds logging defaults from the config file.
type LogConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr           string    `yaml:"addr"`
	APIKey         string    `yaml:"api-key"`
	OutputDir      string    `yaml:"output-dir"`
	RequestTimeout Duration  `yaml:"request-timeout"`
	Cache          Cache     `yaml:"cache"`
	Gate           Gate      `yaml:"gate"`
	Retry          Retry     `yaml:"retry"`
	S3Mirror       *S3Mirror `yaml:"s3-mirror"`
}

type Cache struct {
	MaxEntries int      `yaml:"max-entries"`
	TTL        Duration `yaml:"ttl"`
}

type Gate struct {
	Capacity int `yaml:"capacity"`
}

type Retry struct {
	MaxAttempts int      `yaml:"max-attempts"`
	BaseDelay   Duration `yaml:"base-delay"`
}

// Duration is a time.Duration that unmarshals from human-readable
// YAML values like "500ms" or "24h".
type Duration time.Duration

func (duration *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string

	if err := node.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("failed to parse duration %q: %w", raw, err)
	}

	*duration = Duration(parsed)

	return nil
}

type S3Mirror struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access-key-id"`
	AccessKeySecret string `yaml:"access-key-secret"`
}

func Parse(r io.Reader) (*Config, error) {
	var config Config

	if err := yaml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (config *Config) applyDefaults() {
	if config.Addr == "" {
		config.Addr = ":8085"
	}

	if config.OutputDir == "" {
		config.OutputDir = "./outputs"
	}

	if config.RequestTimeout == 0 {
		config.RequestTimeout = Duration(5 * time.Minute)
	}

	if config.Cache.MaxEntries == 0 {
		config.Cache.MaxEntries = 256
	}

	if config.Cache.TTL == 0 {
		config.Cache.TTL = Duration(24 * time.Hour)
	}

	if config.Gate.Capacity == 0 {
		config.Gate.Capacity = 3
	}

	if config.Retry.MaxAttempts == 0 {
		config.Retry.MaxAttempts = 3
	}

	if config.Retry.BaseDelay == 0 {
		config.Retry.BaseDelay = Duration(time.Second)
	}
}

func (config *Config) validate() error {
	if config.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max-entries cannot be negative, got %d", config.Cache.MaxEntries)
	}

	if config.Gate.Capacity < 1 {
		return fmt.Errorf("gate.capacity needs to be at least 1, got %d", config.Gate.Capacity)
	}

	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max-attempts needs to be at least 1, got %d", config.Retry.MaxAttempts)
	}

	if config.S3Mirror != nil && config.S3Mirror.Bucket == "" {
		return fmt.Errorf("s3-mirror.bucket needs to be specified when mirroring is enabled")
	}

	return nil
}

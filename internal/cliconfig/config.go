package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/pkg/streaming"
)

// Config holds CLI configuration for termstream.
type Config struct {
	// Store is the object store URL: file:///dir, mem://, s3://bucket,
	// gs://bucket or https://account.host.
	Store     string
	Container string

	ProblemType   string
	Compress      bool
	SizeThreshold int
	TermThreshold int
	QueueWait     time.Duration
	BatchSize     int

	// MaxUploadRate caps appended bytes per second. 0 means unlimited.
	MaxUploadRate int

	AccessKey       string
	SecretKey       string
	Region          string
	CredentialsFile string
	SASToken        string

	MetricsFile string
	LogLevel    string
}

const masked = "*****"

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	lib := streaming.DefaultConfig()
	return Config{
		ProblemType:   lib.ProblemType.String(),
		Compress:      lib.Compress,
		SizeThreshold: lib.UploadSizeThresholdBytes,
		TermThreshold: lib.UploadTermCountThreshold,
		QueueWait:     lib.QueueWaitTimeout,
		BatchSize:     1000,
		LogLevel:      "info",
	}
}

// Validate checks the configuration for errors.
// The store is checked separately by RequireStore since not every command
// needs one.
func (c *Config) Validate() error {
	if _, err := domain.ParseProblemType(c.ProblemType); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if c.SizeThreshold <= 0 {
		return fmt.Errorf("%w: size threshold must be positive", domain.ErrInvalidConfig)
	}
	if c.TermThreshold <= 0 {
		return fmt.Errorf("%w: term threshold must be positive", domain.ErrInvalidConfig)
	}
	if c.QueueWait <= 0 {
		return fmt.Errorf("%w: queue wait must be positive", domain.ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxUploadRate < 0 {
		return fmt.Errorf("%w: max upload rate must not be negative", domain.ErrInvalidConfig)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: log level: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}

// RequireStore reports an error when no store URL is configured.
func (c *Config) RequireStore() error {
	if c.Store == "" {
		return fmt.Errorf("%w: store is required (--store or %sSTORE)", domain.ErrInvalidConfig, EnvPrefix)
	}
	return nil
}

// Masked returns a copy safe to log, with credentials hidden.
func (c Config) Masked() Config {
	for _, s := range []*string{&c.SecretKey, &c.SASToken} {
		if *s != "" {
			*s = masked
		}
	}
	return c
}

// StreamingConfig converts the CLI configuration into a library Config.
// Validate must have succeeded.
func (c *Config) StreamingConfig() streaming.Config {
	pt, _ := domain.ParseProblemType(c.ProblemType)
	cfg := streaming.DefaultConfig()
	cfg.ProblemType = pt
	cfg.Compress = c.Compress
	cfg.UploadSizeThresholdBytes = c.SizeThreshold
	cfg.UploadTermCountThreshold = c.TermThreshold
	cfg.QueueWaitTimeout = c.QueueWait
	cfg.ContainerName = c.Container
	return cfg
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

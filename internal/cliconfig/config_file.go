package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Store           string `toml:"store"`
	Container       string `toml:"container"`
	ProblemType     string `toml:"problem_type"`
	Compress        *bool  `toml:"compress"`
	SizeThreshold   int    `toml:"size_threshold"`
	TermThreshold   int    `toml:"term_threshold"`
	QueueWait       string `toml:"queue_wait"`
	BatchSize       int    `toml:"batch_size"`
	MaxUploadRate   int    `toml:"max_upload_rate"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	Region          string `toml:"region"`
	CredentialsFile string `toml:"credentials_file"`
	SASToken        string `toml:"sas_token"`
	MetricsFile     string `toml:"metrics_file"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.termstream/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".termstream", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("store", fc.Store, &cfg.Store)
	s.setString("container", fc.Container, &cfg.Container)
	s.setString("type", fc.ProblemType, &cfg.ProblemType)
	s.setString("access-key", fc.AccessKey, &cfg.AccessKey)
	s.setString("secret-key", fc.SecretKey, &cfg.SecretKey)
	s.setString("region", fc.Region, &cfg.Region)
	s.setString("credentials-file", fc.CredentialsFile, &cfg.CredentialsFile)
	s.setString("sas-token", fc.SASToken, &cfg.SASToken)
	s.setString("metrics-file", fc.MetricsFile, &cfg.MetricsFile)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("queue-wait", fc.QueueWait, &cfg.QueueWait); err != nil {
		return err
	}

	s.setInt("size-threshold", fc.SizeThreshold, &cfg.SizeThreshold)
	s.setInt("term-threshold", fc.TermThreshold, &cfg.TermThreshold)
	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-upload-rate", fc.MaxUploadRate, &cfg.MaxUploadRate)

	s.setBool("compress", fc.Compress, &cfg.Compress)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

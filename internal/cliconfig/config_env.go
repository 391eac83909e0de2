package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "TERMSTREAM_"

// ApplyEnvConfig applies configuration from environment variables (TERMSTREAM_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("store", env("STORE"), &cfg.Store)
	s.setString("container", env("CONTAINER"), &cfg.Container)
	s.setString("type", env("PROBLEM_TYPE"), &cfg.ProblemType)
	s.setString("access-key", env("ACCESS_KEY"), &cfg.AccessKey)
	s.setString("secret-key", env("SECRET_KEY"), &cfg.SecretKey)
	s.setString("region", env("REGION"), &cfg.Region)
	s.setString("credentials-file", env("CREDENTIALS_FILE"), &cfg.CredentialsFile)
	s.setString("sas-token", env("SAS_TOKEN"), &cfg.SASToken)
	s.setString("metrics-file", env("METRICS_FILE"), &cfg.MetricsFile)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("queue-wait", env("QUEUE_WAIT"), &cfg.QueueWait); err != nil {
		return err
	}

	if err := s.setIntFromString("size-threshold", env("SIZE_THRESHOLD"), &cfg.SizeThreshold); err != nil {
		return err
	}
	if err := s.setIntFromString("term-threshold", env("TERM_THRESHOLD"), &cfg.TermThreshold); err != nil {
		return err
	}
	if err := s.setIntFromString("batch-size", env("BATCH_SIZE"), &cfg.BatchSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-upload-rate", env("MAX_UPLOAD_RATE"), &cfg.MaxUploadRate); err != nil {
		return err
	}

	s.setBoolFromString("compress", env("COMPRESS"), &cfg.Compress)

	return nil
}

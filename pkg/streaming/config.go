package streaming

import (
	"fmt"
	"time"

	"github.com/bft-labs/termstream/internal/app"
	"github.com/bft-labs/termstream/internal/domain"
)

// DefaultName is the problem name used when Config.Name is empty.
const DefaultName = "Optimization Problem"

// Config holds the settings of one streaming problem.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Name is carried into the problem returned by Download.
	// Default: "Optimization Problem"
	Name string

	// ProblemType is written into the document header. Default: Ising
	ProblemType ProblemType

	// InitialConfiguration is embedded in the document when non-empty, which
	// also bumps the format version to 1.1.
	InitialConfiguration map[string]int

	// Compress gzips the document. Default: true
	Compress bool

	// UploadSizeThresholdBytes flushes a chunk once this many bytes are
	// buffered. Default: 10,000,000
	UploadSizeThresholdBytes int

	// UploadTermCountThreshold flushes a chunk once this many terms are
	// pending. Default: 1000
	UploadTermCountThreshold int

	// QueueWaitTimeout bounds each wait of the worker for the next batch.
	// Default: 1s
	QueueWaitTimeout time.Duration

	// Metadata is merged over the statistics when the object is committed.
	// Caller keys win on collision.
	Metadata map[string]string

	// ContainerName is the container used by the default resolver. Empty
	// means the problem ID.
	ContainerName string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Name:                     DefaultName,
		ProblemType:              Ising,
		Compress:                 true,
		UploadSizeThresholdBytes: app.DefaultSizeThresholdBytes,
		UploadTermCountThreshold: app.DefaultTermCountThreshold,
		QueueWaitTimeout:         app.DefaultQueueWaitTimeout,
	}
}

// SetDefaults fills zero-valued fields that have a natural default.
// Compress is left alone since false is meaningful.
func (c *Config) SetDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.UploadSizeThresholdBytes == 0 {
		c.UploadSizeThresholdBytes = app.DefaultSizeThresholdBytes
	}
	if c.UploadTermCountThreshold == 0 {
		c.UploadTermCountThreshold = app.DefaultTermCountThreshold
	}
	if c.QueueWaitTimeout == 0 {
		c.QueueWaitTimeout = app.DefaultQueueWaitTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.ProblemType.Valid() {
		return fmt.Errorf("%w: unknown problem type %s", domain.ErrInvalidConfig, c.ProblemType)
	}
	if c.UploadSizeThresholdBytes <= 0 {
		return fmt.Errorf("%w: upload size threshold must be positive", domain.ErrInvalidConfig)
	}
	if c.UploadTermCountThreshold <= 0 {
		return fmt.Errorf("%w: upload term count threshold must be positive", domain.ErrInvalidConfig)
	}
	if c.QueueWaitTimeout <= 0 {
		return fmt.Errorf("%w: queue wait timeout must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

func (c *Config) policy() app.ThresholdPolicy {
	return app.ThresholdPolicy{
		TermCount: c.UploadTermCountThreshold,
		SizeBytes: c.UploadSizeThresholdBytes,
	}
}

// Package termstream streams optimization problems into object storage
// while they are being built.
//
// Example usage:
//
//	store := termstream.NewFileStore("/var/problems", nil)
//	p, err := termstream.New(store, termstream.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range terms {
//	    if err := p.AddTerms([]termstream.Term{t}); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	uri, err := p.Upload()
//
// The producer API lives in pkg/streaming; this package re-exports it
// together with the built-in stores.
package termstream

import (
	"context"

	"github.com/bft-labs/termstream/internal/adapters/fs"
	"github.com/bft-labs/termstream/internal/adapters/gcs"
	"github.com/bft-labs/termstream/internal/adapters/memory"
	"github.com/bft-labs/termstream/internal/adapters/minio"
	"github.com/bft-labs/termstream/internal/adapters/throttle"
	"github.com/bft-labs/termstream/pkg/log"
	"github.com/bft-labs/termstream/pkg/streaming"
)

type (
	// Config holds the settings of one streaming problem.
	Config = streaming.Config

	// StreamingProblem is the blocking producer.
	StreamingProblem = streaming.StreamingProblem

	// AsyncStreamingProblem is the context-driven producer.
	AsyncStreamingProblem = streaming.AsyncStreamingProblem

	Option       = streaming.Option
	Term         = streaming.Term
	Problem      = streaming.Problem
	ProblemType  = streaming.ProblemType
	ProblemStats = streaming.ProblemStats
	BlobStore    = streaming.BlobStore
	EventHandler = streaming.EventHandler

	// S3Config configures an S3-compatible store.
	S3Config = minio.Config

	// GCSConfig configures a Google Cloud Storage store.
	GCSConfig = gcs.Config
)

const (
	Ising = streaming.Ising
	PUBO  = streaming.PUBO
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return streaming.DefaultConfig()
}

// New creates a blocking StreamingProblem.
func New(store BlobStore, cfg Config, opts ...Option) (*StreamingProblem, error) {
	return streaming.New(store, cfg, opts...)
}

// NewAsync creates a context-driven AsyncStreamingProblem.
func NewAsync(ctx context.Context, store BlobStore, cfg Config, opts ...Option) (*AsyncStreamingProblem, error) {
	return streaming.NewAsync(ctx, store, cfg, opts...)
}

// NewTerm constructs a term.
func NewTerm(c float64, indices ...int) Term {
	return streaming.NewTerm(c, indices...)
}

// NewMemoryStore returns an in-process store.
func NewMemoryStore() BlobStore {
	return memory.NewStore()
}

// NewFileStore returns a store that writes objects under dir. logger may
// be nil.
func NewFileStore(dir string, logger log.Logger) BlobStore {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return fs.NewStore(dir, logger)
}

// NewS3Store connects to an S3-compatible endpoint.
func NewS3Store(cfg S3Config, logger log.Logger) (BlobStore, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s, err := minio.NewStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewGCSStore creates a Google Cloud Storage client.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger log.Logger) (BlobStore, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s, err := gcs.NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Throttle limits the bytes per second appended through store.
func Throttle(store BlobStore, bytesPerSecond int) BlobStore {
	return throttle.NewStore(store, bytesPerSecond)
}

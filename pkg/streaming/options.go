package streaming

import (
	"github.com/bft-labs/termstream/internal/ports"
	"github.com/bft-labs/termstream/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// Option configures optional behavior of a streaming problem.
type Option func(*options)

// options holds the optional configuration for a streaming problem.
type options struct {
	logger       ports.Logger
	resolver     ports.DestinationResolver
	eventHandler EventHandler
	id           string
	terms        []Term
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithResolver sets how the upload destination is chosen.
// If not provided, [LinkedStorage] with Config.ContainerName is used.
func WithResolver(r Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithEventHandler sets a handler for upload events.
// Events are called synchronously from the worker goroutine.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithID fixes the problem ID instead of generating a UUID.
func WithID(id string) Option {
	return func(o *options) {
		o.id = id
	}
}

// WithTerms adds terms as soon as the problem is constructed, which also
// starts the upload worker.
func WithTerms(terms ...Term) Option {
	return func(o *options) {
		o.terms = append(o.terms, terms...)
	}
}

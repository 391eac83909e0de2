package streaming

import (
	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// Re-exported domain types.
type (
	// Term is one summand of the cost function.
	Term = domain.Term

	// ProblemType tags the kind of cost function.
	ProblemType = domain.ProblemType

	// ProblemStats holds coupling statistics over the added terms.
	ProblemStats = domain.ProblemStats

	// Problem is a fully materialized problem, as returned by Download.
	Problem = domain.Problem
)

// Re-exported storage contracts, for custom stores and resolvers.
type (
	BlobStore       = ports.BlobStore
	BlobSink        = ports.BlobSink
	ObjectHandle    = ports.ObjectHandle
	Destination     = ports.Destination
	ContentSettings = ports.ContentSettings
	Resolver        = ports.DestinationResolver
	ResolverFunc    = ports.ResolverFunc
)

// Problem types.
const (
	Ising = domain.Ising
	PUBO  = domain.PUBO
)

// Errors returned by streaming problems. Use errors.Is to test for them.
var (
	ErrAlreadyUploaded = domain.ErrAlreadyUploaded
	ErrInvalidState    = domain.ErrInvalidState
	ErrSerialization   = domain.ErrSerialization
	ErrTransport       = domain.ErrTransport
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrNotFound        = domain.ErrNotFound
	ErrSinkClosed      = domain.ErrSinkClosed
)

// TransportError wraps failures reported by a BlobSink.
type TransportError = domain.TransportError

// NewTerm constructs a term. The indices are copied.
func NewTerm(c float64, indices ...int) Term {
	return domain.NewTerm(c, indices...)
}

// ParseProblemType parses "ising" or "pubo", case-insensitively.
func ParseProblemType(s string) (ProblemType, error) {
	return domain.ParseProblemType(s)
}

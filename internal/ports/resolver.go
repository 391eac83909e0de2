package ports

import "context"

// DestinationResolver picks where a new problem is uploaded.
// It is consulted exactly once per problem, before the first chunk.
type DestinationResolver interface {
	Resolve(ctx context.Context, problemID string) (Destination, error)
}

// ResolverFunc adapts a function to DestinationResolver.
type ResolverFunc func(ctx context.Context, problemID string) (Destination, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, problemID string) (Destination, error) {
	return f(ctx, problemID)
}

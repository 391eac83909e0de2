package streaming

import (
	"context"
	"fmt"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// ExplicitStorage uploads into a container of storage the caller supplied.
// URIs of such objects carry an access token, since the consumer cannot
// otherwise read a customer-owned account.
func ExplicitStorage(container string) Resolver {
	return ports.ResolverFunc(func(ctx context.Context, problemID string) (ports.Destination, error) {
		c := container
		if c == "" {
			c = problemID
		}
		return ports.Destination{Container: c, Blob: problemID, Explicit: true}, nil
	})
}

// LinkedStorage uploads into storage linked to the owning workspace. lookup
// returns the container for a problem; URIs are plain.
func LinkedStorage(lookup func(ctx context.Context, problemID string) (string, error)) Resolver {
	return ports.ResolverFunc(func(ctx context.Context, problemID string) (ports.Destination, error) {
		c, err := lookup(ctx, problemID)
		if err != nil {
			return ports.Destination{}, fmt.Errorf("look up linked container: %w", err)
		}
		return ports.Destination{Container: c, Blob: problemID}, nil
	})
}

// fixedContainer returns a lookup that always yields container, or the
// problem ID when container is empty.
func fixedContainer(container string) func(context.Context, string) (string, error) {
	return func(_ context.Context, problemID string) (string, error) {
		if container != "" {
			return container, nil
		}
		return problemID, nil
	}
}

func resolve(ctx context.Context, r Resolver, problemID string, target *ports.Destination) (ports.Destination, error) {
	dst, err := r.Resolve(ctx, problemID)
	if err != nil {
		return ports.Destination{}, err
	}
	if target != nil {
		dst.Container = target.Container
		dst.Blob = target.Blob
	}
	if dst.Container == "" || dst.Blob == "" {
		return ports.Destination{}, fmt.Errorf("%w: incomplete destination %q", domain.ErrInvalidState, dst)
	}
	return dst, nil
}

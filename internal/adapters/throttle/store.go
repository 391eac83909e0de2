// Package throttle rate-limits the bytes appended to another BlobStore.
package throttle

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/bft-labs/termstream/internal/ports"
)

// Store wraps a BlobStore so appends share one byte budget.
type Store struct {
	next    ports.BlobStore
	limiter *rate.Limiter
}

// NewStore limits appends to bytesPerSecond. A non-positive rate returns
// next unchanged.
func NewStore(next ports.BlobStore, bytesPerSecond int) ports.BlobStore {
	if bytesPerSecond <= 0 {
		return next
	}
	return &Store{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
	}
}

// Create wraps the sink returned by the underlying store.
func (s *Store) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	inner, err := s.next.Create(ctx, dst, settings)
	if err != nil {
		return nil, err
	}
	return &sink{next: inner, limiter: s.limiter}, nil
}

// Download is not throttled.
func (s *Store) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	return s.next.Download(ctx, dst)
}

type sink struct {
	next    ports.BlobSink
	limiter *rate.Limiter
}

// Append waits for budget in burst-sized steps, then forwards p whole so
// chunk boundaries are preserved.
func (k *sink) Append(ctx context.Context, p []byte) error {
	burst := k.limiter.Burst()
	for remaining := len(p); remaining > 0; {
		n := min(remaining, burst)
		if err := k.limiter.WaitN(ctx, n); err != nil {
			return err
		}
		remaining -= n
	}
	return k.next.Append(ctx, p)
}

func (k *sink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	return k.next.Commit(ctx, metadata)
}

func (k *sink) Abort(ctx context.Context) error {
	return k.next.Abort(ctx)
}

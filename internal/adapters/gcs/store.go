// Package gcs provides a Google Cloud Storage BlobStore.
//
// Each object is written through one resumable storage.Writer; chunks are
// streamed into it as they arrive and the upload is finalised on commit.
// Custom metadata is attached with an attribute update after the writer
// closes, because writer attributes are frozen by the first write.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// DefaultSignedURLExpiry is the lifetime of token-bearing URIs.
const DefaultSignedURLExpiry = 24 * time.Hour

const publicHost = "storage.googleapis.com"

// Config configures a Store.
type Config struct {
	// Bucket holds every object under <container>/<blob>. When empty the
	// container is used as the bucket.
	Bucket string

	CredentialsFile string
	Endpoint        string
	Anonymous       bool

	// GoogleAccessID signs URLs when it cannot be derived from credentials.
	GoogleAccessID string

	// ChunkSize is the resumable upload buffer; zero keeps the client default.
	ChunkSize int

	SignedURLExpiry time.Duration
}

// Store implements ports.BlobStore on GCS.
type Store struct {
	api    bucketAPI
	cfg    Config
	logger ports.Logger
	now    func() time.Time
}

// NewStore creates a storage client from cfg.
func NewStore(ctx context.Context, cfg Config, logger ports.Logger) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new storage client: %w", err)
	}
	return newStore(&clientAPI{client: client, accessID: cfg.GoogleAccessID}, cfg, logger), nil
}

func newStore(api bucketAPI, cfg Config, logger ports.Logger) *Store {
	if cfg.SignedURLExpiry <= 0 {
		cfg.SignedURLExpiry = DefaultSignedURLExpiry
	}
	return &Store{api: api, cfg: cfg, logger: logger, now: time.Now}
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.api.close()
}

func (s *Store) location(dst ports.Destination) (bucket, key string) {
	if s.cfg.Bucket != "" {
		return s.cfg.Bucket, path.Join(dst.Container, dst.Blob)
	}
	return dst.Container, dst.Blob
}

// Create opens a resumable writer for dst.
func (s *Store) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	bucket, key := s.location(dst)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: destination %q", domain.ErrInvalidConfig, dst)
	}
	wctx, cancel := context.WithCancel(ctx)
	w := s.api.newWriter(wctx, bucket, key, settings, s.cfg.ChunkSize)
	return &sink{store: s, dst: dst, bucket: bucket, key: key, w: w, cancel: cancel}, nil
}

// Download returns the stored bytes without decompressive transcoding.
func (s *Store) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	bucket, key := s.location(dst)
	data, err := s.api.read(ctx, bucket, key)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, dst)
	}
	return data, err
}

type sink struct {
	store   *Store
	dst     ports.Destination
	bucket  string
	key     string
	w       io.WriteCloser
	cancel  context.CancelFunc
	written int64
	done    bool
}

func (k *sink) Append(ctx context.Context, p []byte) error {
	if k.done {
		return domain.ErrSinkClosed
	}
	n, err := k.w.Write(p)
	k.written += int64(n)
	return err
}

func (k *sink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	if k.done {
		return nil, domain.ErrSinkClosed
	}
	k.done = true
	defer k.cancel()

	if err := k.w.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	if len(metadata) > 0 {
		if err := k.store.api.updateMetadata(ctx, k.bucket, k.key, metadata); err != nil {
			return nil, fmt.Errorf("update metadata: %w", err)
		}
	}
	k.store.logger.Debug("object finalized",
		ports.String("bucket", k.bucket),
		ports.String("object", k.key),
		ports.Int64("bytes", k.written),
	)
	return &handle{store: k.store, dst: k.dst, bucket: k.bucket, key: k.key}, nil
}

// Abort cancels the writer's context, which discards the upload.
func (k *sink) Abort(ctx context.Context) error {
	if k.done {
		return nil
	}
	k.done = true
	k.cancel()
	_ = k.w.Close()
	return nil
}

type handle struct {
	store  *Store
	dst    ports.Destination
	bucket string
	key    string
}

func (h *handle) Destination() ports.Destination { return h.dst }

func (h *handle) Committed() bool { return true }

// URI returns a V4 signed URL when withToken is set, else the public
// object URL.
func (h *handle) URI(ctx context.Context, withToken bool) (string, error) {
	if withToken {
		expires := h.store.now().Add(h.store.cfg.SignedURLExpiry)
		u, err := h.store.api.signedURL(h.bucket, h.key, expires)
		if err != nil {
			return "", fmt.Errorf("sign url %s/%s: %w", h.bucket, h.key, err)
		}
		return u, nil
	}
	u := url.URL{Scheme: "https", Host: publicHost, Path: "/" + h.bucket + "/" + h.key}
	return u.String(), nil
}

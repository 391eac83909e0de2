// Package minio provides an S3-compatible BlobStore built on minio-go.
//
// Chunks are buffered into parts of at least PartSize bytes and uploaded
// with the multipart API. Objects that never fill a part are written with a
// single PUT on commit.
package minio

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// MinPartSize is the smallest part S3 accepts for all but the last part.
const MinPartSize = 5 << 20

// DefaultPresignExpiry is the lifetime of token-bearing URIs.
const DefaultPresignExpiry = 24 * time.Hour

// Config configures a Store.
type Config struct {
	Endpoint  string // host:port
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool

	// Bucket holds every object under <container>/<blob>. When empty the
	// container is used as the bucket and the blob as the key.
	Bucket string

	// PartSize defaults to MinPartSize.
	PartSize int

	// PresignExpiry defaults to DefaultPresignExpiry.
	PresignExpiry time.Duration
}

// Store implements ports.BlobStore on S3.
type Store struct {
	api    objectAPI
	cfg    Config
	logger ports.Logger

	bucketsMu sync.Mutex
	buckets   map[string]bool
}

// NewStore connects a minio client.
func NewStore(cfg Config, logger ports.Logger) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", domain.ErrInvalidConfig)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newStore(coreAPI{core: &minio.Core{Client: client}}, cfg, logger), nil
}

func newStore(api objectAPI, cfg Config, logger ports.Logger) *Store {
	if cfg.PartSize < MinPartSize {
		cfg.PartSize = MinPartSize
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = DefaultPresignExpiry
	}
	return &Store{
		api:     api,
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[string]bool),
	}
}

// location maps a destination to a bucket and object key.
func (s *Store) location(dst ports.Destination) (bucket, key string) {
	if s.cfg.Bucket != "" {
		return s.cfg.Bucket, path.Join(dst.Container, dst.Blob)
	}
	return dst.Container, dst.Blob
}

func (s *Store) ensureBucket(ctx context.Context, bucket string) error {
	s.bucketsMu.Lock()
	defer s.bucketsMu.Unlock()
	if s.buckets[bucket] {
		return nil
	}
	exists, err := s.api.bucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.api.makeBucket(ctx, bucket, s.cfg.Region); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		s.logger.Info("bucket created", ports.String("bucket", bucket))
	}
	s.buckets[bucket] = true
	return nil
}

// Create ensures the bucket exists and returns a buffering sink.
func (s *Store) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	bucket, key := s.location(dst)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: destination %q", domain.ErrInvalidConfig, dst)
	}
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return &sink{store: s, dst: dst, bucket: bucket, key: key, settings: settings}, nil
}

// Download reads a committed object.
func (s *Store) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	bucket, key := s.location(dst)
	data, err := s.api.get(ctx, bucket, key)
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, dst)
		}
		return nil, err
	}
	return data, nil
}

type sink struct {
	store    *Store
	dst      ports.Destination
	bucket   string
	key      string
	settings ports.ContentSettings

	buf      []byte
	uploadID string
	parts    []minio.CompletePart
	done     bool
}

func (k *sink) options(metadata map[string]string) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		UserMetadata:    metadata,
		ContentType:     k.settings.ContentType,
		ContentEncoding: k.settings.ContentEncoding,
	}
}

func (k *sink) Append(ctx context.Context, p []byte) error {
	if k.done {
		return domain.ErrSinkClosed
	}
	k.buf = append(k.buf, p...)
	for len(k.buf) >= k.store.cfg.PartSize {
		if err := k.uploadPart(ctx, k.buf[:k.store.cfg.PartSize]); err != nil {
			return err
		}
		k.buf = append(k.buf[:0], k.buf[k.store.cfg.PartSize:]...)
	}
	return nil
}

func (k *sink) uploadPart(ctx context.Context, data []byte) error {
	if k.uploadID == "" {
		id, err := k.store.api.newMultipart(ctx, k.bucket, k.key, k.options(nil))
		if err != nil {
			return fmt.Errorf("initiate multipart upload: %w", err)
		}
		k.uploadID = id
	}
	n := len(k.parts) + 1
	part, err := k.store.api.putPart(ctx, k.bucket, k.key, k.uploadID, n, data)
	if err != nil {
		return fmt.Errorf("upload part %d: %w", n, err)
	}
	k.parts = append(k.parts, part)
	k.store.logger.Debug("part uploaded",
		ports.String("bucket", k.bucket),
		ports.String("key", k.key),
		ports.Int("part", n),
		ports.Int("bytes", len(data)),
	)
	return nil
}

// Commit writes the remaining bytes and seals the object with metadata.
func (k *sink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	if k.done {
		return nil, domain.ErrSinkClosed
	}

	if k.uploadID == "" {
		if err := k.store.api.putObject(ctx, k.bucket, k.key, k.buf, k.options(metadata)); err != nil {
			return nil, fmt.Errorf("put object: %w", err)
		}
		k.done = true
		return k.handle(), nil
	}

	if len(k.buf) > 0 {
		if err := k.uploadPart(ctx, k.buf); err != nil {
			return nil, err
		}
		k.buf = nil
	}
	if err := k.store.api.complete(ctx, k.bucket, k.key, k.uploadID, k.parts); err != nil {
		return nil, fmt.Errorf("complete multipart upload: %w", err)
	}
	k.done = true

	md := make(map[string]string, len(metadata)+2)
	for key, v := range metadata {
		md[key] = v
	}
	md[ports.MetadataContentType] = k.settings.ContentType
	md[ports.MetadataContentEncoding] = k.settings.ContentEncoding
	if err := k.store.api.replaceMetadata(ctx, k.bucket, k.key, md); err != nil {
		return nil, fmt.Errorf("set object metadata: %w", err)
	}
	return k.handle(), nil
}

func (k *sink) handle() *handle {
	return &handle{store: k.store, dst: k.dst, bucket: k.bucket, key: k.key}
}

// Abort cancels an in-progress multipart upload.
func (k *sink) Abort(ctx context.Context) error {
	if k.done {
		return nil
	}
	k.done = true
	k.buf = nil
	if k.uploadID == "" {
		return nil
	}
	return k.store.api.abort(ctx, k.bucket, k.key, k.uploadID)
}

type handle struct {
	store  *Store
	dst    ports.Destination
	bucket string
	key    string
}

func (h *handle) Destination() ports.Destination { return h.dst }

func (h *handle) Committed() bool { return true }

// URI returns a presigned GET URL when withToken is set, else the plain
// object URL.
func (h *handle) URI(ctx context.Context, withToken bool) (string, error) {
	if withToken {
		u, err := h.store.api.presign(ctx, h.bucket, h.key, h.store.cfg.PresignExpiry)
		if err != nil {
			return "", fmt.Errorf("presign: %w", err)
		}
		return u.String(), nil
	}
	base := *h.store.api.endpoint()
	base.Path = "/" + h.bucket + "/" + h.key
	base.RawQuery = ""
	return base.String(), nil
}

// ParseURI maps an object URL produced by URI back to a destination.
func ParseURI(cfg Config, raw string) (ports.Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ports.Destination{}, err
	}
	p := u.Path
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	bucket, rest := split(p)
	if cfg.Bucket != "" {
		if bucket != cfg.Bucket {
			return ports.Destination{}, fmt.Errorf("%w: %s is not in bucket %s", domain.ErrInvalidConfig, raw, cfg.Bucket)
		}
		bucket, rest = split(rest)
	}
	if bucket == "" || rest == "" {
		return ports.Destination{}, fmt.Errorf("%w: no object in %s", domain.ErrInvalidConfig, raw)
	}
	return ports.Destination{Container: bucket, Blob: rest}, nil
}

func split(p string) (string, string) {
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			return p[:i], p[i+1:]
		}
	}
	return p, ""
}

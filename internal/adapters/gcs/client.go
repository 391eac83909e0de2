package gcs

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/storage"

	"github.com/bft-labs/termstream/internal/ports"
)

// bucketAPI is the subset of storage operations the store needs.
type bucketAPI interface {
	newWriter(ctx context.Context, bucket, key string, settings ports.ContentSettings, chunkSize int) io.WriteCloser
	updateMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error
	read(ctx context.Context, bucket, key string) ([]byte, error)
	signedURL(bucket, key string, expires time.Time) (string, error)
	close() error
}

type clientAPI struct {
	client   *storage.Client
	accessID string
}

func (c *clientAPI) newWriter(ctx context.Context, bucket, key string, settings ports.ContentSettings, chunkSize int) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = settings.ContentType
	w.ContentEncoding = settings.ContentEncoding
	if chunkSize > 0 {
		w.ChunkSize = chunkSize
	}
	return w
}

func (c *clientAPI) updateMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	_, err := c.client.Bucket(bucket).Object(key).Update(ctx, storage.ObjectAttrsToUpdate{Metadata: metadata})
	return err
}

func (c *clientAPI) read(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := c.client.Bucket(bucket).Object(key).ReadCompressed(true).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (c *clientAPI) signedURL(bucket, key string, expires time.Time) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	}
	if c.accessID != "" {
		opts.GoogleAccessID = c.accessID
	}
	return c.client.Bucket(bucket).SignedURL(key, opts)
}

func (c *clientAPI) close() error {
	return c.client.Close()
}

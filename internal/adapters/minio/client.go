package minio

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// objectAPI is the subset of S3 operations the store needs.
type objectAPI interface {
	bucketExists(ctx context.Context, bucket string) (bool, error)
	makeBucket(ctx context.Context, bucket, region string) error
	putObject(ctx context.Context, bucket, key string, data []byte, opts minio.PutObjectOptions) error
	newMultipart(ctx context.Context, bucket, key string, opts minio.PutObjectOptions) (string, error)
	putPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte) (minio.CompletePart, error)
	complete(ctx context.Context, bucket, key, uploadID string, parts []minio.CompletePart) error
	abort(ctx context.Context, bucket, key, uploadID string) error
	replaceMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error
	get(ctx context.Context, bucket, key string) ([]byte, error)
	presign(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error)
	endpoint() *url.URL
}

// coreAPI implements objectAPI with minio-go's low-level Core client.
type coreAPI struct {
	core *minio.Core
}

func (c coreAPI) bucketExists(ctx context.Context, bucket string) (bool, error) {
	return c.core.Client.BucketExists(ctx, bucket)
}

func (c coreAPI) makeBucket(ctx context.Context, bucket, region string) error {
	return c.core.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

func (c coreAPI) putObject(ctx context.Context, bucket, key string, data []byte, opts minio.PutObjectOptions) error {
	_, err := c.core.Client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (c coreAPI) newMultipart(ctx context.Context, bucket, key string, opts minio.PutObjectOptions) (string, error) {
	return c.core.NewMultipartUpload(ctx, bucket, key, opts)
}

func (c coreAPI) putPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte) (minio.CompletePart, error) {
	part, err := c.core.PutObjectPart(ctx, bucket, key, uploadID, partNumber,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		return minio.CompletePart{}, err
	}
	return minio.CompletePart{PartNumber: part.PartNumber, ETag: part.ETag}, nil
}

func (c coreAPI) complete(ctx context.Context, bucket, key, uploadID string, parts []minio.CompletePart) error {
	_, err := c.core.CompleteMultipartUpload(ctx, bucket, key, uploadID, parts, minio.PutObjectOptions{})
	return err
}

func (c coreAPI) abort(ctx context.Context, bucket, key, uploadID string) error {
	return c.core.AbortMultipartUpload(ctx, bucket, key, uploadID)
}

// replaceMetadata copies the object onto itself with new metadata, since
// multipart uploads fix metadata at initiation.
func (c coreAPI) replaceMetadata(ctx context.Context, bucket, key string, metadata map[string]string) error {
	_, err := c.core.Client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          bucket,
			Object:          key,
			UserMetadata:    metadata,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: bucket, Object: key},
	)
	return err
}

func (c coreAPI) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.core.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (c coreAPI) presign(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error) {
	return c.core.Client.PresignedGetObject(ctx, bucket, key, expiry, nil)
}

func (c coreAPI) endpoint() *url.URL {
	return c.core.Client.EndpointURL()
}

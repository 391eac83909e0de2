package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
	"github.com/bft-labs/termstream/pkg/log"
)

// fakeAPI keeps objects and multipart uploads in memory.
type fakeAPI struct {
	buckets   map[string]bool
	objects   map[string][]byte
	metadata  map[string]map[string]string
	uploads   map[string][][]byte
	aborted   []string
	putCalls  int
	partSizes []int
	failPart  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		buckets:  map[string]bool{},
		objects:  map[string][]byte{},
		metadata: map[string]map[string]string{},
		uploads:  map[string][][]byte{},
	}
}

func (f *fakeAPI) bucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.buckets[bucket], nil
}

func (f *fakeAPI) makeBucket(ctx context.Context, bucket, region string) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeAPI) putObject(ctx context.Context, bucket, key string, data []byte, opts minio.PutObjectOptions) error {
	f.putCalls++
	f.objects[bucket+"/"+key] = append([]byte(nil), data...)
	md := map[string]string{ports.MetadataContentType: opts.ContentType, ports.MetadataContentEncoding: opts.ContentEncoding}
	for k, v := range opts.UserMetadata {
		md[k] = v
	}
	f.metadata[bucket+"/"+key] = md
	return nil
}

func (f *fakeAPI) newMultipart(ctx context.Context, bucket, key string, opts minio.PutObjectOptions) (string, error) {
	id := fmt.Sprintf("upload-%d", len(f.uploads)+1)
	f.uploads[id] = nil
	return id, nil
}

func (f *fakeAPI) putPart(ctx context.Context, bucket, key, uploadID string, n int, data []byte) (minio.CompletePart, error) {
	if f.failPart {
		return minio.CompletePart{}, errors.New("slow down")
	}
	f.uploads[uploadID] = append(f.uploads[uploadID], append([]byte(nil), data...))
	f.partSizes = append(f.partSizes, len(data))
	return minio.CompletePart{PartNumber: n, ETag: fmt.Sprintf("etag-%d", n)}, nil
}

func (f *fakeAPI) complete(ctx context.Context, bucket, key, uploadID string, parts []minio.CompletePart) error {
	var data []byte
	for i, p := range parts {
		if p.PartNumber != i+1 {
			return fmt.Errorf("part %d out of order", p.PartNumber)
		}
		data = append(data, f.uploads[uploadID][i]...)
	}
	f.objects[bucket+"/"+key] = data
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeAPI) abort(ctx context.Context, bucket, key, uploadID string) error {
	f.aborted = append(f.aborted, uploadID)
	delete(f.uploads, uploadID)
	return nil
}

func (f *fakeAPI) replaceMetadata(ctx context.Context, bucket, key string, md map[string]string) error {
	f.metadata[bucket+"/"+key] = md
	return nil
}

func (f *fakeAPI) get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
	}
	return data, nil
}

func (f *fakeAPI) presign(ctx context.Context, bucket, key string, expiry time.Duration) (*url.URL, error) {
	return url.Parse(fmt.Sprintf("http://s3.local:9000/%s/%s?X-Amz-Expires=%d", bucket, key, int(expiry.Seconds())))
}

func (f *fakeAPI) endpoint() *url.URL {
	u, _ := url.Parse("http://s3.local:9000")
	return u
}

var gzipSettings = ports.ContentSettings{ContentType: ports.ContentTypeJSON, ContentEncoding: ports.EncodingGzip}

func TestStore_SmallObjectSinglePut(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newStore(api, Config{}, log.NewNoopLogger())
	dst := ports.Destination{Container: "problems", Blob: "p1"}

	sink, err := s.Create(ctx, dst, gzipSettings)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !api.buckets["problems"] {
		t.Fatal("bucket not created")
	}
	_ = sink.Append(ctx, []byte("abc"))
	_ = sink.Append(ctx, []byte("def"))
	if _, err := sink.Commit(ctx, map[string]string{"num_terms": "2"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if api.putCalls != 1 || len(api.partSizes) != 0 {
		t.Errorf("putCalls = %d, parts = %v, want a single put", api.putCalls, api.partSizes)
	}
	data, err := s.Download(ctx, dst)
	if err != nil || string(data) != "abcdef" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	md := api.metadata["problems/p1"]
	if md["num_terms"] != "2" || md[ports.MetadataContentEncoding] != "gzip" {
		t.Errorf("metadata = %v", md)
	}
}

func TestStore_MultipartParts(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newStore(api, Config{Bucket: "quantum"}, log.NewNoopLogger())
	dst := ports.Destination{Container: "ws", Blob: "p2"}

	sink, _ := s.Create(ctx, dst, gzipSettings)
	chunk := bytes.Repeat([]byte("x"), 2<<20)
	var want []byte
	for i := 0; i < 6; i++ {
		if err := sink.Append(ctx, chunk); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		want = append(want, chunk...)
	}
	h, err := sink.Commit(ctx, map[string]string{"type": "pubo"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// 12 MiB in 5 MiB parts: 5, 5, 2.
	if len(api.partSizes) != 3 || api.partSizes[0] != MinPartSize || api.partSizes[2] != 2<<20 {
		t.Errorf("part sizes = %v", api.partSizes)
	}
	got := api.objects["quantum/ws/p2"]
	if !bytes.Equal(got, want) {
		t.Errorf("object has %d bytes, want %d", len(got), len(want))
	}
	if md := api.metadata["quantum/ws/p2"]; md["type"] != "pubo" || md[ports.MetadataContentType] != ports.ContentTypeJSON {
		t.Errorf("metadata = %v", md)
	}

	plain, _ := h.URI(ctx, false)
	if plain != "http://s3.local:9000/quantum/ws/p2" {
		t.Errorf("URI(false) = %s", plain)
	}
	signed, _ := h.URI(ctx, true)
	if !strings.Contains(signed, "X-Amz-Expires=86400") {
		t.Errorf("URI(true) = %s", signed)
	}
	back, err := ParseURI(Config{Bucket: "quantum"}, plain)
	if err != nil || back.Container != "ws" || back.Blob != "p2" {
		t.Errorf("ParseURI = %+v, %v", back, err)
	}
}

func TestStore_AbortMultipart(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newStore(api, Config{}, log.NewNoopLogger())

	sink, _ := s.Create(ctx, ports.Destination{Container: "c", Blob: "b"}, gzipSettings)
	_ = sink.Append(ctx, bytes.Repeat([]byte("y"), MinPartSize+1))
	if err := sink.Abort(ctx); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if len(api.aborted) != 1 || len(api.uploads) != 0 {
		t.Errorf("aborted = %v, open uploads = %d", api.aborted, len(api.uploads))
	}
	if _, err := sink.Commit(ctx, nil); !errors.Is(err, domain.ErrSinkClosed) {
		t.Errorf("Commit after Abort = %v, want ErrSinkClosed", err)
	}
}

func TestStore_PartFailure(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.failPart = true
	s := newStore(api, Config{}, log.NewNoopLogger())

	sink, _ := s.Create(ctx, ports.Destination{Container: "c", Blob: "b"}, gzipSettings)
	err := sink.Append(ctx, bytes.Repeat([]byte("z"), MinPartSize))
	if err == nil || !strings.Contains(err.Error(), "upload part 1") {
		t.Errorf("Append() = %v, want part failure", err)
	}
}

func TestStore_DownloadMissing(t *testing.T) {
	s := newStore(newFakeAPI(), Config{}, log.NewNoopLogger())
	if _, err := s.Download(context.Background(), ports.Destination{Container: "c", Blob: "nope"}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Download() = %v, want ErrNotFound", err)
	}
}

func TestNewStore_RequiresEndpoint(t *testing.T) {
	if _, err := NewStore(Config{}, log.NewNoopLogger()); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("NewStore() = %v, want ErrInvalidConfig", err)
	}
}

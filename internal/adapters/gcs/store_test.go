package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/storage"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
	"github.com/bft-labs/termstream/pkg/log"
)

type fakeWriter struct {
	api      *fakeAPI
	ctx      context.Context
	name     string
	settings ports.ContentSettings
	buf      bytes.Buffer
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.buf.Write(p)
}

func (w *fakeWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.api.objects[w.name] = w.buf.Bytes()
	w.api.settings[w.name] = w.settings
	return nil
}

type fakeAPI struct {
	objects  map[string][]byte
	settings map[string]ports.ContentSettings
	metadata map[string]map[string]string
	closed   bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		objects:  map[string][]byte{},
		settings: map[string]ports.ContentSettings{},
		metadata: map[string]map[string]string{},
	}
}

func (f *fakeAPI) newWriter(ctx context.Context, bucket, key string, settings ports.ContentSettings, chunkSize int) io.WriteCloser {
	return &fakeWriter{api: f, ctx: ctx, name: bucket + "/" + key, settings: settings}
}

func (f *fakeAPI) updateMetadata(ctx context.Context, bucket, key string, md map[string]string) error {
	if _, ok := f.objects[bucket+"/"+key]; !ok {
		return storage.ErrObjectNotExist
	}
	f.metadata[bucket+"/"+key] = md
	return nil
}

func (f *fakeAPI) read(ctx context.Context, bucket, key string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotExist
	}
	return data, nil
}

func (f *fakeAPI) signedURL(bucket, key string, expires time.Time) (string, error) {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s?X-Goog-Expires=%d", bucket, key, expires.Unix()), nil
}

func (f *fakeAPI) close() error {
	f.closed = true
	return nil
}

func TestStore_WriteCommitDownload(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newStore(api, Config{Bucket: "qio"}, log.NewNoopLogger())
	s.now = func() time.Time { return time.Unix(1000, 0) }
	dst := ports.Destination{Container: "ws", Blob: "p1"}

	sink, err := s.Create(ctx, dst, ports.ContentSettings{ContentType: ports.ContentTypeJSON, ContentEncoding: ports.EncodingGzip})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = sink.Append(ctx, []byte("chunk-1,"))
	_ = sink.Append(ctx, []byte("chunk-2"))
	h, err := sink.Commit(ctx, map[string]string{"num_terms": "7"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	data, err := s.Download(ctx, dst)
	if err != nil || string(data) != "chunk-1,chunk-2" {
		t.Fatalf("Download = %q, %v", data, err)
	}
	if api.settings["qio/ws/p1"].ContentEncoding != "gzip" {
		t.Errorf("settings = %+v", api.settings["qio/ws/p1"])
	}
	if api.metadata["qio/ws/p1"]["num_terms"] != "7" {
		t.Errorf("metadata = %v", api.metadata["qio/ws/p1"])
	}

	plain, _ := h.URI(ctx, false)
	if plain != "https://storage.googleapis.com/qio/ws/p1" {
		t.Errorf("URI(false) = %s", plain)
	}
	signed, _ := h.URI(ctx, true)
	want := fmt.Sprintf("https://storage.googleapis.com/qio/ws/p1?X-Goog-Expires=%d", int64(1000+24*3600))
	if signed != want {
		t.Errorf("URI(true) = %s, want %s", signed, want)
	}

	if err := s.Close(); err != nil || !api.closed {
		t.Errorf("Close() = %v, closed = %v", err, api.closed)
	}
}

func TestStore_AbortDiscards(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s := newStore(api, Config{}, log.NewNoopLogger())
	dst := ports.Destination{Container: "bucket", Blob: "b"}

	sink, _ := s.Create(ctx, dst, ports.ContentSettings{})
	_ = sink.Append(ctx, []byte("partial"))
	if err := sink.Abort(ctx); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, ok := api.objects["bucket/b"]; ok {
		t.Error("aborted object was finalized")
	}
	if _, err := s.Download(ctx, dst); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Download() = %v, want ErrNotFound", err)
	}
}

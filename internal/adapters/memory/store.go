// Package memory provides an in-process BlobStore.
package memory

import (
	"bytes"
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// Object is a committed object as held by the store.
type Object struct {
	Data      []byte
	Chunks    []int // size of each appended chunk, in order
	Metadata  map[string]string
	Settings  ports.ContentSettings
	Committed time.Time
}

// Store keeps committed objects in memory. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
	aborted int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{objects: make(map[string]Object)}
}

func key(dst ports.Destination) string {
	return dst.Container + "/" + dst.Blob
}

// Create opens a sink. The object becomes visible on Commit.
func (s *Store) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	return &sink{store: s, dst: dst, settings: settings}, nil
}

// Download returns a copy of a committed object's bytes.
func (s *Store) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	obj, ok := s.Object(dst)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return obj.Data, nil
}

// Object returns a copy of the committed object at dst.
func (s *Store) Object(dst ports.Destination) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key(dst)]
	if !ok {
		return Object{}, false
	}
	obj.Data = append([]byte(nil), obj.Data...)
	obj.Chunks = append([]int(nil), obj.Chunks...)
	md := make(map[string]string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		md[k] = v
	}
	obj.Metadata = md
	return obj, true
}

// Len returns the number of committed objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Aborted returns how many sinks were aborted.
func (s *Store) Aborted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aborted
}

type sink struct {
	store    *Store
	dst      ports.Destination
	settings ports.ContentSettings
	buf      bytes.Buffer
	chunks   []int
	done     bool
}

func (k *sink) Append(ctx context.Context, p []byte) error {
	if k.done {
		return domain.ErrSinkClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	k.buf.Write(p)
	k.chunks = append(k.chunks, len(p))
	return nil
}

func (k *sink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	if k.done {
		return nil, domain.ErrSinkClosed
	}
	k.done = true

	md := make(map[string]string, len(metadata))
	for key, v := range metadata {
		md[key] = v
	}
	obj := Object{
		Data:      k.buf.Bytes(),
		Chunks:    k.chunks,
		Metadata:  md,
		Settings:  k.settings,
		Committed: time.Now(),
	}

	k.store.mu.Lock()
	k.store.objects[key(k.dst)] = obj
	k.store.mu.Unlock()

	return &handle{dst: k.dst}, nil
}

func (k *sink) Abort(ctx context.Context) error {
	if k.done {
		return nil
	}
	k.done = true
	k.buf.Reset()
	k.store.mu.Lock()
	k.store.aborted++
	k.store.mu.Unlock()
	return nil
}

type handle struct {
	dst ports.Destination
}

func (h *handle) Destination() ports.Destination { return h.dst }

func (h *handle) Committed() bool { return true }

// URI returns mem://container/blob, with a random sig query when a token
// is requested.
func (h *handle) URI(ctx context.Context, withToken bool) (string, error) {
	u := url.URL{Scheme: "mem", Host: h.dst.Container, Path: "/" + h.dst.Blob}
	if withToken {
		u.RawQuery = url.Values{"sig": {uuid.NewString()}}.Encode()
	}
	return u.String(), nil
}

// ParseURI extracts the destination from a mem:// URI.
func ParseURI(raw string) (ports.Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ports.Destination{}, err
	}
	if u.Scheme != "mem" || u.Host == "" || len(u.Path) < 2 {
		return ports.Destination{}, domain.ErrNotFound
	}
	return ports.Destination{Container: u.Host, Blob: u.Path[1:]}, nil
}

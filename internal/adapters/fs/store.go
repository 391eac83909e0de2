// Package fs provides a BlobStore backed by a local directory.
//
// Objects live at <root>/<container>/<blob>. Chunks are appended to a hidden
// partial file that is renamed into place on commit, next to a
// <blob>.meta.json sidecar holding the content settings and metadata.
package fs

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

const metaSuffix = ".meta.json"

// Store implements ports.BlobStore on a directory tree.
type Store struct {
	root   string
	logger ports.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily.
func NewStore(dir string, logger ports.Logger) *Store {
	return &Store{root: dir, logger: logger}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) path(dst ports.Destination) (string, error) {
	if err := checkName(dst.Container); err != nil {
		return "", fmt.Errorf("container: %w", err)
	}
	if err := checkName(dst.Blob); err != nil {
		return "", fmt.Errorf("blob: %w", err)
	}
	return filepath.Join(s.root, dst.Container, dst.Blob), nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid name %q", domain.ErrInvalidConfig, name)
	}
	return nil
}

// Create opens a partial file for dst.
func (s *Store) Create(ctx context.Context, dst ports.Destination, settings ports.ContentSettings) (ports.BlobSink, error) {
	final, err := s.path(dst)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	partial := filepath.Join(dir, "."+dst.Blob+".partial-"+uuid.NewString())
	f, err := os.OpenFile(partial, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("partial object created",
		ports.String("path", partial),
	)
	return &sink{
		store:    s,
		dst:      dst,
		settings: settings,
		file:     f,
		partial:  partial,
		final:    final,
	}, nil
}

// Download reads a committed object.
func (s *Store) Download(ctx context.Context, dst ports.Destination) ([]byte, error) {
	p, err := s.path(dst)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, dst)
		}
		return nil, err
	}
	return data, nil
}

// Sidecar returns the stored sidecar of a committed object.
func (s *Store) Sidecar(dst ports.Destination) (Sidecar, error) {
	p, err := s.path(dst)
	if err != nil {
		return Sidecar{}, err
	}
	return loadSidecar(p + metaSuffix)
}

type sink struct {
	store    *Store
	dst      ports.Destination
	settings ports.ContentSettings
	file     *os.File
	partial  string
	final    string
	written  int64
	done     bool
}

func (k *sink) Append(ctx context.Context, p []byte) error {
	if k.done {
		return domain.ErrSinkClosed
	}
	n, err := k.file.Write(p)
	k.written += int64(n)
	return err
}

// Commit syncs the partial file, writes the sidecar and renames the data
// into place.
func (k *sink) Commit(ctx context.Context, metadata map[string]string) (ports.ObjectHandle, error) {
	if k.done {
		return nil, domain.ErrSinkClosed
	}
	k.done = true

	if err := k.file.Sync(); err != nil {
		k.discard()
		return nil, err
	}
	if err := k.file.Close(); err != nil {
		k.discard()
		return nil, err
	}

	sc := Sidecar{
		ContentType:     k.settings.ContentType,
		ContentEncoding: k.settings.ContentEncoding,
		Size:            k.written,
		Metadata:        metadata,
	}
	if err := saveSidecar(k.final+metaSuffix, sc); err != nil {
		k.discard()
		return nil, err
	}
	if err := os.Rename(k.partial, k.final); err != nil {
		k.discard()
		return nil, err
	}

	k.store.logger.Debug("object renamed into place",
		ports.String("path", k.final),
		ports.Int64("bytes", k.written),
	)
	return &handle{dst: k.dst, path: k.final}, nil
}

func (k *sink) Abort(ctx context.Context) error {
	if k.done {
		return nil
	}
	k.done = true
	_ = k.file.Close()
	return os.Remove(k.partial)
}

func (k *sink) discard() {
	_ = k.file.Close()
	_ = os.Remove(k.partial)
}

type handle struct {
	dst  ports.Destination
	path string
}

func (h *handle) Destination() ports.Destination { return h.dst }

func (h *handle) Committed() bool { return true }

// URI returns a file:// URI. Local files carry no access token.
func (h *handle) URI(ctx context.Context, withToken bool) (string, error) {
	abs, err := filepath.Abs(h.path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// ParseURI maps a file:// URI under root back to a destination.
func ParseURI(root, raw string) (ports.Destination, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ports.Destination{}, err
	}
	if u.Scheme != "file" {
		return ports.Destination{}, fmt.Errorf("%w: not a file URI: %s", domain.ErrInvalidConfig, raw)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ports.Destination{}, err
	}
	rel, err := filepath.Rel(absRoot, filepath.FromSlash(u.Path))
	if err != nil {
		return ports.Destination{}, err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || parts[0] == ".." {
		return ports.Destination{}, fmt.Errorf("%w: %s is not under %s", domain.ErrInvalidConfig, raw, root)
	}
	return ports.Destination{Container: parts[0], Blob: parts[1]}, nil
}

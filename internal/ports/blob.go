package ports

import (
	"context"
)

// Content types reported alongside uploaded objects.
const (
	ContentTypeJSON  = "application/json"
	EncodingGzip     = "gzip"
	EncodingIdentity = "identity"

	// Header-style metadata keys understood by S3-compatible stores.
	MetadataContentType     = "Content-Type"
	MetadataContentEncoding = "Content-Encoding"
)

// Destination addresses an object inside a store.
type Destination struct {
	// Container groups objects (a bucket prefix, directory or container).
	Container string

	// Blob is the object name inside the container.
	Blob string

	// Explicit is true when the caller supplied its own storage rather than
	// relying on storage discovered through the owning workspace.
	Explicit bool
}

// String returns "container/blob".
func (d Destination) String() string {
	return d.Container + "/" + d.Blob
}

// ContentSettings describe how the object's bytes are encoded.
type ContentSettings struct {
	ContentType     string
	ContentEncoding string
}

// BlobStore opens sinks for new objects and reads sealed objects back.
type BlobStore interface {
	// Create prepares a new object at dst. No bytes are visible at dst until
	// the returned sink is committed.
	Create(ctx context.Context, dst Destination, settings ContentSettings) (BlobSink, error)

	// Download returns the bytes of a committed object, exactly as appended.
	Download(ctx context.Context, dst Destination) ([]byte, error)
}

// BlobSink accepts the chunks of one object in order and seals it.
// A sink is owned by a single goroutine and is not safe for concurrent use.
type BlobSink interface {
	// Append adds a chunk after every previously appended chunk.
	// The sink must not retain p after returning.
	Append(ctx context.Context, p []byte) error

	// Commit seals the object with the given metadata. It must be called
	// exactly once, after all Append calls.
	Commit(ctx context.Context, metadata map[string]string) (ObjectHandle, error)

	// Abort discards a partially written object. Calling Abort after a
	// successful Commit is a no-op.
	Abort(ctx context.Context) error
}

// ObjectHandle refers to a committed object.
type ObjectHandle interface {
	// Destination returns where the object lives.
	Destination() Destination

	// Committed reports whether the object has been sealed.
	Committed() bool

	// URI returns the object's addressable location. When withToken is set
	// the URI carries a short-lived read credential, if the store has one.
	URI(ctx context.Context, withToken bool) (string, error)
}

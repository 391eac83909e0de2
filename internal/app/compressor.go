package app

import (
	"bytes"

	"github.com/klauspost/compress/gzip"

	"github.com/bft-labs/termstream/internal/domain"
	"github.com/bft-labs/termstream/internal/ports"
)

// Stage buffers rendered document bytes until they are flushed as a chunk.
// A stage is owned by one worker and never shared.
type Stage interface {
	// Write accepts rendered document bytes.
	Write(p []byte) (int, error)

	// Buffered returns the number of output bytes ready to flush.
	Buffered() int

	// Flush returns everything buffered so far, keeping the stream open.
	Flush() ([]byte, error)

	// Finish ends the stream and returns the remaining bytes. A stage
	// accepts no writes afterwards.
	Finish() ([]byte, error)

	// Close releases the stage. It is safe to call more than once and
	// after Finish.
	Close() error

	// ContentEncoding reports the encoding of the produced bytes.
	ContentEncoding() string
}

// NewStage returns a gzip stage when compress is set, else a pass-through.
func NewStage(compress bool) Stage {
	if compress {
		return &gzipStage{}
	}
	return &identityStage{}
}

// take copies out and resets buf.
func take(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	buf.Reset()
	return out
}

// gzipStage keeps a single gzip member open for the whole document.
type gzipStage struct {
	out      bytes.Buffer
	zw       *gzip.Writer
	finished bool
}

func (s *gzipStage) writer() *gzip.Writer {
	if s.zw == nil {
		s.zw = gzip.NewWriter(&s.out)
	}
	return s.zw
}

func (s *gzipStage) Write(p []byte) (int, error) {
	if s.finished {
		return 0, domain.ErrSinkClosed
	}
	return s.writer().Write(p)
}

func (s *gzipStage) Buffered() int { return s.out.Len() }

// Flush sync-flushes pending deflate input so the returned bytes are a
// prefix of the final member.
func (s *gzipStage) Flush() ([]byte, error) {
	if s.finished {
		return nil, domain.ErrSinkClosed
	}
	if err := s.writer().Flush(); err != nil {
		return nil, err
	}
	return take(&s.out), nil
}

func (s *gzipStage) Finish() ([]byte, error) {
	if s.finished {
		return nil, domain.ErrSinkClosed
	}
	zw := s.writer()
	s.finished = true
	if err := zw.Close(); err != nil {
		return nil, err
	}
	s.zw = nil
	return take(&s.out), nil
}

func (s *gzipStage) Close() error {
	s.finished = true
	if s.zw != nil {
		// Discard the trailer of an unfinished stream.
		_ = s.zw.Close()
		s.zw = nil
	}
	s.out.Reset()
	return nil
}

func (s *gzipStage) ContentEncoding() string { return ports.EncodingGzip }

// identityStage passes bytes through unchanged.
type identityStage struct {
	out      bytes.Buffer
	finished bool
}

func (s *identityStage) Write(p []byte) (int, error) {
	if s.finished {
		return 0, domain.ErrSinkClosed
	}
	return s.out.Write(p)
}

func (s *identityStage) Buffered() int { return s.out.Len() }

func (s *identityStage) Flush() ([]byte, error) {
	if s.finished {
		return nil, domain.ErrSinkClosed
	}
	return take(&s.out), nil
}

func (s *identityStage) Finish() ([]byte, error) {
	if s.finished {
		return nil, domain.ErrSinkClosed
	}
	s.finished = true
	return take(&s.out), nil
}

func (s *identityStage) Close() error {
	s.finished = true
	s.out.Reset()
	return nil
}

func (s *identityStage) ContentEncoding() string { return ports.EncodingIdentity }

// Package source reads terms from JSON Lines input.
//
// Each line is a term, {"c": 1.5, "ids": [0, 3]}, or the end marker
// {"end": true}. Blank lines are ignored.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/bft-labs/termstream/internal/domain"
)

// DefaultBatchSize is the number of terms handed to a Sink at once.
const DefaultBatchSize = 1000

const readSize = 64 << 10

// ErrMalformedLine is returned for a line that is neither a term nor the
// end marker.
var ErrMalformedLine = errors.New("source: malformed line")

// Sink receives decoded terms. The slice is not reused after the call.
type Sink func(terms []domain.Term) error

type lineJSON struct {
	C   *float64 `json:"c"`
	IDs []int    `json:"ids"`
	End bool     `json:"end"`
}

// decoder splits input into lines and batches the decoded terms. A line
// split across two reads is held until its newline arrives.
type decoder struct {
	batchSize int
	partial   []byte
	line      int
	batch     []domain.Term
	total     int
}

func newDecoder(batchSize int) *decoder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &decoder{batchSize: batchSize}
}

// feed decodes every complete line in data. It reports end once the end
// marker is seen; anything after it is ignored.
func (d *decoder) feed(data []byte, sink Sink) (end bool, err error) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			d.partial = append(d.partial, data...)
			return false, nil
		}
		line := data[:i]
		data = data[i+1:]
		if len(d.partial) > 0 {
			line = append(d.partial, line...)
			d.partial = d.partial[:0]
		}
		end, err := d.decodeLine(line, sink)
		if err != nil || end {
			return end, err
		}
	}
	return false, nil
}

// finish decodes a final line without a trailing newline.
func (d *decoder) finish(sink Sink) (end bool, err error) {
	if len(d.partial) == 0 {
		return false, nil
	}
	line := d.partial
	d.partial = nil
	return d.decodeLine(line, sink)
}

func (d *decoder) decodeLine(line []byte, sink Sink) (bool, error) {
	d.line++
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false, nil
	}

	var raw lineJSON
	if err := json.Unmarshal(line, &raw); err != nil {
		return false, fmt.Errorf("%w %d: %v", ErrMalformedLine, d.line, err)
	}
	if raw.End {
		return true, nil
	}
	if raw.C == nil {
		return false, fmt.Errorf("%w %d: missing coefficient", ErrMalformedLine, d.line)
	}

	d.batch = append(d.batch, domain.NewTerm(*raw.C, raw.IDs...))
	if len(d.batch) >= d.batchSize {
		return false, d.flush(sink)
	}
	return false, nil
}

// flush hands any batched terms to sink.
func (d *decoder) flush(sink Sink) error {
	if len(d.batch) == 0 {
		return nil
	}
	batch := d.batch
	d.batch = nil
	d.total += len(batch)
	return sink(batch)
}

// ReadAll decodes r until EOF or the end marker, calling sink with batches
// of at most batchSize terms. It returns the number of terms delivered.
func ReadAll(ctx context.Context, r io.Reader, batchSize int, sink Sink) (int, error) {
	d := newDecoder(batchSize)
	buf := make([]byte, readSize)
	for {
		if err := ctx.Err(); err != nil {
			return d.total, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			end, err := d.feed(buf[:n], sink)
			if err != nil {
				return d.total, err
			}
			if end {
				return d.total, d.flush(sink)
			}
		}

		if errors.Is(readErr, io.EOF) {
			if _, err := d.finish(sink); err != nil {
				return d.total, err
			}
			return d.total, d.flush(sink)
		}
		if readErr != nil {
			return d.total, fmt.Errorf("read terms: %w", readErr)
		}
	}
}

// Collect reads every term from r into memory.
func Collect(ctx context.Context, r io.Reader) ([]domain.Term, error) {
	var terms []domain.Term
	_, err := ReadAll(ctx, r, DefaultBatchSize, func(batch []domain.Term) error {
		terms = append(terms, batch...)
		return nil
	})
	return terms, err
}

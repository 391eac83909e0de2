package app

import (
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/bft-labs/termstream/internal/domain"
)

const documentTrailer = "]}}"

// ChunkAssembler renders the cost_function document incrementally into w.
// The header is written with the first fold, or by Close when no terms
// were folded.
type ChunkAssembler struct {
	w           io.Writer
	problemType string
	initConfig  []byte
	version     string

	started      bool
	closed       bool
	termsWritten int
	pendingTerms int

	scratch bytes.Buffer
}

// NewChunkAssembler prepares an assembler that writes to w. The initial
// configuration is rendered up front so failures surface before any byte
// is written.
func NewChunkAssembler(w io.Writer, problemType domain.ProblemType, initConfig map[string]int) (*ChunkAssembler, error) {
	if !problemType.Valid() {
		return nil, fmt.Errorf("%w: unknown problem type %s", domain.ErrSerialization, problemType)
	}

	a := &ChunkAssembler{
		w:           w,
		problemType: problemType.String(),
		version:     domain.Version(initConfig),
	}
	if len(initConfig) > 0 {
		raw, err := json.Marshal(initConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: initial configuration: %v", domain.ErrSerialization, err)
		}
		a.initConfig = raw
	}
	return a, nil
}

func (a *ChunkAssembler) writeHeader() {
	a.scratch.WriteString(`{"cost_function":{"version":"`)
	a.scratch.WriteString(a.version)
	a.scratch.WriteString(`","type":"`)
	a.scratch.WriteString(a.problemType)
	a.scratch.WriteString(`",`)
	if a.initConfig != nil {
		a.scratch.WriteString(`"initial_configuration":`)
		a.scratch.Write(a.initConfig)
		a.scratch.WriteByte(',')
	}
	a.scratch.WriteString(`"terms":[`)
	a.started = true
}

// Fold appends terms to the document, preceded by the header on first use.
// Nothing is written if any term fails to render.
func (a *ChunkAssembler) Fold(terms []domain.Term) error {
	if a.closed {
		return domain.ErrSinkClosed
	}
	a.scratch.Reset()
	if !a.started {
		a.writeHeader()
	}
	written := a.termsWritten
	for _, t := range terms {
		raw, err := t.MarshalJSON()
		if err != nil {
			a.scratch.Reset()
			return err
		}
		if written > 0 {
			a.scratch.WriteByte(',')
		}
		a.scratch.Write(raw)
		written++
	}
	if _, err := a.w.Write(a.scratch.Bytes()); err != nil {
		return err
	}
	a.termsWritten = written
	a.pendingTerms += len(terms)
	return nil
}

// Close writes the header if it is still missing, then the trailer.
func (a *ChunkAssembler) Close() error {
	if a.closed {
		return nil
	}
	a.scratch.Reset()
	if !a.started {
		a.writeHeader()
	}
	a.scratch.WriteString(documentTrailer)
	if _, err := a.w.Write(a.scratch.Bytes()); err != nil {
		return err
	}
	a.closed = true
	return nil
}

// Started reports whether the header has been written.
func (a *ChunkAssembler) Started() bool { return a.started }

// TermsWritten returns the number of terms written so far.
func (a *ChunkAssembler) TermsWritten() int { return a.termsWritten }

// PendingTerms returns the number of terms folded since the last ResetPending.
func (a *ChunkAssembler) PendingTerms() int { return a.pendingTerms }

// ResetPending marks all folded terms as flushed.
func (a *ChunkAssembler) ResetPending() { a.pendingTerms = 0 }

package domain

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Cost function format versions.
const (
	VersionPlain      = "1.0"
	VersionWithConfig = "1.1"
)

// Problem is the fully materialized form of an optimization problem, as
// produced by downloading a sealed object.
type Problem struct {
	Name                 string
	Type                 ProblemType
	InitialConfiguration map[string]int
	Terms                []Term
}

type problemJSON struct {
	Metadata     *problemMetaJSON `json:"metadata,omitempty"`
	CostFunction costFunctionJSON `json:"cost_function"`
}

type problemMetaJSON struct {
	Name string `json:"name"`
}

type costFunctionJSON struct {
	Version              string         `json:"version"`
	Type                 ProblemType    `json:"type"`
	InitialConfiguration map[string]int `json:"initial_configuration,omitempty"`
	Terms                []Term         `json:"terms"`
}

// Version returns the cost function version implied by the problem.
func Version(initialConfiguration map[string]int) string {
	if len(initialConfiguration) > 0 {
		return VersionWithConfig
	}
	return VersionPlain
}

// Serialize renders the problem as a JSON document.
func (p *Problem) Serialize() ([]byte, error) {
	terms := p.Terms
	if terms == nil {
		terms = []Term{}
	}
	doc := problemJSON{
		CostFunction: costFunctionJSON{
			Version:              Version(p.InitialConfiguration),
			Type:                 p.Type,
			InitialConfiguration: p.InitialConfiguration,
			Terms:                terms,
		},
	}
	if p.Name != "" {
		doc.Metadata = &problemMetaJSON{Name: p.Name}
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return b, nil
}

// Evaluate returns the cost of the given variable assignment.
func (p *Problem) Evaluate(configuration map[int]int) (float64, error) {
	var total float64
	for i, t := range p.Terms {
		v, err := t.Evaluate(configuration)
		if err != nil {
			return 0, fmt.Errorf("term %d: %w", i, err)
		}
		total += v
	}
	return total, nil
}

// Deserialize parses a problem document, plain or gzip-compressed.
// A non-empty name overrides the name stored in the document.
func Deserialize(data []byte, name string) (*Problem, error) {
	if isGzip(data) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("decompress: %w", err)
		}
		data = plain
	}

	var doc problemJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}

	p := &Problem{
		Name:                 name,
		Type:                 doc.CostFunction.Type,
		InitialConfiguration: doc.CostFunction.InitialConfiguration,
		Terms:                doc.CostFunction.Terms,
	}
	if p.Name == "" && doc.Metadata != nil {
		p.Name = doc.Metadata.Name
	}
	if p.Terms == nil {
		p.Terms = []Term{}
	}
	return p, nil
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

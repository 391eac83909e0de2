package domain

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// ProblemType tags the kind of cost function a problem describes.
type ProblemType int

const (
	// Ising problems use spin variables in {-1, 1}.
	Ising ProblemType = iota
	// PUBO problems use binary variables in {0, 1}.
	PUBO
)

// String returns the wire name of the problem type.
func (p ProblemType) String() string {
	switch p {
	case Ising:
		return "ising"
	case PUBO:
		return "pubo"
	default:
		return fmt.Sprintf("ProblemType(%d)", int(p))
	}
}

// Valid reports whether p is a known problem type.
func (p ProblemType) Valid() bool {
	return p == Ising || p == PUBO
}

// ParseProblemType parses a wire name, case-insensitively.
func ParseProblemType(s string) (ProblemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ising":
		return Ising, nil
	case "pubo":
		return PUBO, nil
	default:
		return 0, fmt.Errorf("%w: unknown problem type %q", ErrInvalidConfig, s)
	}
}

// MarshalJSON encodes the problem type as its wire name.
func (p ProblemType) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrSerialization, p)
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a wire name.
func (p *ProblemType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseProblemType(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

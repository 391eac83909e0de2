package domain

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Term is one summand of the cost function: a coefficient multiplied by the
// product of the variables named by its indices.
// A Term is immutable once constructed.
type Term struct {
	c   float64
	ids []int
}

// termJSON is the wire shape of a term: {"c": <number>, "ids": [<int>...]}.
type termJSON struct {
	C   float64 `json:"c"`
	IDs []int   `json:"ids"`
}

// NewTerm creates a term. The indices slice is copied.
func NewTerm(c float64, indices ...int) Term {
	ids := make([]int, len(indices))
	copy(ids, indices)
	return Term{c: c, ids: ids}
}

// Coefficient returns the term's weight.
func (t Term) Coefficient() float64 {
	return t.c
}

// Indices returns a copy of the variable indices.
func (t Term) Indices() []int {
	ids := make([]int, len(t.ids))
	copy(ids, t.ids)
	return ids
}

// Degree returns the number of variables coupled by the term.
func (t Term) Degree() int {
	return len(t.ids)
}

// Equal reports whether two terms have the same coefficient and index order.
func (t Term) Equal(o Term) bool {
	if t.c != o.c || len(t.ids) != len(o.ids) {
		return false
	}
	for i := range t.ids {
		if t.ids[i] != o.ids[i] {
			return false
		}
	}
	return true
}

// Evaluate returns c times the product of the configured variable values.
func (t Term) Evaluate(configuration map[int]int) (float64, error) {
	multiplier := 1.0
	for _, id := range t.ids {
		v, ok := configuration[id]
		if !ok {
			return 0, fmt.Errorf("variable %d missing from configuration", id)
		}
		multiplier *= float64(v)
	}
	return multiplier * t.c, nil
}

// String implements fmt.Stringer.
func (t Term) String() string {
	return fmt.Sprintf("{c:%v ids:%v}", t.c, t.ids)
}

// MarshalJSON renders the term in its wire shape. Non-finite coefficients
// fail with ErrSerialization.
func (t Term) MarshalJSON() ([]byte, error) {
	ids := t.ids
	if ids == nil {
		ids = []int{}
	}
	b, err := json.Marshal(termJSON{C: t.c, IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("%w: term %v: %v", ErrSerialization, t, err)
	}
	return b, nil
}

// UnmarshalJSON parses the wire shape.
func (t *Term) UnmarshalJSON(data []byte) error {
	var raw termJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = NewTerm(raw.C, raw.IDs...)
	return nil
}

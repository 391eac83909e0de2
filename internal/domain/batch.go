package domain

// TermBatch is an ordered group of terms handed from the producer to the
// uploader, or the end-of-stream marker.
// Ownership transfers with the batch: the producer must not touch the terms
// after enqueuing it.
type TermBatch struct {
	terms []Term
	end   bool
}

// EndOfStream signals that no more batches will arrive.
var EndOfStream = TermBatch{end: true}

// NewTermBatch wraps terms in a batch.
func NewTermBatch(terms []Term) TermBatch {
	return TermBatch{terms: terms}
}

// Terms returns the batch's terms in order.
func (b TermBatch) Terms() []Term {
	return b.terms
}

// Len returns the number of terms in the batch.
func (b TermBatch) Len() int {
	return len(b.terms)
}

// IsEnd reports whether b is the end-of-stream marker.
func (b TermBatch) IsEnd() bool {
	return b.end
}

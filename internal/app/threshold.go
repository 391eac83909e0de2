package app

// Default flush thresholds.
const (
	DefaultTermCountThreshold = 1000
	DefaultSizeThresholdBytes = 10_000_000
)

// ThresholdPolicy decides when accumulated terms are flushed to the sink.
type ThresholdPolicy struct {
	// TermCount flushes once this many terms are pending.
	TermCount int

	// SizeBytes flushes once this many bytes are buffered, measured after
	// compression when it is enabled.
	SizeBytes int
}

// DefaultThresholdPolicy returns the policy with default thresholds.
func DefaultThresholdPolicy() ThresholdPolicy {
	return ThresholdPolicy{
		TermCount: DefaultTermCountThreshold,
		SizeBytes: DefaultSizeThresholdBytes,
	}
}

// ShouldFlush reports whether termCount pending terms or byteSize buffered
// bytes cross either threshold. Nothing pending never flushes.
func (p ThresholdPolicy) ShouldFlush(termCount, byteSize int) bool {
	if termCount <= 0 && byteSize <= 0 {
		return false
	}
	if p.TermCount > 0 && termCount >= p.TermCount {
		return true
	}
	return p.SizeBytes > 0 && byteSize >= p.SizeBytes
}

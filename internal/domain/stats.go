package domain

import (
	"strconv"
)

// Metadata keys written on commit.
const (
	MetaType        = "type"
	MetaMaxCoupling = "max_coupling"
	MetaAvgCoupling = "avg_coupling"
	MetaMinCoupling = "min_coupling"
	MetaNumTerms    = "num_terms"
)

// ProblemStats aggregates coupling statistics over every term added to a
// problem. It has a single writer: the producer updates it before handing
// each batch to the uploader.
type ProblemStats struct {
	Type        ProblemType
	NumTerms    int
	MinCoupling int
	MaxCoupling int
	AvgCoupling float64

	totalCouplers int
}

// NewProblemStats returns empty statistics for the given problem type.
func NewProblemStats(t ProblemType) ProblemStats {
	return ProblemStats{Type: t}
}

// Observe folds a batch of terms into the statistics.
// The average is recomputed as total couplers over total terms.
func (s *ProblemStats) Observe(terms []Term) {
	for _, t := range terms {
		n := t.Degree()
		if s.NumTerms == 0 || n < s.MinCoupling {
			s.MinCoupling = n
		}
		if n > s.MaxCoupling {
			s.MaxCoupling = n
		}
		s.totalCouplers += n
		s.NumTerms++
	}
	if s.NumTerms > 0 {
		s.AvgCoupling = float64(s.totalCouplers) / float64(s.NumTerms)
	}
}

// Metadata renders the statistics as blob metadata.
func (s ProblemStats) Metadata() map[string]string {
	return map[string]string{
		MetaType:        s.Type.String(),
		MetaMaxCoupling: strconv.Itoa(s.MaxCoupling),
		MetaAvgCoupling: strconv.FormatFloat(s.AvgCoupling, 'f', -1, 64),
		MetaMinCoupling: strconv.Itoa(s.MinCoupling),
		MetaNumTerms:    strconv.Itoa(s.NumTerms),
	}
}

// MergeMetadata returns the statistics metadata overlaid with extra.
// Keys in extra take precedence.
func (s ProblemStats) MergeMetadata(extra map[string]string) map[string]string {
	md := s.Metadata()
	for k, v := range extra {
		md[k] = v
	}
	return md
}

package logging

import "strings"

// ProgressSampler suppresses repetitive per-window progress logs while keeping
// a line each time the completed share crosses a bucket boundary or the source
// changes.
type ProgressSampler struct {
	bucketSize float64
	lastSource string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the source changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether progress for done of total windows should be
// logged. A non-positive total means the size is unknown and only source
// changes are reported.
func (s *ProgressSampler) ShouldLog(source string, done, total int) bool {
	if s == nil {
		return true
	}
	source = strings.TrimSpace(source)
	emit := false
	if source != s.lastSource {
		s.lastSource = source
		s.lastBucket = -1
		emit = true
	}
	if total <= 0 {
		return emit
	}
	percent := float64(done) / float64(total) * 100
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastSource = ""
	s.lastBucket = -1
}

package tracks

// Stats accumulates run statistics for a channel's primary measurement.
type Stats struct {
	Max            float64 `json:"max"`
	Average        float64 `json:"average"`
	Count          int     `json:"count"`
	SegmentAverage float64 `json:"segment_average"`
	SegmentCount   int     `json:"segment_count"`
}

// Add folds v into the running and segment averages.
func (s *Stats) Add(v float64) {
	if v > s.Max {
		s.Max = v
	}
	s.Count++
	s.Average += (v - s.Average) / float64(s.Count)
	s.SegmentCount++
	s.SegmentAverage += (v - s.SegmentAverage) / float64(s.SegmentCount)
}

// ResetSegment clears the segment accumulators only.
func (s *Stats) ResetSegment() {
	s.SegmentAverage = 0
	s.SegmentCount = 0
}

package postprocess

import (
	"sort"

	"github.com/danastri/meetscribe/internal/providers/stt"
)

// Gap is an inter-segment silence longer than the configured threshold.
type Gap struct {
	GapStart float64 `json:"gap_start"`
	GapEnd   float64 `json:"gap_end"`
	Duration float64 `json:"duration"`
}

// Report carries the quality metrics persisted next to a transcript for
// human review.
type Report struct {
	Coverage              float64       `json:"coverage"`
	Gaps                  []Gap         `json:"missing_speech_segments"`
	LowConfidenceSegments []stt.Segment `json:"low_confidence_segments"`
}

// Coverage is the fraction of the total audio duration covered by retained
// segments. Zero duration yields zero coverage rather than a division error.
func Coverage(segments []Segment, totalDuration float64) float64 {
	if totalDuration <= 0 {
		return 0
	}
	var spoken float64
	for _, s := range segments {
		spoken += s.End - s.Start
	}
	return spoken / totalDuration
}

// DetectGaps reports every pair of consecutive (time-sorted) segments whose
// inter-segment silence exceeds threshold seconds, in time order.
func DetectGaps(segments []Segment, threshold float64) []Gap {
	sorted := make([]Segment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var gaps []Gap
	for i := 0; i+1 < len(sorted); i++ {
		gap := sorted[i+1].Start - sorted[i].End
		if gap > threshold {
			gaps = append(gaps, Gap{
				GapStart: sorted[i].End,
				GapEnd:   sorted[i+1].Start,
				Duration: gap,
			})
		}
	}
	return gaps
}

// LowConfidence returns the raw segments below the stricter suspicion floor,
// verbatim, for human review.
func LowConfidence(raw []stt.Segment, floor float64) []stt.Segment {
	var suspicious []stt.Segment
	for _, s := range raw {
		if s.AvgLogprob < floor {
			suspicious = append(suspicious, s)
		}
	}
	return suspicious
}

// QA computes the full quality report for a processed transcript.
func QA(cfg Config, cleaned []Segment, raw []stt.Segment, totalDuration float64) Report {
	return Report{
		Coverage:              Coverage(cleaned, totalDuration),
		Gaps:                  DetectGaps(cleaned, cfg.GapThreshold),
		LowConfidenceSegments: LowConfidence(raw, cfg.SuspicionLogprob),
	}
}

package postprocess

import "github.com/danastri/meetscribe/internal/providers/diarize"

// AssignSpeakers attributes each segment to the first diarization turn whose
// interval overlaps it. Segments no turn overlaps keep UnknownSpeaker.
// Overlap is strict: touching endpoints do not count.
func AssignSpeakers(segments []Segment, turns []diarize.Turn) []Segment {
	for i := range segments {
		segments[i].Speaker = UnknownSpeaker

		for _, turn := range turns {
			overlap := min(segments[i].End, turn.End) - max(segments[i].Start, turn.Start)
			if overlap > 0 {
				segments[i].Speaker = turn.Speaker
				break
			}
		}
	}
	return segments
}

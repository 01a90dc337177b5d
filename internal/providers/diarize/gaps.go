package diarize

import (
	"fmt"

	"github.com/danastri/meetscribe/internal/providers/stt"
)

// TurnsFromGaps is a heuristic fallback for deployments without a diarization
// service: alternate between two speaker labels whenever the silence between
// consecutive recognized segments exceeds gapThreshold seconds. Crude, but it
// keeps the transcript readable when the real engine is unavailable.
func TurnsFromGaps(segments []stt.Segment, gapThreshold float64) []Turn {
	if len(segments) == 0 {
		return nil
	}

	speaker := 1
	turns := []Turn{{
		Start:   segments[0].Start,
		End:     segments[0].End,
		Speaker: speakerLabel(speaker),
	}}

	for _, s := range segments[1:] {
		prev := &turns[len(turns)-1]
		if s.Start-prev.End > gapThreshold {
			if speaker == 1 {
				speaker = 2
			} else {
				speaker = 1
			}
			turns = append(turns, Turn{Start: s.Start, End: s.End, Speaker: speakerLabel(speaker)})
			continue
		}
		if s.End > prev.End {
			prev.End = s.End
		}
	}
	return turns
}

func speakerLabel(i int) string {
	return fmt.Sprintf("Speaker %d", i)
}

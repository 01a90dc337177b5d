package diarize

import "context"

// Turn is one attributed speech interval produced by a diarization engine.
// Turns are consumed only by segment post-processing and never persisted on
// their own.
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// Diarizer attributes speech intervals in an audio file to speaker labels.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]Turn, error)
}

// MergeTurns collapses consecutive turns by the same speaker into one
// interval. Engines are inconsistent about doing this themselves.
func MergeTurns(turns []Turn) []Turn {
	if len(turns) == 0 {
		return nil
	}

	merged := []Turn{turns[0]}
	for _, t := range turns[1:] {
		last := &merged[len(merged)-1]
		if t.Speaker == last.Speaker && t.Start <= last.End {
			if t.End > last.End {
				last.End = t.End
			}
			continue
		}
		merged = append(merged, t)
	}
	return merged
}

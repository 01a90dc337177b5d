package diarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danastri/meetscribe/internal/providers/stt"
)

func TestMergeTurns_CollapsesConsecutiveSameSpeaker(t *testing.T) {
	turns := []Turn{
		{Start: 0, End: 2, Speaker: "SPEAKER_00"},
		{Start: 2, End: 5, Speaker: "SPEAKER_00"},
		{Start: 5, End: 7, Speaker: "SPEAKER_01"},
		{Start: 7, End: 9, Speaker: "SPEAKER_00"},
	}

	merged := MergeTurns(turns)
	require.Len(t, merged, 3)
	assert.Equal(t, Turn{Start: 0, End: 5, Speaker: "SPEAKER_00"}, merged[0])
	assert.Equal(t, Turn{Start: 5, End: 7, Speaker: "SPEAKER_01"}, merged[1])
	assert.Equal(t, Turn{Start: 7, End: 9, Speaker: "SPEAKER_00"}, merged[2])
}

func TestMergeTurns_Empty(t *testing.T) {
	assert.Nil(t, MergeTurns(nil))
}

func TestTurnsFromGaps_AlternatesOnSilence(t *testing.T) {
	segs := []stt.Segment{
		{Start: 0, End: 4},
		{Start: 4.5, End: 8}, // small gap, same speaker
		{Start: 11, End: 14}, // 3s gap, switch
		{Start: 18, End: 20}, // 4s gap, switch back
	}

	turns := TurnsFromGaps(segs, 2.0)
	require.Len(t, turns, 3)
	assert.Equal(t, "Speaker 1", turns[0].Speaker)
	assert.Equal(t, 8.0, turns[0].End)
	assert.Equal(t, "Speaker 2", turns[1].Speaker)
	assert.Equal(t, "Speaker 1", turns[2].Speaker)
}

func TestTurnsFromGaps_Empty(t *testing.T) {
	assert.Nil(t, TurnsFromGaps(nil, 2.0))
}

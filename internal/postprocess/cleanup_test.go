package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danastri/meetscribe/internal/providers/stt"
)

func TestClean_DropsLowConfidenceAndNonSpeech(t *testing.T) {
	cfg := DefaultConfig()
	raw := []stt.Segment{
		{Start: 0, End: 2, Text: "jadi begini", AvgLogprob: -0.4, NoSpeechProb: 0.1},
		{Start: 2, End: 4, Text: "garbled", AvgLogprob: -1.5, NoSpeechProb: 0.1},  // below logprob floor
		{Start: 4, End: 6, Text: "breathing", AvgLogprob: -0.3, NoSpeechProb: 0.9}, // above no-speech ceiling
	}

	cleaned := Clean(cfg, raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "Jadi begini.", cleaned[0].Text)
	assert.Equal(t, UnknownSpeaker, cleaned[0].Speaker)
}

func TestClean_StripsFillersAndDropsEmptied(t *testing.T) {
	cfg := DefaultConfig()
	raw := []stt.Segment{
		{Start: 0, End: 1, Text: "eee hmm", AvgLogprob: -0.1},
		{Start: 1, End: 3, Text: "anu ya kita lanjutkan", AvgLogprob: -0.1},
	}

	cleaned := Clean(cfg, raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, "Kita lanjutkan.", cleaned[0].Text)
}

func TestClean_RoundsTimestamps(t *testing.T) {
	cfg := DefaultConfig()
	raw := []stt.Segment{{Start: 1.23456, End: 2.98765, Text: "ok", AvgLogprob: -0.1}}

	cleaned := Clean(cfg, raw)
	require.Len(t, cleaned, 1)
	assert.Equal(t, 1.23, cleaned[0].Start)
	assert.Equal(t, 2.99, cleaned[0].End)
}

func TestSentenceCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"halo semua", "Halo semua."},
		{"sudah selesai.", "Sudah selesai."},
		{"benarkah?", "Benarkah?"},
		{"  spasi  ", "Spasi."},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sentenceCase(tt.in))
	}
}

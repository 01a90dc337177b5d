// Package postprocess turns raw recognizer output into a usable transcript:
// confidence filtering, filler removal, sentence casing, speaker alignment
// against diarization turns, and quality-assurance metrics.
package postprocess

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/danastri/meetscribe/internal/providers/stt"
)

// UnknownSpeaker is the label a segment keeps until diarization assigns one.
const UnknownSpeaker = "UNKNOWN"

// Segment is a cleaned, speaker-attributed transcript span. This is the shape
// persisted on the transcript record.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
}

// Config holds the tunable post-processing thresholds. These are deployment
// knobs, not design constants.
type Config struct {
	// MinAvgLogprob drops segments the recognizer was unsure about.
	MinAvgLogprob float64
	// MaxNoSpeechProb drops segments that are probably not speech at all.
	MaxNoSpeechProb float64
	// SuspicionLogprob is the stricter floor for the low-confidence QA list.
	SuspicionLogprob float64
	// GapThreshold is the silence length (seconds) reported as a gap.
	GapThreshold float64
	// Fillers are stripped verbatim from segment text. Language specific.
	Fillers []string
}

// DefaultConfig returns the thresholds tuned for Indonesian meeting audio.
func DefaultConfig() Config {
	return Config{
		MinAvgLogprob:    -1.2,
		MaxNoSpeechProb:  0.6,
		SuspicionLogprob: -1.4,
		GapThreshold:     2.0,
		Fillers: []string{
			"eee", "ee", "eh", "em", "emm", "hmm", "hmmm",
			"anu ya", "anu tuh", "anu",
			"apa ya", "apa namanya", "apa itu", "apa tadi",
		},
	}
}

// Clean filters raw segments on the confidence proxies, strips fillers, and
// normalizes each surviving text into sentence form. Speaker defaults to
// UNKNOWN; alignment assigns real labels afterwards.
func Clean(cfg Config, raw []stt.Segment) []Segment {
	var cleaned []Segment
	for _, s := range raw {
		if s.AvgLogprob < cfg.MinAvgLogprob {
			continue
		}
		if s.NoSpeechProb > cfg.MaxNoSpeechProb {
			continue
		}

		text := removeFillers(s.Text, cfg.Fillers)
		text = sentenceCase(text)
		if text == "" {
			continue
		}

		cleaned = append(cleaned, Segment{
			Start:   round2(s.Start),
			End:     round2(s.End),
			Text:    text,
			Speaker: UnknownSpeaker,
		})
	}
	return cleaned
}

func removeFillers(text string, fillers []string) string {
	for _, f := range fillers {
		text = strings.ReplaceAll(text, f, "")
	}
	return strings.TrimSpace(text)
}

// sentenceCase uppercases the first letter and guarantees trailing sentence
// punctuation.
func sentenceCase(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	r, size := utf8.DecodeRuneInString(text)
	text = string(unicode.ToUpper(r)) + text[size:]

	switch text[len(text)-1] {
	case '.', '!', '?':
	default:
		text += "."
	}
	return text
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package stt

import "context"

// Segment is one recognized span of speech. AvgLogprob and NoSpeechProb are
// the recognizer's confidence proxies; post-processing filters on them.
type Segment struct {
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	AvgLogprob   float64 `json:"avg_logprob"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Result is the full output of one transcription run.
type Result struct {
	Language string    `json:"language"`
	Text     string    `json:"text"`
	Duration float64   `json:"duration"` // total audio duration, seconds
	Segments []Segment `json:"segments"`
}

// Engine transcribes an audio file on disk. language is a forced-language
// hint ("id", "en-US", ...); empty means auto-detect.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string, language string) (*Result, error)
	Close() error
}

package stt

import (
	"context"
	"math"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

// GoogleSpeech is an Engine backed by the Cloud Speech-to-Text API. Segment
// boundaries come from word time offsets; the API's [0,1] confidence is
// mapped onto the log-probability proxy so downstream filtering stays uniform
// across engines.
type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
}

func NewGoogleSpeech(ctx context.Context) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_OGG_OPUS,
		SampleRateHz: 16000,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audioPath string, language string) (*Result, error) {
	if language == "" {
		language = "en-US"
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, err
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   g.Encoding,
			SampleRateHertz:            g.SampleRateHz,
			LanguageCode:               language,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return nil, err
	}

	out := &Result{Language: language}
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}

		seg := Segment{
			Text:       alt.Transcript,
			AvgLogprob: confidenceToLogprob(float64(alt.Confidence)),
		}
		if n := len(alt.Words); n > 0 {
			seg.Start = alt.Words[0].StartTime.AsDuration().Seconds()
			seg.End = alt.Words[n-1].EndTime.AsDuration().Seconds()
		}

		out.Segments = append(out.Segments, seg)
		if out.Text != "" {
			out.Text += " "
		}
		out.Text += alt.Transcript
		if seg.End > out.Duration {
			out.Duration = seg.End
		}
	}
	return out, nil
}

// confidenceToLogprob maps an API confidence in [0,1] to a Whisper-style
// average log probability, clamping zero so filtering never divides by -inf.
func confidenceToLogprob(confidence float64) float64 {
	if confidence < 1e-3 {
		confidence = 1e-3
	}
	return math.Log(confidence)
}

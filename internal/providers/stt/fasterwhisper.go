package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// FasterWhisper talks to a faster-whisper HTTP server (the GPU box runs the
// model once; every worker shares it). The server accepts a multipart upload
// and returns verbose JSON with per-segment confidence proxies.
type FasterWhisper struct {
	BaseURL string
	// Model requested from the server, e.g. "large-v3". Empty uses the
	// server default.
	Model string

	HTTP *http.Client
}

func NewFasterWhisper(baseURL string) *FasterWhisper {
	return &FasterWhisper{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Minute},
	}
}

func (f *FasterWhisper) Close() error { return nil }

type fwResponse struct {
	Language string  `json:"language"`
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		Text         string  `json:"text"`
		AvgLogprob   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func (f *FasterWhisper) Transcribe(ctx context.Context, audioPath string, language string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, err
		}
	}
	if f.Model != "" {
		if err := mw.WriteField("model", f.Model); err != nil {
			return nil, err
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.BaseURL+"/transcribe", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("whisper server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed fwResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	out := &Result{
		Language: parsed.Language,
		Text:     parsed.Text,
		Duration: parsed.Duration,
	}
	for _, s := range parsed.Segments {
		out.Segments = append(out.Segments, Segment{
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			AvgLogprob:   s.AvgLogprob,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return out, nil
}

func (f *FasterWhisper) httpClient() *http.Client {
	if f.HTTP != nil {
		return f.HTTP
	}
	return http.DefaultClient
}

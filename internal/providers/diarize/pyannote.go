package diarize

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

// Pyannote talks to a pyannote.audio diarization HTTP service. The model is
// loaded once in that process; workers share it the same way they share the
// whisper server.
type Pyannote struct {
	BaseURL string
	HTTP    *http.Client
}

func NewPyannote(baseURL string) *Pyannote {
	return &Pyannote{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 30 * time.Minute},
	}
}

func (p *Pyannote) Diarize(ctx context.Context, audioPath string) ([]Turn, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/diarize", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarizer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("diarizer returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var turns []Turn
	if err := json.NewDecoder(resp.Body).Decode(&turns); err != nil {
		return nil, fmt.Errorf("decode diarizer response: %w", err)
	}
	return MergeTurns(turns), nil
}

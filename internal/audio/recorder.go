package audio

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// ErrUnsupportedPlatform is returned when the host has no loopback capture
// backend the recorder knows how to drive. Callers must fail the whole
// session attempt on this error, not retry.
var ErrUnsupportedPlatform = errors.New("no supported audio capture backend on this platform")

const defaultStopTimeout = 5 * time.Second

// Recorder captures system loopback audio to a compressed mono Opus file by
// driving an external ffmpeg process. Start and Stop are idempotent: starting
// a running recorder and stopping a non-started one are both no-ops.
type Recorder struct {
	// Binary overrides the capture binary, defaults to "ffmpeg" on PATH.
	Binary string
	// StopTimeout bounds the graceful-terminate wait before a hard kill.
	StopTimeout time.Duration

	mu        sync.Mutex
	cmd       *exec.Cmd
	done      chan struct{}
	startedAt time.Time
	output    string
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// CheckBackend verifies the capture binary is installed.
func (r *Recorder) CheckBackend() error {
	if _, err := exec.LookPath(r.binary()); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", r.binary(), err)
	}
	return nil
}

// Start launches the capture process writing to outputPath. The capture
// command is platform specific; all platforms encode to mono Opus at 16 kHz.
func (r *Recorder) Start(outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return nil // already recording
	}

	args, err := captureArgs(runtime.GOOS, outputPath)
	if err != nil {
		return err
	}

	cmd := exec.Command(r.binary(), args...)

	// ffmpeg is chatty on stderr; keep it next to the artifact for debugging.
	if logFile, err := os.Create(outputPath + ".ffmpeg.log"); err == nil {
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting audio capture: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		if c, ok := cmd.Stderr.(*os.File); ok {
			_ = c.Close()
		}
		close(done)
	}()

	r.cmd = cmd
	r.done = done
	r.startedAt = time.Now().UTC()
	r.output = outputPath
	return nil
}

// Stop terminates the capture process gracefully, waiting up to StopTimeout
// before force-killing. Stopping a recorder that never started is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	cmd, done := r.cmd, r.done
	r.cmd, r.done = nil, nil
	r.mu.Unlock()

	if cmd == nil {
		return nil
	}

	// SIGINT lets ffmpeg flush and finalize the container.
	_ = cmd.Process.Signal(os.Interrupt)

	select {
	case <-done:
		return nil
	case <-time.After(r.stopTimeout()):
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("killing audio capture process: %w", err)
	}
	<-done
	return nil
}

// Recording reports whether a capture process is currently running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd != nil
}

// StartedAt returns the timestamp of the last successful Start. Elapsed
// recording time must be measured from this, not from session creation.
func (r *Recorder) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// OutputPath returns the artifact path of the last Start.
func (r *Recorder) OutputPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.output
}

func (r *Recorder) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "ffmpeg"
}

func (r *Recorder) stopTimeout() time.Duration {
	if r.StopTimeout > 0 {
		return r.StopTimeout
	}
	return defaultStopTimeout
}

// captureArgs builds the ffmpeg argument list for the host platform.
// Device selection differs per OS; the encode target does not.
func captureArgs(goos, outputPath string) ([]string, error) {
	var input []string
	switch goos {
	case "linux":
		// PulseAudio monitor of the default sink, i.e. what the browser plays.
		input = []string{"-f", "pulse", "-i", "default"}
	case "darwin":
		input = []string{"-f", "avfoundation", "-i", ":default"}
	default:
		return nil, ErrUnsupportedPlatform
	}

	return append(input,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "libopus",
		"-b:a", "32k",
		"-y",
		outputPath,
	), nil
}

package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStop_WithoutStartIsNoop(t *testing.T) {
	r := NewRecorder()

	// Repeated stops on a never-started recorder must not error.
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	assert.False(t, r.Recording())
	assert.True(t, r.StartedAt().IsZero())
}

func TestCaptureArgs_PerPlatform(t *testing.T) {
	linux, err := captureArgs("linux", "/tmp/out.opus")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-f", "pulse", "-i", "default",
		"-ac", "1", "-ar", "16000",
		"-c:a", "libopus", "-b:a", "32k",
		"-y", "/tmp/out.opus",
	}, linux)

	darwin, err := captureArgs("darwin", "/tmp/out.opus")
	require.NoError(t, err)
	assert.Equal(t, "avfoundation", darwin[1])
}

func TestCaptureArgs_UnsupportedPlatform(t *testing.T) {
	_, err := captureArgs("windows", "/tmp/out.opus")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	_, err = captureArgs("plan9", "/tmp/out.opus")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestCheckBackend_MissingBinary(t *testing.T) {
	r := &Recorder{Binary: "definitely-not-a-real-encoder"}
	assert.Error(t, r.CheckBackend())
}

package meetlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SupportedShapes(t *testing.T) {
	tests := []struct {
		name         string
		link         string
		wantID       string
		wantPasscode string
	}{
		{"j_shape", "https://zoom.us/j/1234567890", "1234567890", ""},
		{"wc_join_shape", "https://zoom.us/wc/join/88512345?pwd=Ab12", "88512345", "Ab12"},
		{"s_shape", "https://us02web.zoom.us/s/99887766", "99887766", ""},
		{"j_with_pwd", "https://zoom.us/j/555000111?pwd=abc.DEF_9", "555000111", "abc.DEF_9"},
		{"pwd_after_other_params", "https://zoom.us/j/555000111?uname=x&pwd=p4ss", "555000111", "p4ss"},
		{"surrounding_whitespace", "  https://zoom.us/j/42424242  ", "42424242", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.link)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, d.MeetingID)
			assert.Equal(t, tt.wantPasscode, d.Passcode)
		})
	}
}

func TestParse_InvalidLinks(t *testing.T) {
	tests := []struct {
		name string
		link string
	}{
		{"empty", ""},
		{"no_meeting_path", "https://zoom.us/signin"},
		{"non_numeric_id", "https://zoom.us/j/notanid"},
		{"bare_id", "88512345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.link)
			assert.ErrorIs(t, err, ErrInvalidLink)
		})
	}
}

func TestParse_PasscodeIsOptional(t *testing.T) {
	d, err := Parse("https://zoom.us/wc/join/88512345")
	require.NoError(t, err)
	assert.Equal(t, "88512345", d.MeetingID)
	assert.Empty(t, d.Passcode)
}

func TestClean(t *testing.T) {
	assert.Equal(t, "https://zoom.us/j/123", Clean("  https://zoom.us/j/123 "))
	assert.Equal(t, "https://zoom.us/j/123?pwd=x", Clean("https://zoom.us/j/123?pwd=x"))
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://zoom.us/wc/join/88512345", JoinURL("88512345"))
}

package meetlink

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidLink is returned when no meeting identifier can be found in a link.
var ErrInvalidLink = errors.New("meeting link is invalid")

// Zoom web links embed the meeting id in one of three path shapes:
// /j/<id>, /wc/join/<id>, /s/<id>. The passcode rides in the pwd query param.
var (
	meetingIDRe = regexp.MustCompile(`/(?:j|wc/join|s)/(\d+)`)
	passcodeRe  = regexp.MustCompile(`[?&]pwd=([\w.]+)`)
)

// Details holds the parts of a meeting link the bot needs to join.
type Details struct {
	MeetingID string
	Passcode  string // empty when the link carries no pwd param
}

// Parse extracts the meeting id and optional passcode from a raw link.
// Passcode absence is not an error; a missing meeting id is.
func Parse(rawLink string) (Details, error) {
	rawLink = strings.TrimSpace(rawLink)

	m := meetingIDRe.FindStringSubmatch(rawLink)
	if m == nil {
		return Details{}, ErrInvalidLink
	}

	d := Details{MeetingID: m[1]}
	if p := passcodeRe.FindStringSubmatch(rawLink); p != nil {
		d.Passcode = p[1]
	}
	return d, nil
}

// Clean normalizes a meeting link (trims whitespace, re-serializes the URL).
// Unparseable input is returned trimmed rather than failing; Parse decides
// validity.
func Clean(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	return u.String()
}

// JoinURL builds the Zoom web-client join URL for a meeting id.
func JoinURL(meetingID string) string {
	return "https://zoom.us/wc/join/" + meetingID
}

// Package bot contains the meeting-bot session state machine and the process
// supervisor that runs sessions as independent OS processes.
package bot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danastri/meetscribe/internal/browser"
	"github.com/danastri/meetscribe/internal/meetlink"
	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/stopflag"
)

// ErrInvalidMeeting is an unrecoverable session error: the meeting link the
// bot navigated to does not resolve to a joinable meeting.
var ErrInvalidMeeting = errors.New("meeting is invalid or has expired")

// Zoom web-client selectors. XPath, matched with bounded waits.
const (
	selInvalidMeeting = `//span[contains(text(), 'This meeting link is invalid')]`
	selPasscodeInput  = `//input[@id='input-for-pwd']`
	selNameInput      = `//input[@id='input-for-name']`
	selJoinButton     = `//button[contains(text(), "Join")]`
	selJoinAudio      = `//button[@aria-label="Join Audio"]`
	selMuteButton     = `//button[@aria-label="Mute" or @aria-label="Unmute"]`
	selVideoButton    = `//button[@aria-label="Stop Video" or @aria-label="Start Video"]`
	selWaitingRoom    = `//span[contains(text(), 'host will admit you') or contains(text(), 'Waiting for the host')]`
	selParticipants   = `//span[contains(text(), 'Participants')]`
	selMeetingEnded   = `//div[contains(text(), 'meeting has been ended')]`
	selRemoved        = `//div[contains(text(), 'You have been removed')]`
	selEveryoneLeft   = `//span[contains(text(), 'call ended because everyone left')]`
	selJoinDenied     = `//span[contains(text(), 'denied your request to join')]`
	selAttendeeCount  = `//span[@class="footer-button__number-counter"]/span`

	// Zoom's web client mirrors live captions into local storage; captured
	// best-effort as a side artifact on teardown.
	captionStorageKey = "live-transcription-history"
)

// End reasons reported on the session record.
const (
	ReasonStopRequested  = "stop requested"
	ReasonMeetingEnded   = "meeting ended by host"
	ReasonRemoved        = "removed from meeting"
	ReasonLoneBot        = "lone bot timeout"
	ReasonMaxRecordTime  = "max record time reached"
	ReasonAdmissionWait  = "admission wait timeout"
	ReasonJoinDenied     = "join request denied"
	reasonDeniedInternal = "__denied__"
)

// Recorder is the audio capture surface the session owns while recording.
type Recorder interface {
	Start(outputPath string) error
	Stop() error
	StartedAt() time.Time
	Recording() bool
}

// Reporter receives state transitions for external observability. All calls
// are best-effort; a nil Reporter is valid.
type Reporter interface {
	State(sessionID, state string)
	Failure(sessionID, message string)
}

// Config parameterizes one bot session.
type Config struct {
	SessionID string
	MeetingID string
	Passcode  string
	BotName   string

	// OutputDir holds the audio artifact, caption capture and the
	// per-session browser profile.
	OutputDir string

	// MinRecordTime is the grace before the lonely-bot rule may end the
	// session; a bot that joins an empty meeting early waits at least this
	// long for people to arrive.
	MinRecordTime time.Duration
	// MaxRecordTime is the hard session cap.
	MaxRecordTime time.Duration
	// MaxWaitingTime bounds the waiting-room phase.
	MaxWaitingTime time.Duration

	// TickInterval paces the admission and monitor polls.
	TickInterval time.Duration
	// LonelyWindow is how long the bot must be alone before ending.
	LonelyWindow time.Duration
	// ElementTimeout bounds individual UI element waits.
	ElementTimeout time.Duration

	MaxJoinRetries int

	// JoinURL overrides the derived web-client URL (tests).
	JoinURL string
}

func (c *Config) withDefaults() {
	if c.BotName == "" {
		c.BotName = "Meetscribe Bot"
	}
	if c.MaxRecordTime <= 0 {
		c.MaxRecordTime = 2 * time.Hour
	}
	if c.MaxWaitingTime <= 0 {
		c.MaxWaitingTime = 30 * time.Minute
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 2 * time.Second
	}
	if c.LonelyWindow <= 0 {
		c.LonelyWindow = 5 * time.Minute
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = 5 * time.Second
	}
	if c.MaxJoinRetries <= 0 {
		c.MaxJoinRetries = 3
	}
	if c.JoinURL == "" {
		c.JoinURL = meetlink.JoinURL(c.MeetingID)
	}
}

// Session drives one bot through join, admission, recording and teardown.
// Run owns the session; End is idempotent but must be called from the same
// goroutine.
type Session struct {
	cfg      Config
	driver   browser.Driver
	recorder Recorder
	stop     stopflag.Flag
	reporter Reporter
	log      *logrus.Entry

	state       string
	endReason   string
	retries     int
	lonelySince time.Time
}

func NewSession(cfg Config, driver browser.Driver, recorder Recorder, stop stopflag.Flag, reporter Reporter, log *logrus.Logger) *Session {
	cfg.withDefaults()
	if log == nil {
		log = logrus.New()
	}
	return &Session{
		cfg:      cfg,
		driver:   driver,
		recorder: recorder,
		stop:     stop,
		reporter: reporter,
		log:      log.WithField("session_id", cfg.SessionID),
		state:    models.BotStateInitializing,
	}
}

// State returns the current state machine state.
func (s *Session) State() string { return s.state }

// EndReason returns why the session ended; empty until Ended.
func (s *Session) EndReason() string { return s.endReason }

// ArtifactPath is where the session's audio recording lands.
func (s *Session) ArtifactPath() string {
	return filepath.Join(s.cfg.OutputDir, s.cfg.SessionID+".opus")
}

// ProfileDir is the session-exclusive browser profile directory.
func (s *Session) ProfileDir() string {
	return ProfileDir(s.cfg.OutputDir, s.cfg.SessionID)
}

// ProfileDir names the browser profile directory a session owns. The runner
// needs it before the session exists to hand it to the browser launcher.
func ProfileDir(outputDir, sessionID string) string {
	return filepath.Join(outputDir, "browser_profile_"+sessionID)
}

// Run executes the whole session lifecycle and always leaves the session in
// Ended with resources released. The returned error reports unrecoverable
// failures; a session ended by timeout, removal or stop signal returns nil.
func (s *Session) Run() error {
	defer s.end("terminated abnormally") // no-op on every normal path

	if err := s.navigate(); err != nil {
		return s.fail(err)
	}

	s.joinForm()

	admitted, reason := s.waitForAdmission()
	if !admitted {
		s.end(reason)
		return nil
	}

	if err := s.startRecording(); err != nil {
		return s.fail(err)
	}

	for {
		reason := s.monitor()
		if reason != reasonDeniedInternal {
			s.end(reason)
			return nil
		}

		// A participant denied the bot's join request: recoverable, retry
		// navigation and join up to the bounded retry count.
		s.retries++
		if s.retries > s.cfg.MaxJoinRetries {
			s.end(ReasonJoinDenied)
			return nil
		}
		s.setState(models.BotStateRetrying)
		s.log.WithField("attempt", s.retries).Info("join denied, retrying")

		if err := s.navigate(); err != nil {
			return s.fail(err)
		}
		s.joinForm()
		admitted, reason := s.waitForAdmission()
		if !admitted {
			s.end(reason)
			return nil
		}
		s.setState(models.BotStateRecording)
	}
}

func (s *Session) navigate() error {
	s.setState(models.BotStateNavigating)
	s.log.WithField("url", s.cfg.JoinURL).Info("navigating to meeting")

	if err := s.driver.Navigate(s.cfg.JoinURL); err != nil {
		return fmt.Errorf("navigating to meeting: %w", err)
	}
	if s.driver.Exists(selInvalidMeeting, s.cfg.ElementTimeout) {
		return ErrInvalidMeeting
	}
	return nil
}

// joinForm fills the join form and connects audio. Every step is best-effort
// with a short bounded wait: the form may already be bypassed, the control
// may already be in the target state.
func (s *Session) joinForm() {
	s.setState(models.BotStateJoiningForm)

	if s.cfg.Passcode != "" {
		if err := s.driver.Fill(selPasscodeInput, s.cfg.Passcode, s.cfg.ElementTimeout); err == nil {
			s.log.Info("entered meeting passcode")
		}
	}
	if err := s.driver.Fill(selNameInput, s.cfg.BotName, s.cfg.ElementTimeout); err == nil {
		s.log.WithField("bot_name", s.cfg.BotName).Info("entered bot name")
	}
	if err := s.driver.Click(selJoinButton, s.cfg.ElementTimeout); err != nil {
		s.log.Info("join button not found, may have auto-joined")
	}

	s.connectAudio()
}

func (s *Session) connectAudio() {
	if s.driver.Exists(selJoinAudio, s.cfg.ElementTimeout) {
		_ = s.driver.Click(selJoinAudio, s.cfg.ElementTimeout)
	}

	// Mute and camera-off are idempotent against current UI state: the
	// aria-label tells us which state the toggle is in.
	if label, err := s.driver.Attribute(selMuteButton, "aria-label", s.cfg.ElementTimeout); err == nil && label == "Mute" {
		_ = s.driver.Click(selMuteButton, s.cfg.ElementTimeout)
	}
	if label, err := s.driver.Attribute(selVideoButton, "aria-label", s.cfg.ElementTimeout); err == nil && label == "Stop Video" {
		_ = s.driver.Click(selVideoButton, s.cfg.ElementTimeout)
	}
}

func (s *Session) waitForAdmission() (bool, string) {
	deadline := time.Now().Add(s.cfg.MaxWaitingTime)

	for {
		if s.stopRequested() {
			return false, ReasonStopRequested
		}
		if s.driver.Exists(selParticipants, s.cfg.ElementTimeout) {
			s.setState(models.BotStateAdmitted)
			s.log.Info("admitted to meeting")
			return true, ""
		}
		if s.state != models.BotStateWaitingRoom && s.driver.Exists(selWaitingRoom, s.cfg.ElementTimeout) {
			s.setState(models.BotStateWaitingRoom)
			s.log.Info("in waiting room")
		}
		if time.Now().After(deadline) {
			return false, ReasonAdmissionWait
		}
		time.Sleep(s.cfg.TickInterval)
	}
}

func (s *Session) startRecording() error {
	if err := s.recorder.Start(s.ArtifactPath()); err != nil {
		return fmt.Errorf("starting audio recording: %w", err)
	}
	s.setState(models.BotStateRecording)
	s.log.WithField("artifact", s.ArtifactPath()).Info("recording started")
	return nil
}

// monitor polls the meeting UI until an end condition fires and returns the
// end reason. Elapsed-time checks use the recording start timestamp, not
// session creation.
func (s *Session) monitor() string {
	for {
		if s.stopRequested() {
			return ReasonStopRequested
		}
		if s.driver.Exists(selMeetingEnded, s.cfg.ElementTimeout) || s.driver.Exists(selEveryoneLeft, s.cfg.ElementTimeout) {
			return ReasonMeetingEnded
		}
		if s.driver.Exists(selRemoved, s.cfg.ElementTimeout) {
			return ReasonRemoved
		}
		if s.driver.Exists(selJoinDenied, s.cfg.ElementTimeout) {
			return reasonDeniedInternal
		}

		elapsed := time.Since(s.recorder.StartedAt())
		if reason := s.checkLonely(elapsed); reason != "" {
			return reason
		}
		if elapsed >= s.cfg.MaxRecordTime {
			return ReasonMaxRecordTime
		}

		time.Sleep(s.cfg.TickInterval)
	}
}

// checkLonely ends the session once the bot has been the only attendee for a
// full LonelyWindow. Any observation of company resets the timer; an
// unreadable count is treated as no observation at all.
func (s *Session) checkLonely(recorded time.Duration) string {
	count := s.attendeeCount()
	if count < 0 {
		return ""
	}
	if count > 1 {
		s.lonelySince = time.Time{}
		return ""
	}

	if s.lonelySince.IsZero() {
		s.lonelySince = time.Now()
		return ""
	}
	if time.Since(s.lonelySince) >= s.cfg.LonelyWindow && recorded >= s.cfg.MinRecordTime {
		return ReasonLoneBot
	}
	return ""
}

func (s *Session) attendeeCount() int {
	text, err := s.driver.Text(selAttendeeCount, s.cfg.ElementTimeout)
	if err != nil {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return -1
	}
	return n
}

func (s *Session) stopRequested() bool {
	return s.stop != nil && s.stop.IsSet(s.cfg.SessionID)
}

// End requests teardown with the given reason. Ending an already-ended
// session is a no-op with the same observable outcome.
func (s *Session) End(reason string) {
	s.end(reason)
}

func (s *Session) end(reason string) {
	if s.state == models.BotStateEnded {
		return
	}
	s.setState(models.BotStateEnding)
	s.log.WithField("reason", reason).Info("ending session")

	if err := s.recorder.Stop(); err != nil {
		s.log.WithError(err).Warn("failed to stop recorder")
	}

	s.captureCaptions()

	if err := s.driver.Quit(); err != nil {
		s.log.WithError(err).Warn("failed to quit browser")
	}
	if err := os.RemoveAll(s.ProfileDir()); err != nil {
		s.log.WithError(err).Warn("failed to remove browser profile dir")
	}
	if s.stop != nil {
		if err := s.stop.Clear(s.cfg.SessionID); err != nil {
			s.log.WithError(err).Warn("failed to clear stop flag")
		}
	}

	s.endReason = reason
	s.setState(models.BotStateEnded)
	s.log.Info("session ended")
}

// captureCaptions saves the web client's local caption history next to the
// audio artifact when present. Best-effort; the audio pipeline does not
// depend on it.
func (s *Session) captureCaptions() {
	captions, err := s.driver.LocalStorage(captionStorageKey)
	if err != nil || captions == "" {
		return
	}
	path := filepath.Join(s.cfg.OutputDir, s.cfg.SessionID+".captions.json")
	if err := os.WriteFile(path, []byte(captions), 0o644); err != nil {
		s.log.WithError(err).Warn("failed to write caption capture")
	}
}

func (s *Session) fail(err error) error {
	s.log.WithError(err).Error("session failed")
	if s.reporter != nil {
		s.reporter.Failure(s.cfg.SessionID, err.Error())
	}
	s.end(err.Error())
	return err
}

func (s *Session) setState(state string) {
	s.state = state
	if s.reporter != nil {
		s.reporter.State(s.cfg.SessionID, state)
	}
}

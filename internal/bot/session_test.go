package bot

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danastri/meetscribe/internal/models"
)

// fakeDriver scripts the meeting UI. Selector presence can be a fixed value
// (exists) or a consumed sequence (existsSeq) that falls back to the fixed
// value once exhausted.
type fakeDriver struct {
	mu        sync.Mutex
	exists    map[string]bool
	existsSeq map[string][]bool
	texts     map[string]string
	attrs     map[string]string
	storage   map[string]string

	filled      map[string]string
	clicked     map[string]int
	navigations int
	quitCalls   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		exists:    map[string]bool{},
		existsSeq: map[string][]bool{},
		texts:     map[string]string{},
		attrs:     map[string]string{},
		storage:   map[string]string{},
		filled:    map[string]string{},
		clicked:   map[string]int{},
	}
}

func (d *fakeDriver) Navigate(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigations++
	return nil
}

func (d *fakeDriver) Exists(selector string, _ time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq := d.existsSeq[selector]; len(seq) > 0 {
		v := seq[0]
		d.existsSeq[selector] = seq[1:]
		return v
	}
	return d.exists[selector]
}

func (d *fakeDriver) Click(selector string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicked[selector]++
	return nil
}

func (d *fakeDriver) Fill(selector, text string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled[selector] = text
	return nil
}

func (d *fakeDriver) Text(selector string, _ time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.texts[selector]; ok {
		return v, nil
	}
	return "", assert.AnError
}

func (d *fakeDriver) Attribute(selector, name string, _ time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.attrs[selector]; ok {
		return v, nil
	}
	return "", assert.AnError
}

func (d *fakeDriver) Eval(js string) (string, error) { return "", nil }

func (d *fakeDriver) LocalStorage(key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.storage[key], nil
}

func (d *fakeDriver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quitCalls++
	return nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	started   bool
	stopped   bool
	path      string
	startedAt time.Time
	startErr  error
}

func (r *fakeRecorder) Start(outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	r.path = outputPath
	r.startedAt = time.Now()
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return nil
}

func (r *fakeRecorder) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

func (r *fakeRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started && !r.stopped
}

type fakeFlag struct {
	mu  sync.Mutex
	set map[string]bool
}

func newFakeFlag() *fakeFlag { return &fakeFlag{set: map[string]bool{}} }

func (f *fakeFlag) Set(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[id] = true
	return nil
}

func (f *fakeFlag) IsSet(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[id]
}

func (f *fakeFlag) Clear(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, id)
	return nil
}

type fakeReporter struct {
	mu       sync.Mutex
	states   []string
	failures []string
}

func (r *fakeReporter) State(_ string, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *fakeReporter) Failure(_ string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, message)
}

func (r *fakeReporter) sawState(state string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.states {
		if s == state {
			return true
		}
	}
	return false
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		SessionID:      "sess-1",
		MeetingID:      "88512345678",
		Passcode:       "abc123",
		BotName:        "Notetaker",
		OutputDir:      t.TempDir(),
		MaxWaitingTime: 100 * time.Millisecond,
		TickInterval:   time.Millisecond,
		ElementTimeout: time.Millisecond,
		LonelyWindow:   time.Hour,
	}
}

func TestSessionRunRecordsUntilMeetingEnds(t *testing.T) {
	d := newFakeDriver()
	d.exists[selParticipants] = true
	d.existsSeq[selMeetingEnded] = []bool{false, false, true}
	d.texts[selAttendeeCount] = "3"
	d.attrs[selMuteButton] = "Mute"
	d.attrs[selVideoButton] = "Stop Video"
	d.exists[selJoinAudio] = true
	d.storage[captionStorageKey] = `[{"text":"hello"}]`

	rec := &fakeRecorder{}
	flag := newFakeFlag()
	rep := &fakeReporter{}
	cfg := testConfig(t)

	s := NewSession(cfg, d, rec, flag, rep, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, models.BotStateEnded, s.State())
	assert.Equal(t, ReasonMeetingEnded, s.EndReason())

	assert.Equal(t, cfg.Passcode, d.filled[selPasscodeInput])
	assert.Equal(t, cfg.BotName, d.filled[selNameInput])
	assert.Equal(t, 1, d.clicked[selJoinButton])
	assert.Equal(t, 1, d.clicked[selJoinAudio])
	assert.Equal(t, 1, d.clicked[selMuteButton], "should mute itself")
	assert.Equal(t, 1, d.clicked[selVideoButton], "should turn camera off")

	assert.True(t, rec.started)
	assert.True(t, rec.stopped)
	assert.Equal(t, s.ArtifactPath(), rec.path)
	assert.Equal(t, 1, d.quitCalls)

	captions, err := os.ReadFile(filepath.Join(cfg.OutputDir, cfg.SessionID+".captions.json"))
	require.NoError(t, err)
	assert.Contains(t, string(captions), "hello")

	assert.True(t, rep.sawState(models.BotStateRecording))
	assert.True(t, rep.sawState(models.BotStateEnded))
}

func TestSessionRunInvalidMeeting(t *testing.T) {
	d := newFakeDriver()
	d.exists[selInvalidMeeting] = true

	rec := &fakeRecorder{}
	rep := &fakeReporter{}
	s := NewSession(testConfig(t), d, rec, newFakeFlag(), rep, nil)

	err := s.Run()
	require.ErrorIs(t, err, ErrInvalidMeeting)

	assert.Equal(t, models.BotStateEnded, s.State())
	assert.False(t, rec.started)
	assert.Equal(t, 1, d.quitCalls)
	require.Len(t, rep.failures, 1)
	assert.Contains(t, rep.failures[0], "invalid")
}

func TestSessionRunStopFlagDuringAdmissionWait(t *testing.T) {
	d := newFakeDriver()
	d.exists[selWaitingRoom] = true

	flag := newFakeFlag()
	require.NoError(t, flag.Set("sess-1"))

	rec := &fakeRecorder{}
	s := NewSession(testConfig(t), d, rec, flag, nil, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, models.BotStateEnded, s.State())
	assert.Equal(t, ReasonStopRequested, s.EndReason())
	assert.False(t, rec.started)
	assert.False(t, flag.IsSet("sess-1"), "teardown should clear the stop flag")
}

func TestSessionRunAdmissionTimeout(t *testing.T) {
	d := newFakeDriver()
	d.exists[selWaitingRoom] = true

	rep := &fakeReporter{}
	s := NewSession(testConfig(t), d, &fakeRecorder{}, newFakeFlag(), rep, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, ReasonAdmissionWait, s.EndReason())
	assert.True(t, rep.sawState(models.BotStateWaitingRoom))
}

func TestSessionRunRetriesAfterDeniedThenEnds(t *testing.T) {
	d := newFakeDriver()
	d.exists[selParticipants] = true
	d.texts[selAttendeeCount] = "2"
	d.existsSeq[selJoinDenied] = []bool{true}
	d.existsSeq[selMeetingEnded] = []bool{false, true}

	s := NewSession(testConfig(t), d, &fakeRecorder{}, newFakeFlag(), nil, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, ReasonMeetingEnded, s.EndReason())
	assert.Equal(t, 2, d.navigations, "denial should trigger one rejoin")
}

func TestSessionRunDeniedRetriesExhausted(t *testing.T) {
	d := newFakeDriver()
	d.exists[selParticipants] = true
	d.exists[selJoinDenied] = true
	d.texts[selAttendeeCount] = "2"

	cfg := testConfig(t)
	cfg.MaxJoinRetries = 2
	s := NewSession(cfg, d, &fakeRecorder{}, newFakeFlag(), nil, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, ReasonJoinDenied, s.EndReason())
	assert.Equal(t, 3, d.navigations, "initial join plus two retries")
}

func TestSessionEndIsIdempotent(t *testing.T) {
	d := newFakeDriver()
	d.exists[selParticipants] = true
	d.exists[selMeetingEnded] = true
	d.texts[selAttendeeCount] = "2"

	s := NewSession(testConfig(t), d, &fakeRecorder{}, newFakeFlag(), nil, nil)
	require.NoError(t, s.Run())
	require.Equal(t, ReasonMeetingEnded, s.EndReason())

	s.End("something else")
	assert.Equal(t, ReasonMeetingEnded, s.EndReason(), "first end reason wins")
	assert.Equal(t, 1, d.quitCalls)
}

func TestCheckLonely(t *testing.T) {
	d := newFakeDriver()
	cfg := testConfig(t)
	cfg.LonelyWindow = 5 * time.Minute
	cfg.MinRecordTime = 10 * time.Second
	s := NewSession(cfg, d, &fakeRecorder{}, nil, nil, nil)

	// Company present: never lonely, timer stays reset.
	d.texts[selAttendeeCount] = "2"
	s.lonelySince = time.Now().Add(-time.Hour)
	assert.Empty(t, s.checkLonely(time.Minute))
	assert.True(t, s.lonelySince.IsZero())

	// First lonely observation starts the timer but does not end.
	d.texts[selAttendeeCount] = "1"
	assert.Empty(t, s.checkLonely(time.Minute))
	assert.False(t, s.lonelySince.IsZero())

	// Window elapsed and past the minimum recording time: end.
	s.lonelySince = time.Now().Add(-6 * time.Minute)
	assert.Equal(t, ReasonLoneBot, s.checkLonely(time.Minute))

	// Window elapsed but recording too short: keep going.
	assert.Empty(t, s.checkLonely(time.Second))

	// Unreadable count is no observation either way.
	delete(d.texts, selAttendeeCount)
	before := s.lonelySince
	assert.Empty(t, s.checkLonely(time.Minute))
	assert.Equal(t, before, s.lonelySince)
}

func TestSessionMaxRecordTime(t *testing.T) {
	d := newFakeDriver()
	d.exists[selParticipants] = true
	d.texts[selAttendeeCount] = "3"

	cfg := testConfig(t)
	cfg.MaxRecordTime = 10 * time.Millisecond
	s := NewSession(cfg, d, &fakeRecorder{}, newFakeFlag(), nil, nil)
	require.NoError(t, s.Run())

	assert.Equal(t, ReasonMaxRecordTime, s.EndReason())
}

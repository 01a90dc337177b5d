package bot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danastri/meetscribe/internal/stopflag"
	"github.com/danastri/meetscribe/internal/utils"
)

// ErrSessionNotFound reports a session id with no live supervisor handle.
var ErrSessionNotFound = errors.New("bot session not found")

// LaunchSpec describes one bot process to spawn.
type LaunchSpec struct {
	SessionID string
	MeetingID string
	Passcode  string
	BotName   string
}

// Supervisor runs bot sessions as detached OS processes so a crashing or hung
// browser cannot take the API server down with it. Each session leaves a pid
// file and a log file in RunDir; the stop flag is the cooperative shutdown
// channel, signals are the fallback.
type Supervisor struct {
	BinaryPath string
	RunDir     string
	Flags      stopflag.Flag
	Log        *logrus.Logger

	// GracePeriod is how long Terminate waits for cooperative shutdown
	// before escalating to signals.
	GracePeriod  time.Duration
	PollInterval time.Duration
}

func NewSupervisor(binaryPath, runDir string, flags stopflag.Flag, log *logrus.Logger) *Supervisor {
	if log == nil {
		log = logrus.New()
	}
	return &Supervisor{
		BinaryPath:   binaryPath,
		RunDir:       runDir,
		Flags:        flags,
		Log:          log,
		GracePeriod:  5 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// Launch spawns the bot runner for spec in its own session group and returns
// its pid. The process is released immediately; the supervisor tracks it
// through the pid file only.
func (s *Supervisor) Launch(spec LaunchSpec) (int, error) {
	const op = "Supervisor.Launch"

	if err := os.MkdirAll(s.RunDir, 0o755); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to create run dir", err)
	}

	logFile, err := os.OpenFile(s.logPath(spec.SessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to open bot log file", err)
	}
	defer logFile.Close()

	args := []string{
		"--session-id", spec.SessionID,
		"--meeting-id", spec.MeetingID,
		"--bot-name", spec.BotName,
		"--output-dir", s.RunDir,
	}
	if spec.Passcode != "" {
		args = append(args, "--passcode", spec.Passcode)
	}

	cmd := exec.Command(s.BinaryPath, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Own session group so Terminate can signal the browser subtree as one.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to start bot process", err)
	}
	pid := cmd.Process.Pid

	if err := os.WriteFile(s.pidPath(spec.SessionID), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		return 0, utils.E(utils.CodeInternal, op, "failed to write pid file", err)
	}
	_ = cmd.Process.Release()

	s.Log.WithFields(logrus.Fields{
		"session_id": spec.SessionID,
		"meeting_id": spec.MeetingID,
		"pid":        pid,
	}).Info("launched bot process")
	return pid, nil
}

// Terminate asks the session to stop, waits GracePeriod for it to wind down
// on its own, then escalates to SIGTERM and SIGKILL on the process group.
// It returns the path of the audio artifact when one was produced.
// Terminating a session whose process already exited only cleans up.
func (s *Supervisor) Terminate(sessionID string) (string, error) {
	const op = "Supervisor.Terminate"

	pid, err := s.readPID(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return "", utils.E(utils.CodeNotFound, op, "no such bot session", ErrSessionNotFound)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to read pid file", err)
	}

	log := s.Log.WithFields(logrus.Fields{"session_id": sessionID, "pid": pid})

	if s.Flags != nil {
		if err := s.Flags.Set(sessionID); err != nil {
			log.WithError(err).Warn("failed to set stop flag")
		}
	}

	deadline := time.Now().Add(s.GracePeriod)
	for processAlive(pid) && time.Now().Before(deadline) {
		time.Sleep(s.PollInterval)
	}

	if processAlive(pid) {
		log.Warn("bot did not stop cooperatively, sending SIGTERM")
		_ = syscall.Kill(-pid, syscall.SIGTERM)
		termDeadline := time.Now().Add(2 * time.Second)
		for processAlive(pid) && time.Now().Before(termDeadline) {
			time.Sleep(s.PollInterval)
		}
	}
	if processAlive(pid) {
		log.Warn("bot ignored SIGTERM, killing process group")
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}

	if err := os.Remove(s.pidPath(sessionID)); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to remove pid file")
	}
	if s.Flags != nil {
		if err := s.Flags.Clear(sessionID); err != nil {
			log.WithError(err).Warn("failed to clear stop flag")
		}
	}

	artifact := filepath.Join(s.RunDir, sessionID+".opus")
	if _, err := os.Stat(artifact); err != nil {
		log.Info("bot terminated without audio artifact")
		return "", nil
	}
	log.WithField("artifact", artifact).Info("bot terminated")
	return artifact, nil
}

// Alive reports whether the session has a tracked, still-running process.
func (s *Supervisor) Alive(sessionID string) bool {
	pid, err := s.readPID(sessionID)
	if err != nil {
		return false
	}
	return processAlive(pid)
}

func (s *Supervisor) pidPath(sessionID string) string {
	return filepath.Join(s.RunDir, sessionID+".pid")
}

func (s *Supervisor) logPath(sessionID string) string {
	return filepath.Join(s.RunDir, sessionID+".log")
}

func (s *Supervisor) readPID(sessionID string) (int, error) {
	raw, err := os.ReadFile(s.pidPath(sessionID))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file for session %s: %w", sessionID, err)
	}
	return pid, nil
}

// processAlive probes pid with signal 0. EPERM still means the process
// exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

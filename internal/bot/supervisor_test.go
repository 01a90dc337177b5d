package bot

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danastri/meetscribe/internal/stopflag"
	"github.com/danastri/meetscribe/internal/utils"
)

func testSupervisor(t *testing.T) (*Supervisor, stopflag.Flag) {
	t.Helper()
	runDir := t.TempDir()
	flags := stopflag.NewFileFlag(runDir)
	sup := NewSupervisor("/bin/true", runDir, flags, nil)
	sup.GracePeriod = 200 * time.Millisecond
	sup.PollInterval = 20 * time.Millisecond
	return sup, flags
}

// spawnSleeper starts a long sleep in its own session group and registers it
// with the supervisor the same way Launch does.
func spawnSleeper(t *testing.T, sup *Supervisor, sessionID string) int {
	t.Helper()
	cmd := exec.Command("sleep", "60")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	t.Cleanup(func() { _ = syscall.Kill(-pid, syscall.SIGKILL) })
	go func() { _ = cmd.Wait() }()

	require.NoError(t, os.WriteFile(sup.pidPath(sessionID), []byte(strconv.Itoa(pid)), 0o644))
	return pid
}

func TestSupervisorLaunchWritesPidFile(t *testing.T) {
	sup, _ := testSupervisor(t)
	sup.BinaryPath = "sleep"

	pid, err := sup.Launch(LaunchSpec{
		SessionID: "sess-launch",
		MeetingID: "88512345678",
		BotName:   "Notetaker",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = syscall.Kill(-pid, syscall.SIGKILL) })

	raw, err := os.ReadFile(sup.pidPath("sess-launch"))
	require.NoError(t, err)
	filePid, err := strconv.Atoi(string(raw))
	require.NoError(t, err)
	assert.Equal(t, pid, filePid)
	assert.FileExists(t, sup.logPath("sess-launch"))
}

func TestSupervisorLaunchMissingBinary(t *testing.T) {
	sup, _ := testSupervisor(t)
	sup.BinaryPath = filepath.Join(t.TempDir(), "no-such-binary")

	_, err := sup.Launch(LaunchSpec{SessionID: "sess-x", MeetingID: "1"})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInternal))
}

func TestSupervisorTerminateEscalatesToKill(t *testing.T) {
	sup, flags := testSupervisor(t)
	pid := spawnSleeper(t, sup, "sess-term")

	artifact := filepath.Join(sup.RunDir, "sess-term.opus")
	require.NoError(t, os.WriteFile(artifact, []byte("opus"), 0o644))

	got, err := sup.Terminate("sess-term")
	require.NoError(t, err)
	assert.Equal(t, artifact, got)

	assert.Eventually(t, func() bool { return !processAlive(pid) },
		2*time.Second, 20*time.Millisecond, "sleep ignores the stop flag, signals must reap it")
	assert.NoFileExists(t, sup.pidPath("sess-term"))
	assert.False(t, flags.IsSet("sess-term"))
}

func TestSupervisorTerminateDeadProcessCleansUp(t *testing.T) {
	sup, _ := testSupervisor(t)

	cmd := exec.Command("true")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	require.NoError(t, cmd.Wait())
	require.NoError(t, os.WriteFile(sup.pidPath("sess-dead"), []byte(strconv.Itoa(pid)), 0o644))

	got, err := sup.Terminate("sess-dead")
	require.NoError(t, err)
	assert.Empty(t, got, "no artifact was produced")
	assert.NoFileExists(t, sup.pidPath("sess-dead"))
}

func TestSupervisorTerminateUnknownSession(t *testing.T) {
	sup, _ := testSupervisor(t)

	_, err := sup.Terminate("never-launched")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSupervisorAlive(t *testing.T) {
	sup, _ := testSupervisor(t)
	assert.False(t, sup.Alive("nobody"))

	pid := spawnSleeper(t, sup, "sess-alive")
	assert.True(t, sup.Alive("sess-alive"))

	require.NoError(t, syscall.Kill(-pid, syscall.SIGKILL))
	assert.Eventually(t, func() bool { return !sup.Alive("sess-alive") },
		2*time.Second, 20*time.Millisecond)
}

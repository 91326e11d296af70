package proc

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func spawnSleep(t *testing.T, style WindowStyle, seconds string) *Handle {
	t.Helper()
	h, err := Spawn(SpawnOptions{Path: "sleep", Args: []string{seconds}, WindowStyle: style})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Kill() })
	return h
}

func TestSpawn_RecordsIdentity(t *testing.T) {
	before := time.Now()
	h := spawnSleep(t, WindowMinimized, "5")

	require.Greater(t, h.PID(), 0)
	require.Equal(t, "sleep 5", h.CommandLine())
	require.Equal(t, WindowMinimized, h.WindowStyle())
	require.False(t, h.StartTime().Before(before))
	require.True(t, ProcessAlive(h.PID()))
	require.False(t, h.Exited())
	require.Equal(t, -1, h.ExitCode())
}

func TestSpawn_MissingExecutable(t *testing.T) {
	_, err := Spawn(SpawnOptions{Path: "/definitely/not/here"})
	require.Error(t, err)
}

func TestHandle_WaitTimeoutReportsExitCode(t *testing.T) {
	h, err := Spawn(SpawnOptions{Path: "sh", Args: []string{"-c", "exit 3"}})
	require.NoError(t, err)

	require.True(t, h.WaitTimeout(2*time.Second))
	require.True(t, h.Exited())
	require.Equal(t, 3, h.ExitCode())
	require.False(t, ProcessAlive(h.PID()))
}

func TestHandle_WaitTimeoutZeroDoesNotBlock(t *testing.T) {
	h := spawnSleep(t, WindowMinimized, "5")

	start := time.Now()
	require.False(t, h.WaitTimeout(0))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHandle_RequestCloseVisible(t *testing.T) {
	h := spawnSleep(t, WindowNormal, "5")

	require.True(t, h.RequestClose())
	require.True(t, h.WaitTimeout(2*time.Second))
	require.Equal(t, 128+int(syscall.SIGTERM), h.ExitCode())
	require.Equal(t, syscall.SIGTERM, h.Signal())
}

func TestHandle_KilledProcessReportsSignalExitCode(t *testing.T) {
	h := spawnSleep(t, WindowHidden, "5")

	require.NoError(t, h.Kill())
	require.True(t, h.WaitTimeout(2*time.Second))
	require.Equal(t, 137, h.ExitCode())
	require.Equal(t, syscall.SIGKILL, h.Signal())
}

func TestHandle_NormalExitHasNoSignal(t *testing.T) {
	h, err := Spawn(SpawnOptions{Path: "true"})
	require.NoError(t, err)
	require.Equal(t, syscall.Signal(0), h.Signal())
	require.True(t, h.WaitTimeout(2*time.Second))
	require.Equal(t, 0, h.ExitCode())
	require.Equal(t, syscall.Signal(0), h.Signal())
}

func TestHandle_RequestCloseRefusedWhenHidden(t *testing.T) {
	h := spawnSleep(t, WindowHidden, "5")

	require.False(t, h.RequestClose())
	require.NoError(t, h.Kill())
	require.True(t, h.WaitTimeout(2*time.Second))
}

func TestHandle_KillAfterExitIsNoop(t *testing.T) {
	h, err := Spawn(SpawnOptions{Path: "true"})
	require.NoError(t, err)
	require.True(t, h.WaitTimeout(2*time.Second))
	require.NoError(t, h.Kill())
	require.False(t, h.RequestClose())
}

func TestStartTicks(t *testing.T) {
	ticks, err := StartTicks(os.Getpid())
	require.NoError(t, err)
	require.Greater(t, ticks, uint64(0))

	_, err = StartTicks(0)
	require.Error(t, err)
}

func TestParseWindowStyle(t *testing.T) {
	for in, want := range map[string]WindowStyle{
		"":          WindowMinimized,
		"Normal":    WindowNormal,
		"minimized": WindowMinimized,
		"MAXIMIZED": WindowMaximized,
		"hidden":    WindowHidden,
	} {
		got, err := ParseWindowStyle(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
		if in != "" {
			require.Equal(t, want.String(), got.String())
		}
	}
	_, err := ParseWindowStyle("fullscreen")
	require.Error(t, err)
}

package launch

import (
	"testing"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/health"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func endpointLaunch(t *testing.T, style proc.WindowStyle, args ...string) func() (*proc.Handle, error) {
	l := NewEndpointLauncher(style, testLauncherOptions(t))
	return func() (*proc.Handle, error) { return l.Launch(args[0], args[1:]...) }
}

func TestServiceEndpoint_LaunchFailureIsReturned(t *testing.T) {
	boom := errors.New("no such thing")
	ep, err := NewServiceEndpoint("api", func() (*proc.Handle, error) { return nil, boom }, nil)
	require.Nil(t, ep)
	require.Same(t, boom, err)
}

func TestServiceEndpoint_RestartReplacesProcess(t *testing.T) {
	ep, err := NewServiceEndpoint("api", endpointLaunch(t, proc.WindowNormal, "sleep", "5"), health.NewExitWait(100*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(ep.Terminate)

	first := ep.Process()
	require.NoError(t, ep.Restart())
	second := ep.Process()

	require.NotEqual(t, first.PID(), second.PID())
	require.True(t, first.Exited())
	require.False(t, second.Exited())
	require.NoError(t, ep.ValidateHealth())
}

func TestServiceEndpoint_RestartFailureKeepsOldProcess(t *testing.T) {
	calls := 0
	launch := endpointLaunch(t, proc.WindowNormal, "sleep", "5")
	ep, err := NewServiceEndpoint("api", func() (*proc.Handle, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("relaunch failed")
		}
		return launch()
	}, nil)
	require.NoError(t, err)
	t.Cleanup(ep.Terminate)

	first := ep.Process()
	require.EqualError(t, ep.Restart(), "relaunch failed")
	require.Same(t, first, ep.Process())
	require.True(t, first.Exited())
}

func TestServiceEndpoint_TerminateKillsHiddenProcess(t *testing.T) {
	ep, err := NewServiceEndpoint("hidden", endpointLaunch(t, proc.WindowHidden, "sleep", "10"), nil)
	require.NoError(t, err)

	start := time.Now()
	ep.Terminate()
	require.True(t, ep.Process().Exited())
	require.Less(t, time.Since(start), closeTimeout, "hidden processes are killed without waiting for a close")
}

func TestServiceEndpoint_TerminateKillsProcessIgnoringClose(t *testing.T) {
	ep, err := NewServiceEndpoint("stubborn", endpointLaunch(t, proc.WindowNormal, "sh", "-c", "trap '' TERM; sleep 10"), nil)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	ep.Terminate()
	require.True(t, ep.Process().Exited())
}

func TestServiceEndpoint_DefaultValidator(t *testing.T) {
	ep, err := NewServiceEndpoint("short", endpointLaunch(t, proc.WindowNormal, "sleep", "0"), nil)
	require.NoError(t, err)

	err = ep.ValidateHealth()
	var ve *health.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Contains(t, ve.Error(), "stopped unexpectedly with error code: 0")
}

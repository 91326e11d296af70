package health

import (
	"fmt"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/proc"
)

// ExitWait requires that a process does not exit within MaxWait of its start.
// Once MaxWait has passed, validation only checks that the process is alive.
type ExitWait struct {
	MaxWait time.Duration
}

func NewExitWait(maxWait time.Duration) *ExitWait {
	return &ExitWait{MaxWait: maxWait}
}

func DefaultExitWait() *ExitWait {
	return NewExitWait(DefaultMaxWait)
}

func (v *ExitWait) ValidateHealth(p proc.Process) error {
	wait := remaining(p, v.MaxWait)
	if wait < 0 {
		wait = 0
	}
	if p.WaitTimeout(wait) {
		return &ValidationError{
			CommandLine: p.CommandLine(),
			Reason:      fmt.Sprintf("stopped unexpectedly with error code: %d", p.ExitCode()),
		}
	}
	return nil
}

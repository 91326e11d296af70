// Package health decides whether a launched process counts as healthy.
//
// Every deadline is measured from the process's own start time, not from the
// moment validation begins, so validating an endpoint late leaves a
// correspondingly smaller budget.
package health

import (
	"fmt"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/proc"
)

const DefaultMaxWait = 10 * time.Second

type Validator interface {
	ValidateHealth(p proc.Process) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(p proc.Process) error

func (f ValidatorFunc) ValidateHealth(p proc.Process) error { return f(p) }

// ValidationError is returned when a process fails its health check.
type ValidationError struct {
	CommandLine string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Process '%s' %s", e.CommandLine, e.Reason)
}

func remaining(p proc.Process, maxWait time.Duration) time.Duration {
	return maxWait - time.Since(p.StartTime())
}

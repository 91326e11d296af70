package launch

import (
	"sync"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/health"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	closeTimeout = 3 * time.Second
	killWait     = 2 * time.Second
)

// ServiceEndpoint owns the single active process of one endpoint, the
// validator that judges it and the closure that relaunches it.
type ServiceEndpoint struct {
	name      string
	launch    func() (*proc.Handle, error)
	validator health.Validator
	obs       observer

	mu      sync.Mutex
	process *proc.Handle
}

// NewServiceEndpoint performs the first launch synchronously; a launch
// failure is returned unchanged.
func NewServiceEndpoint(name string, launch func() (*proc.Handle, error), validator health.Validator) (*ServiceEndpoint, error) {
	return newServiceEndpoint(name, launch, validator, observer{})
}

func newServiceEndpoint(name string, launch func() (*proc.Handle, error), validator health.Validator, obs observer) (*ServiceEndpoint, error) {
	if validator == nil {
		validator = health.DefaultExitWait()
	}
	e := &ServiceEndpoint{
		name:      name,
		launch:    launch,
		validator: validator,
		obs:       obs.withDefaults(),
	}
	p, err := e.spawn()
	if err != nil {
		return nil, err
	}
	e.process = p
	e.obs.publish(EventEndpointLaunched, e.event(p))
	return e, nil
}

func (e *ServiceEndpoint) spawn() (*proc.Handle, error) {
	p, err := e.launch()
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Errorf("endpoint %s: launch returned no process", e.name)
	}
	e.obs.metrics.EndpointLaunched(e.name)
	log.Info().Str("endpoint", e.name).Int("pid", p.PID()).Msg("endpoint started")
	return p, nil
}

func (e *ServiceEndpoint) Name() string { return e.name }

func (e *ServiceEndpoint) Process() *proc.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.process
}

func (e *ServiceEndpoint) ValidateHealth() error {
	p := e.Process()
	start := time.Now()
	err := e.validator.ValidateHealth(p)
	e.obs.metrics.EndpointValidated(e.name, time.Since(start), err)
	return err
}

// Terminate stops the current process: a graceful close request first,
// then a kill if the request is refused or the process outlives
// closeTimeout. It never fails.
func (e *ServiceEndpoint) Terminate() {
	p := e.Process()
	if p == nil || p.Exited() {
		return
	}
	terminateProcess(e.name, p)
	e.obs.metrics.EndpointTerminated(e.name)
	e.obs.publish(EventEndpointTerminated, e.event(p))
}

// Restart terminates the current process and replaces it with a fresh
// launch. On launch failure the terminated process stays referenced.
func (e *ServiceEndpoint) Restart() error {
	e.Terminate()
	p, err := e.spawn()
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.process = p
	e.mu.Unlock()
	e.obs.metrics.EndpointRestarted(e.name)
	e.obs.publish(EventEndpointRestarted, e.event(p))
	return nil
}

func (e *ServiceEndpoint) event(p *proc.Handle) Event {
	ev := Event{Endpoint: e.name}
	if p != nil {
		ev.PID = p.PID()
		ev.CommandLine = p.CommandLine()
	}
	return ev
}

func terminateProcess(name string, p *proc.Handle) {
	if !p.RequestClose() || !p.WaitTimeout(closeTimeout) {
		if err := p.Kill(); err != nil {
			log.Debug().Err(err).Str("endpoint", name).Int("pid", p.PID()).Msg("kill failed")
		}
		p.WaitTimeout(killWait)
	}
	log.Info().Str("endpoint", name).Int("pid", p.PID()).Int("exit_code", p.ExitCode()).Msg("endpoint terminated")
}

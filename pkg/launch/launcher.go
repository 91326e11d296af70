package launch

import (
	"fmt"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/health"
	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// LaunchFunc performs one concrete spawn for an endpoint. It is invoked again
// on every restart.
type LaunchFunc func(l *EndpointLauncher) (*proc.Handle, error)

type endpointSpec struct {
	name      string
	launch    LaunchFunc
	validator health.Validator
}

// Launcher is built incrementally and then launches every endpoint in
// insertion order, validates them concurrently with restarts, and tears
// everything down if any endpoint fails.
type Launcher struct {
	specs        []endpointSpec
	launchDelay  time.Duration
	retries      uint
	windowStyle  proc.WindowStyle
	launcherOpts EndpointLauncherOptions
	obs          observer
}

func NewLauncher() *Launcher {
	return &Launcher{windowStyle: proc.WindowMinimized}
}

// AddEndpoint appends an endpoint. A nil validator means health.DefaultExitWait().
func (l *Launcher) AddEndpoint(launch LaunchFunc, validator health.Validator) *Launcher {
	return l.AddNamedEndpoint("", launch, validator)
}

func (l *Launcher) AddNamedEndpoint(name string, launch LaunchFunc, validator health.Validator) *Launcher {
	if name == "" {
		name = fmt.Sprintf("endpoint-%d", len(l.specs))
	}
	if validator == nil {
		validator = health.DefaultExitWait()
	}
	l.specs = append(l.specs, endpointSpec{name: name, launch: launch, validator: validator})
	return l
}

// WithLaunchDelay sets the pause applied after each endpoint is launched.
func (l *Launcher) WithLaunchDelay(d time.Duration) *Launcher {
	l.launchDelay = d
	return l
}

// WithRetries sets how many restart-and-revalidate cycles each endpoint gets.
func (l *Launcher) WithRetries(n uint) *Launcher {
	l.retries = n
	return l
}

func (l *Launcher) SetWindowStyle(style proc.WindowStyle) *Launcher {
	l.windowStyle = style
	return l
}

func (l *Launcher) WithEndpointLauncherOptions(opts EndpointLauncherOptions) *Launcher {
	l.launcherOpts = opts
	return l
}

func (l *Launcher) WithMetrics(m MetricsCollector) *Launcher {
	l.obs.metrics = m
	return l
}

func (l *Launcher) WithEvents(sink EventSink) *Launcher {
	l.obs.events = sink
	return l
}

func (l *Launcher) Len() int { return len(l.specs) }

// LaunchAll returns every endpoint once all of them are healthy. A launch
// failure is returned as-is; validation failures are returned as an
// *AggregateError. In both cases every started process has been terminated.
func (l *Launcher) LaunchAll() ([]*ServiceEndpoint, error) {
	obs := l.obs.withDefaults()
	endpoints, err := l.startEndpoints(obs)
	if err != nil {
		log.Warn().Err(err).Int("started", len(endpoints)).Msg("launch failed; terminating started endpoints")
		TerminateEndpoints(endpoints)
		obs.publish(EventLaunchFinished, Event{Endpoints: len(endpoints), Error: err.Error()})
		return nil, err
	}

	if agg := l.validateStarted(endpoints, obs); agg != nil {
		log.Warn().Err(agg).Msg("validation failed; terminating endpoints")
		TerminateEndpoints(endpoints)
		obs.publish(EventLaunchFinished, Event{Endpoints: len(endpoints), Error: agg.Error()})
		return nil, agg
	}

	obs.publish(EventLaunchFinished, Event{Endpoints: len(endpoints)})
	return endpoints, nil
}

func (l *Launcher) startEndpoints(obs observer) ([]*ServiceEndpoint, error) {
	launcher := NewEndpointLauncher(l.windowStyle, l.launcherOpts)
	endpoints := make([]*ServiceEndpoint, 0, len(l.specs))
	for _, spec := range l.specs {
		fn := spec.launch
		ep, err := newServiceEndpoint(spec.name, func() (*proc.Handle, error) { return fn(launcher) }, spec.validator, obs)
		if err != nil {
			return endpoints, err
		}
		endpoints = append(endpoints, ep)
		time.Sleep(l.launchDelay)
	}
	return endpoints, nil
}

func (l *Launcher) validateStarted(endpoints []*ServiceEndpoint, obs observer) *AggregateError {
	outcomes := make([]error, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			outcomes[i] = l.validateWithRestarts(ep, obs)
			return nil
		})
	}
	_ = g.Wait()
	return collectErrors(endpoints, outcomes)
}

func (l *Launcher) validateWithRestarts(ep *ServiceEndpoint, obs observer) error {
	for attempt := uint(0); ; attempt++ {
		err := ep.ValidateHealth()
		if err == nil {
			obs.publish(EventEndpointHealthy, Event{Endpoint: ep.Name(), PID: ep.Process().PID(), Attempt: attempt})
			return nil
		}
		if attempt >= l.retries {
			obs.publish(EventEndpointFailed, Event{Endpoint: ep.Name(), Attempt: attempt, Error: err.Error()})
			return err
		}
		log.Warn().Err(err).Str("endpoint", ep.Name()).Uint("attempt", attempt+1).Uint("retries", l.retries).Msg("endpoint unhealthy; restarting")
		if err := ep.Restart(); err != nil {
			obs.publish(EventEndpointFailed, Event{Endpoint: ep.Name(), Attempt: attempt, Error: err.Error()})
			return err
		}
	}
}

// TerminateEndpoints terminates every endpoint concurrently.
func TerminateEndpoints(endpoints []*ServiceEndpoint) {
	var g errgroup.Group
	for _, ep := range endpoints {
		g.Go(func() error {
			ep.Terminate()
			return nil
		})
	}
	_ = g.Wait()
}

// ValidateEndpoints checks every endpoint concurrently and returns an
// *AggregateError describing each unhealthy one.
func ValidateEndpoints(endpoints []*ServiceEndpoint) error {
	outcomes := make([]error, len(endpoints))
	var g errgroup.Group
	for i, ep := range endpoints {
		g.Go(func() error {
			outcomes[i] = ep.ValidateHealth()
			return nil
		})
	}
	_ = g.Wait()
	if agg := collectErrors(endpoints, outcomes); agg != nil {
		return agg
	}
	return nil
}

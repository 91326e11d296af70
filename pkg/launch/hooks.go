package launch

import (
	"time"
)

const (
	EventEndpointLaunched   = "endpoint.launched"
	EventEndpointRestarted  = "endpoint.restarted"
	EventEndpointHealthy    = "endpoint.healthy"
	EventEndpointFailed     = "endpoint.failed"
	EventEndpointTerminated = "endpoint.terminated"
	EventLaunchFinished     = "launch.finished"
)

// Event is the payload published for endpoint lifecycle transitions.
type Event struct {
	Endpoint    string    `json:"endpoint,omitempty"`
	PID         int       `json:"pid,omitempty"`
	CommandLine string    `json:"command_line,omitempty"`
	Attempt     uint      `json:"attempt,omitempty"`
	Endpoints   int       `json:"endpoints,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// EventSink receives lifecycle events. Publishing must not block for long;
// it runs on the launch and validation paths.
type EventSink interface {
	Publish(eventType string, ev Event)
}

type MetricsCollector interface {
	EndpointLaunched(endpoint string)
	EndpointRestarted(endpoint string)
	EndpointValidated(endpoint string, duration time.Duration, err error)
	EndpointTerminated(endpoint string)
}

type noopMetrics struct{}

func (noopMetrics) EndpointLaunched(string)                         {}
func (noopMetrics) EndpointRestarted(string)                        {}
func (noopMetrics) EndpointValidated(string, time.Duration, error) {}
func (noopMetrics) EndpointTerminated(string)                       {}

func NewNoopMetricsCollector() MetricsCollector { return noopMetrics{} }

type noopSink struct{}

func (noopSink) Publish(string, Event) {}

type observer struct {
	metrics MetricsCollector
	events  EventSink
}

func (o observer) withDefaults() observer {
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if o.events == nil {
		o.events = noopSink{}
	}
	return o
}

func (o observer) publish(eventType string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	o.events.Publish(eventType, ev)
}

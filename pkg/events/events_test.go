package events

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startBus(t *testing.T, register func(*Bus)) *Bus {
	t.Helper()
	bus, err := NewInMemoryBus()
	require.NoError(t, err)
	register(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("bus did not start")
	}
	return bus
}

func TestPublisher_RoundTripsLifecycleEvents(t *testing.T) {
	type received struct {
		typ string
		ev  launch.Event
	}
	got := make(chan received, 4)
	bus := startBus(t, func(b *Bus) {
		b.AddHandler("test", TopicLifecycle, func(msg *message.Message) error {
			defer msg.Ack()
			typ, ev, err := DecodeEvent(msg)
			if err != nil {
				return err
			}
			got <- received{typ: typ, ev: ev}
			return nil
		})
	})

	pub := NewPublisher(bus.Publisher)
	pub.Publish(launch.EventEndpointLaunched, launch.Event{Endpoint: "api", PID: 42, CommandLine: "/bin/api -v"})

	select {
	case r := <-got:
		require.Equal(t, launch.EventEndpointLaunched, r.typ)
		require.Equal(t, "api", r.ev.Endpoint)
		require.Equal(t, 42, r.ev.PID)
		require.Equal(t, "/bin/api -v", r.ev.CommandLine)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRegisterJSONLWriter(t *testing.T) {
	out := &lockedBuffer{}
	bus := startBus(t, func(b *Bus) {
		RegisterJSONLWriter(b, out)
		RegisterLogger(b)
	})

	pub := NewPublisher(bus.Publisher)
	pub.Publish(launch.EventEndpointHealthy, launch.Event{Endpoint: "web"})
	pub.Publish(launch.EventLaunchFinished, launch.Event{Endpoints: 1})

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 2
	}, 2*time.Second, 20*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	first, err := ParseEnvelope([]byte(lines[0]))
	require.NoError(t, err)
	require.Equal(t, launch.EventEndpointHealthy, first.Type)
	require.Contains(t, string(first.Payload), `"endpoint":"web"`)
}

func TestNewEnvelope(t *testing.T) {
	_, err := NewEnvelope("", nil)
	require.Error(t, err)

	env, err := NewEnvelope("x", nil)
	require.NoError(t, err)
	require.Empty(t, env.Payload)

	_, err = ParseEnvelope([]byte("not json"))
	require.Error(t, err)
}

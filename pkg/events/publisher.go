package events

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Publisher adapts a watermill publisher to launch.EventSink.
type Publisher struct {
	pub   message.Publisher
	topic string
}

var _ launch.EventSink = (*Publisher)(nil)

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, topic: TopicLifecycle}
}

func (p *Publisher) Publish(eventType string, ev launch.Event) {
	if err := p.publish(eventType, ev); err != nil {
		log.Warn().Err(err).Str("type", eventType).Msg("publish lifecycle event")
	}
}

func (p *Publisher) publish(eventType string, ev launch.Event) error {
	env, err := NewEnvelope(eventType, ev)
	if err != nil {
		return err
	}
	b, err := env.MarshalJSONBytes()
	if err != nil {
		return err
	}
	return p.pub.Publish(p.topic, message.NewMessage(watermill.NewUUID(), b))
}

// DecodeEvent extracts the lifecycle event carried by a bus message.
func DecodeEvent(msg *message.Message) (string, launch.Event, error) {
	env, err := ParseEnvelope(msg.Payload)
	if err != nil {
		return "", launch.Event{}, err
	}
	var ev launch.Event
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", launch.Event{}, errors.Wrap(err, "unmarshal event payload")
		}
	}
	return env.Type, ev, nil
}

// RegisterJSONLWriter writes every lifecycle envelope to w, one per line.
func RegisterJSONLWriter(bus *Bus, w io.Writer) {
	var mu sync.Mutex
	bus.AddHandler("svclaunch-jsonl", TopicLifecycle, func(msg *message.Message) error {
		defer msg.Ack()
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.Write(append(msg.Payload, '\n')); err != nil {
			return errors.Wrap(err, "write event line")
		}
		return nil
	})
}

// RegisterLogger logs every lifecycle event through zerolog.
func RegisterLogger(bus *Bus) {
	bus.AddHandler("svclaunch-log", TopicLifecycle, func(msg *message.Message) error {
		defer msg.Ack()
		typ, ev, err := DecodeEvent(msg)
		if err != nil {
			return err
		}
		e := log.Debug().Str("type", typ)
		if ev.Endpoint != "" {
			e = e.Str("endpoint", ev.Endpoint)
		}
		if ev.PID != 0 {
			e = e.Int("pid", ev.PID)
		}
		if ev.Error != "" {
			e = e.Str("error", ev.Error)
		}
		e.Msg("lifecycle event")
		return nil
	})
}

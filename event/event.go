// Package event carries realtime events between the API and relay
// processes over NATS, msgpack-encoded.
package event

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nebulahq/nebula/types"
)

const subjectMessageCreated = "nebula.messages.created"

type MessageCreated struct {
	// Origin is the publishing process's ID; a relay skips events
	// it published itself since it already broadcast them locally.
	Origin  string        `msgpack:"o"`
	Message types.Message `msgpack:"m"`
}

type Bus struct {
	nc *nats.Conn
}

func New(nc *nats.Conn) *Bus {
	return &Bus{nc: nc}
}

func (b *Bus) PublishMessageCreated(_ context.Context, ev MessageCreated) error {
	data, err := msgpack.Marshal(ev)
	if err != nil {
		return fmt.Errorf("msgpack marshal message created event: %w", err)
	}

	if err := b.nc.Publish(subjectMessageCreated, data); err != nil {
		return fmt.Errorf("nats publish message created event: %w", err)
	}

	return nil
}

// SubscribeMessageCreated delivers decoded events to fn until the returned
// unsubscribe func is called. Undecodable payloads go to errFn.
func (b *Bus) SubscribeMessageCreated(fn func(MessageCreated), errFn func(error)) (func() error, error) {
	sub, err := b.nc.Subscribe(subjectMessageCreated, func(msg *nats.Msg) {
		var ev MessageCreated
		if err := msgpack.Unmarshal(msg.Data, &ev); err != nil {
			errFn(fmt.Errorf("msgpack unmarshal message created event: %w", err))
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe message created: %w", err)
	}

	return sub.Unsubscribe, nil
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// DefaultChannel is the pub/sub channel instances share.
const DefaultChannel = "convosync:changes"

const relayQueue = 256

// envelope tags a relayed change with the instance that produced it so the
// producer can skip its own echo.
type envelope struct {
	Origin string `json:"origin"`
	Change Change `json:"change"`
}

// ValkeyRelay copies locally published changes to a valkey channel and
// delivers changes from other instances into the local broker.
type ValkeyRelay struct {
	client  valkey.Client
	channel string
	origin  string
	broker  *Broker
	queue   chan []byte
}

// NewValkeyRelay connects to addr and attaches the relay to broker as its
// forwarder. Call Run to start moving messages.
func NewValkeyRelay(addr, channel string, broker *Broker) (*ValkeyRelay, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return newValkeyRelay(client, channel, broker), nil
}

func newValkeyRelay(client valkey.Client, channel string, broker *Broker) *ValkeyRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	r := &ValkeyRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		broker:  broker,
		queue:   make(chan []byte, relayQueue),
	}
	broker.SetForwarder(r)
	return r
}

// Forward queues c for publishing. It never blocks; when the queue is full the
// change stays local and other instances see a gap.
func (r *ValkeyRelay) Forward(c Change) {
	b, err := json.Marshal(envelope{Origin: r.origin, Change: c})
	if err != nil {
		log.Errorf("relay marshal: %v", err)
		return
	}
	select {
	case r.queue <- b:
	default:
		log.Warningf("relay queue full, dropping %s %s", c.Table, c.Op)
	}
}

// Run publishes queued changes and receives remote ones until ctx is done.
func (r *ValkeyRelay) Run(ctx context.Context) error {
	go r.publishLoop(ctx)

	for {
		err := r.client.Receive(ctx, r.client.B().Subscribe().Channel(r.channel).Build(), r.handle)
		if ctx.Err() != nil {
			return nil
		}
		log.Warningf("relay subscription ended: %v; retrying", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

func (r *ValkeyRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-r.queue:
			cmd := r.client.B().Publish().Channel(r.channel).Message(string(b)).Build()
			if err := r.client.Do(ctx, cmd).Error(); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("relay publish: %v", err)
			}
		}
	}
}

func (r *ValkeyRelay) handle(msg valkey.PubSubMessage) {
	env, ok := r.decode(msg.Message)
	if !ok {
		return
	}
	r.broker.Deliver(env.Change)
}

// decode parses a relayed payload and reports whether it should be delivered
// locally.
func (r *ValkeyRelay) decode(payload string) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warningf("relay: bad payload: %v", err)
		return env, false
	}
	if env.Origin == r.origin {
		return env, false
	}
	return env, true
}

// Close disconnects from valkey.
func (r *ValkeyRelay) Close() {
	r.client.Close()
}

// Package mq carries content change events over RabbitMQ or Google Cloud
// Pub/Sub.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/portfolio-cms/apiserver/config"
	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/types"
)

const (
	// eventTypeAttr carries the event type next to the body so consumers
	// can route without decoding.
	eventTypeAttr   = "event_type"
	jsonContentType = "application/json"
)

var errInvalidEvent = errors.New("invalid content event")

// Delivery is a content event received from the broker.
type Delivery struct {
	MessageID string
	Event     types.ContentEvent
}

// EventHandler is called once per delivered event. Deliveries are
// acknowledged on receipt and never redelivered.
type EventHandler func(ctx context.Context, d Delivery)

// received is an encoded event as read off a transport.
type received struct {
	id        string
	eventType types.EventType
	body      []byte
}

// transport moves encoded events over one broker channel.
type transport interface {
	send(ctx context.Context, eventType types.EventType, body []byte) (string, error)
	receive(ctx context.Context, fn func(msg received)) error
	Close() error
}

// Events publishes and consumes content events on the configured channel.
type Events struct {
	transport transport
	channel   string
}

// Open connects to the broker selected by cfg.Backend. It returns nil and no
// error when no backend is configured.
func Open(ctx context.Context, cfg config.MQConfig) (*Events, error) {
	channel := strings.TrimSpace(cfg.EventsChannel)

	var (
		t   transport
		err error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case config.MQRabbitMQ:
		t, err = newRabbitTransport(cfg.RabbitMQ, channel)
	case config.MQPubSub:
		t, err = newPubSubTransport(ctx, cfg.PubSub, channel)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s: %w", cfg.Backend, err)
	}
	return &Events{transport: t, channel: channel}, nil
}

// Channel returns the queue or topic name events travel on.
func (e *Events) Channel() string {
	return e.channel
}

// Publish sends evt and returns the broker's message id.
func (e *Events) Publish(ctx context.Context, evt types.ContentEvent) (string, error) {
	if evt.Type == "" || evt.ResourceID < 1 {
		return "", errInvalidEvent
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return e.transport.send(ctx, evt.Type, body)
}

// Tail delivers events to handler until ctx is done. When only is non-empty,
// events of other types are dropped before decoding. Undecodable messages
// are logged and skipped.
func (e *Events) Tail(ctx context.Context, handler EventHandler, only ...types.EventType) error {
	wanted := make(map[types.EventType]bool, len(only))
	for _, t := range only {
		wanted[t] = true
	}
	accept := func(t types.EventType) bool {
		return len(wanted) == 0 || wanted[t]
	}

	logger := logutil.GetOrDefault(ctx)
	err := e.transport.receive(ctx, func(msg received) {
		if msg.eventType != "" && !accept(msg.eventType) {
			return
		}
		evt, err := decodeEvent(msg.body)
		if err != nil {
			logger.Warn().Err(err).Str("message_id", msg.id).Msg("skip undecodable event")
			return
		}
		if msg.eventType == "" && !accept(evt.Type) {
			return
		}
		handler(ctx, Delivery{MessageID: msg.id, Event: evt})
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the broker connection.
func (e *Events) Close() error {
	return e.transport.Close()
}

func decodeEvent(body []byte) (types.ContentEvent, error) {
	var evt types.ContentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return types.ContentEvent{}, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if evt.Type == "" || evt.ResourceID < 1 {
		return types.ContentEvent{}, errInvalidEvent
	}
	return evt, nil
}

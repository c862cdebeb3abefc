package mq

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/portfolio-cms/apiserver/config"
	"github.com/portfolio-cms/apiserver/types"
	amqp "github.com/rabbitmq/amqp091-go"
)

// rabbitTransport publishes to and consumes from a single declared queue
// through the default exchange.
type rabbitTransport struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	queue   string
	durable bool
}

func newRabbitTransport(cfg config.RabbitMQConfig, queue string) (*rabbitTransport, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if queue == "" {
		return nil, errors.New("events channel is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, cfg.QueueDurable, cfg.QueueAutoDelete, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &rabbitTransport{
		conn:    conn,
		ch:      ch,
		queue:   queue,
		durable: cfg.QueueDurable,
	}, nil
}

func (r *rabbitTransport) send(ctx context.Context, eventType types.EventType, body []byte) (string, error) {
	msg := rabbitPublishing(eventType, body, r.durable)
	if err := r.ch.PublishWithContext(ctx, "", r.queue, false, false, msg); err != nil {
		return "", err
	}
	return msg.MessageId, nil
}

func (r *rabbitTransport) receive(ctx context.Context, fn func(msg received)) error {
	tag := "events-tail-" + uuid.NewString()
	deliveries, err := r.ch.ConsumeWithContext(ctx, r.queue, tag, true, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = r.ch.Cancel(tag, false)
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			fn(received{
				id:        d.MessageId,
				eventType: rabbitEventType(d),
				body:      d.Body,
			})
		}
	}
}

func (r *rabbitTransport) Close() error {
	_ = r.ch.Close()
	return r.conn.Close()
}

func rabbitPublishing(eventType types.EventType, body []byte, persistent bool) amqp.Publishing {
	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}
	return amqp.Publishing{
		ContentType:  jsonContentType,
		DeliveryMode: mode,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         string(eventType),
		Headers:      amqp.Table{eventTypeAttr: string(eventType)},
		Body:         body,
	}
}

// rabbitEventType prefers the AMQP type property and falls back to the
// header set by other publishers.
func rabbitEventType(d amqp.Delivery) types.EventType {
	if d.Type != "" {
		return types.EventType(d.Type)
	}
	switch v := d.Headers[eventTypeAttr].(type) {
	case string:
		return types.EventType(v)
	case []byte:
		return types.EventType(v)
	}
	return ""
}

package mq

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/portfolio-cms/apiserver/config"
	"github.com/portfolio-cms/apiserver/types"
	"google.golang.org/api/option"
)

const defaultSubscriptionSuffix = "-sub"

// pubsubTransport publishes to one topic and tails it through a single
// named subscription.
type pubsubTransport struct {
	client       *pubsub.Client
	topic        *pubsub.Topic
	subscription string
}

func newPubSubTransport(ctx context.Context, cfg config.PubSubConfig, topicName string) (*pubsubTransport, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if topicName == "" {
		return nil, errors.New("events channel is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err == nil && !exists {
		topic, err = client.CreateTopic(ctx, topicName)
	}
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &pubsubTransport{
		client:       client,
		topic:        topic,
		subscription: subscriptionName(topicName, cfg.SubscriptionSuffix),
	}, nil
}

func (p *pubsubTransport) send(ctx context.Context, eventType types.EventType, body []byte) (string, error) {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: pubsubAttributes(eventType),
	})
	return result.Get(ctx)
}

func (p *pubsubTransport) receive(ctx context.Context, fn func(msg received)) error {
	sub := p.client.Subscription(p.subscription)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, p.subscription, pubsub.SubscriptionConfig{Topic: p.topic})
		if err != nil {
			return err
		}
	}

	return sub.Receive(ctx, func(_ context.Context, m *pubsub.Message) {
		m.Ack()
		fn(received{
			id:        m.ID,
			eventType: types.EventType(m.Attributes[eventTypeAttr]),
			body:      m.Data,
		})
	})
}

func (p *pubsubTransport) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func pubsubAttributes(eventType types.EventType) map[string]string {
	return map[string]string{
		eventTypeAttr:  string(eventType),
		"content_type": jsonContentType,
	}
}

func subscriptionName(topic, suffix string) string {
	if suffix == "" {
		suffix = defaultSubscriptionSuffix
	}
	return topic + suffix
}

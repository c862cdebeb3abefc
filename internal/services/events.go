package services

import (
	"context"
	"time"

	"github.com/portfolio-cms/apiserver/internal/logutil"
	"github.com/portfolio-cms/apiserver/types"
)

const publishTimeout = 5 * time.Second

// EventPublisher sends content events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, evt types.ContentEvent) (string, error)
}

// Notifier publishes content change events. A nil Notifier is a no-op.
type Notifier struct {
	publisher EventPublisher
	now       func() time.Time
}

func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		now:       time.Now,
	}
}

// Notify publishes an event for the resource. Failures are logged and
// otherwise ignored; content writes never fail because of the broker.
func (n *Notifier) Notify(ctx context.Context, eventType types.EventType, resourceID int) {
	if n == nil || n.publisher == nil {
		return
	}
	logger := logutil.GetOrDefault(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	id, err := n.publisher.Publish(ctx, types.ContentEvent{
		Type:       eventType,
		ResourceID: resourceID,
		OccurredAt: n.now().UTC(),
	})
	if err != nil {
		logger.Warn().Err(err).Str("event", string(eventType)).Int("resource_id", resourceID).Msg("publish content event")
		return
	}
	logger.Debug().Str("event", string(eventType)).Str("message_id", id).Msg("content event published")
}

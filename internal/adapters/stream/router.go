package stream

import (
	"context"
	"log/slog"

	"github.com/bnema/pttsync/internal/ports"
)

// Router decodes data payloads for one topic and forwards the results to the
// subscriber through the shared dispatcher. Decode failures are logged and
// dropped; they never reach the connection.
type Router struct {
	topic      Topic
	subscriber ports.EventSubscriber
	dispatcher *Dispatcher
	metrics    ports.StreamMetrics
	logger     *slog.Logger
}

func NewRouter(topic Topic, subscriber ports.EventSubscriber, dispatcher *Dispatcher, metrics ports.StreamMetrics, logger *slog.Logger) *Router {
	if metrics == nil {
		metrics = ports.NopStreamMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		topic:      topic,
		subscriber: subscriber,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger.With("topic", topic.Name),
	}
}

// Route decodes payload and queues it for the subscriber. live, when set, is
// checked again at delivery so events from a stopped connection are dropped
// even if they were queued before Stop.
func (r *Router) Route(ctx context.Context, payload string, live func() bool) {
	event, err := r.topic.Decode([]byte(payload))
	if err != nil {
		r.metrics.DecodeFailed(r.topic.Name)
		r.logger.Warn("dropping undecodable frame", "error", err, "bytes", len(payload))
		return
	}
	if event == nil {
		r.logger.Debug("ignoring unknown event")
		return
	}

	topic := r.topic.Name
	posted := r.dispatcher.Post(ctx, func() {
		if live != nil && !live() {
			r.logger.Debug("dropping event from stale connection", "event", event.Name())
			return
		}
		r.subscriber.OnEvent(topic, event)
	})
	if posted {
		r.metrics.EventDispatched(topic, event.Name())
	}
}

// ConnectionChanged is delivered even when ctx is already cancelled, since
// teardown paths must still report the disconnect.
func (r *Router) ConnectionChanged(connected bool) {
	topic := r.topic.Name
	r.dispatcher.Post(context.Background(), func() {
		r.subscriber.OnConnectionChange(topic, connected)
	})
}

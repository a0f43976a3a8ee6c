package transport

import (
	"log/slog"

	json "github.com/goccy/go-json"
)

type topicPublisher[T any] struct {
	hub   *Hub
	topic string
}

// NewPublisher binds a typed publisher to one hub topic.
func NewPublisher[T any](h *Hub, topic string) Publisher[T] {
	return &topicPublisher[T]{hub: h, topic: topic}
}

func (p *topicPublisher[T]) Publish(v T) {
	data, err := json.Marshal(v)
	if err != nil {
		p.hub.log.Error("marshal publish failed",
			slog.String("topic", p.topic), slog.Any("error", err))
		return
	}
	p.hub.broadcast(p.topic, data)
}

func (p *topicPublisher[T]) RegisterSnapshot(fn func() []T) {
	p.hub.registerSnapshot(p.topic, func() []json.RawMessage {
		items := fn()
		out := make([]json.RawMessage, 0, len(items))
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				p.hub.log.Error("marshal snapshot failed",
					slog.String("topic", p.topic), slog.Any("error", err))
				continue
			}
			out = append(out, data)
		}
		return out
	})
}

type topicReceiver[T any] struct {
	hub   *Hub
	topic string
}

// NewReceiver binds a typed receiver to one hub topic. Handlers run on the
// engine loop.
func NewReceiver[T any](h *Hub, topic string) Receiver[T] {
	return &topicReceiver[T]{hub: h, topic: topic}
}

func (r *topicReceiver[T]) RegisterReceiver(fn func(T)) {
	r.hub.registerReceiver(r.topic, func(raw json.RawMessage) {
		var v T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &v); err != nil {
				r.hub.log.Warn("malformed command payload",
					slog.String("topic", r.topic), slog.Any("error", err))
				return
			}
		}
		fn(v)
	})
}

package mq

import (
	"context"
	"fmt"

	"github.com/icard-hq/apiserver/config"
)

// FromConfig constructs the configured event publisher. A nil publisher is
// returned when no backend is configured; publishing through it is a no-op.
func FromConfig(ctx context.Context, cfg config.EventsConfig) (*Publisher, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := NewRabbitBackend(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend, cfg.Channel), nil
	case "pubsub":
		backend, err := NewPubSubBackend(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend, cfg.Channel), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/icard-hq/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitBackend delivers card events through a RabbitMQ queue. One queue per
// channel, declared on first use.
type RabbitBackend struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	durable bool
	autoDel bool
}

func NewRabbitBackend(cfg config.RabbitMQConfig) (*RabbitBackend, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
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
	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitBackend{
		conn:    conn,
		channel: ch,
		durable: cfg.QueueDurable,
		autoDel: cfg.QueueAutoDelete,
	}, nil
}

func (b *RabbitBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := b.declare(channel); err != nil {
		return "", err
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	id := uuid.NewString()
	err := b.channel.PublishWithContext(ctx, "", channel, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   id,
		Headers:     headers,
		Body:        data,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (b *RabbitBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := b.declare(channel); err != nil {
		return err
	}

	tag := "icard-" + uuid.NewString()
	deliveries, err := b.channel.Consume(channel, tag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.channel.Cancel(tag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: tableToAttrs(delivery.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

func (b *RabbitBackend) Close() error {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *RabbitBackend) declare(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	_, err := b.channel.QueueDeclare(channel, b.durable, b.autoDel, false, false, nil)
	return err
}

func tableToAttrs(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		if s, ok := value.(string); ok {
			attrs[key] = s
			continue
		}
		attrs[key] = fmt.Sprint(value)
	}
	return attrs
}

// Package events publishes price ticks to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/domain"
)

// Publisher sends ticks to a topic exchange. A nil Publisher discards
// everything, so callers need no broker in development.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewPublisher connects to url. An empty url returns a nil publisher.
func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbit: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// RoutingKey is the key a tick of productID is published under.
func RoutingKey(productID string) string {
	return "price.tick." + productID
}

func (p *Publisher) PublishTick(ctx context.Context, t domain.PriceTick) error {
	if p == nil || p.ch == nil {
		return nil
	}
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode tick: %w", err)
	}
	return p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(t.ProductID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   t.EmittedAt,
	})
}

// Run publishes every tick until ticks is closed or ctx is done.
func (p *Publisher) Run(ctx context.Context, ticks <-chan domain.PriceTick) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := p.PublishTick(pctx, t); err != nil {
				log.Warn().Str("component", "events").Str("product_id", t.ProductID).
					Err(err).Msg("publish tick failed")
			}
			cancel()
		}
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

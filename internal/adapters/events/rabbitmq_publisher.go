package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Endgame-Tech/choma-sub014/internal/platform/obs"
	"github.com/Endgame-Tech/choma-sub014/internal/ports"
	"github.com/rabbitmq/amqp091-go"
)

// Routing key of the chef workload event.
const DailyWorkloadCompletedKey = "chef.daily_workload.completed"

// amqpChannel is the subset of *amqp091.Channel the publisher uses.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitMQPublisher sends domain events to a topic exchange as JSON.
// A channel is not safe for concurrent publishing, so calls are serialized.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  amqpChannel
	exchange string
	declared bool
	logger   *slog.Logger
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewRabbitMQPublisher(amqpURL, exchange string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: %w", err)
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: dial: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq publisher: open channel: %w", err)
	}

	p := newPublisher(channel, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(channel amqpChannel, exchange string, logger *slog.Logger) *RabbitMQPublisher {
	if strings.TrimSpace(exchange) == "" {
		exchange = "meal_timeline_events"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RabbitMQPublisher{channel: channel, exchange: exchange, logger: logger}
}

func (p *RabbitMQPublisher) PublishDailyWorkloadCompleted(ctx context.Context, evt ports.DailyWorkloadCompleted) (err error) {
	defer obs.Time(ctx, "events.PublishDailyWorkloadCompleted")(&err)
	return p.publish(ctx, DailyWorkloadCompletedKey, evt.EventID, evt)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey, messageID string, body any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("publish %s: encode: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		err := p.channel.ExchangeDeclare(
			p.exchange, // name
			"topic",    // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("publish %s: declare exchange %q: %w", routingKey, p.exchange, err)
		}
		p.declared = true
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         jsonBody,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.Info("event published", "exchange", p.exchange, "routing_key", routingKey, "message_id", messageID)
	return nil
}

// Close closes the channel and connection.
func (p *RabbitMQPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

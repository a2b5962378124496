package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// RabbitDispatcher publishes transition events to a fanout exchange so
// any number of notification consumers (dashboard bell, customer
// messages) can subscribe.
type RabbitDispatcher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

func NewRabbitDispatcher(url, exchange string) (*RabbitDispatcher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitDispatcher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (d *RabbitDispatcher) Dispatch(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal %s: %v", ev.Event, err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = d.channel.PublishWithContext(pubCtx,
		d.exchange,
		"", // routing key
		false,
		false,
		amqp091.Publishing{
			DeliveryMode: amqp091.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		})
	if err != nil {
		log.Printf("notify: publish %s for order %s: %v", ev.Event, ev.OrderNumber, err)
	}
}

func (d *RabbitDispatcher) Close() {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		d.conn.Close()
	}
}

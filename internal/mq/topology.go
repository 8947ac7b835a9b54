package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — push-события POS. Fanout: каждая доска получает все события.
	ExchangeEvents Exchange = "liveboard.events"
)

// RoutingKeyEvents — ключ публикации (fanout его игнорирует).
const RoutingKeyEvents RoutingKey = "events"

// SetupTopology объявляет обменник событий.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return declareExchanges(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEvents), // name
		amqp.ExchangeFanout,    // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}

// declareEventQueue создаёт эксклюзивную очередь этого экземпляра и привязывает её
// к обменнику событий. Очередь живёт, пока живо соединение, поэтому после
// reconnect объявляется заново.
func declareEventQueue(ch *amqp.Channel) (Queue, error) {
	if err := declareExchanges(ch); err != nil {
		return "", err
	}

	q, err := ch.QueueDeclare(
		"",    // name (генерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare event queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,                   // queue name
		string(RoutingKeyEvents), // routing key
		string(ExchangeEvents),   // exchange
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return "", fmt.Errorf("bind queue %s to %s: %w", q.Name, ExchangeEvents, err)
	}

	return Queue(q.Name), nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Liveboard RabbitMQ Topology:

    liveboard.events (fanout)
    └── amq.gen-* [exclusive, auto-delete, one per dashboard instance]
            Messages: orders_updated, order_closed
            Producers: POS backend, sibling dashboards (order_closed)
  `
}

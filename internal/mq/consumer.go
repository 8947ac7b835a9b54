package mq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Liveboard/internal/events"
)

// SourceName — имя источника в событиях и метриках.
const SourceName = "amqp"

// EventConsumer потребляет push-события из обменника liveboard.events.
//
// Реализует events.Source: каждое сообщение превращается в events.Event,
// каждое переподключение к RabbitMQ — в событие connect.
type EventConsumer struct {
	conn     *Connection
	logger   *slog.Logger
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewEventConsumer создаёт новый EventConsumer.
func NewEventConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *EventConsumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &EventConsumer{
		conn:     conn,
		logger:   logger,
		prefetch: prefetch,
	}
}

// Name возвращает имя источника.
func (c *EventConsumer) Name() string {
	return SourceName
}

// Run запускает потребление событий. Блокируется до отмены ctx.
func (c *EventConsumer) Run(ctx context.Context, handle events.Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.consume(ctx, handle)
}

// consume — основной цикл потребления.
func (c *EventConsumer) consume(ctx context.Context, handle events.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Получаем канал доставки
		deliveries, queue, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
			if err := c.awaitReconnect(ctx, handle); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("event consumer started", "queue", queue)

		// Обрабатываем сообщения
		if err := c.processDeliveries(ctx, deliveries, handle); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, waiting for reconnect", "queue", queue)
			if err := c.awaitReconnect(ctx, handle); err != nil {
				return err
			}
		}
	}
}

// awaitReconnect ждёт переподключения и сообщает о нём как о событии connect:
// за время разрыва события могли потеряться.
func (c *EventConsumer) awaitReconnect(ctx context.Context, handle events.Handler) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting event consumer")
		handle(events.Event{Name: events.Connect, Source: SourceName})
		return nil
	}
}

// setupConsume объявляет очередь экземпляра и начинает потребление.
func (c *EventConsumer) setupConsume() (<-chan amqp.Delivery, Queue, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, "", fmt.Errorf("no channel available")
	}

	// Устанавливаем prefetch
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, "", fmt.Errorf("set qos: %w", err)
	}

	queue, err := declareEventQueue(ch)
	if err != nil {
		return nil, "", err
	}

	// Начинаем потребление
	deliveries, err := ch.Consume(
		string(queue), // queue
		"",            // consumer tag (auto-generated)
		false,         // auto-ack (мы ack вручную)
		true,          // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return nil, "", fmt.Errorf("consume: %w", err)
	}

	return deliveries, queue, nil
}

// processDeliveries обрабатывает сообщения из канала.
func (c *EventConsumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery, handle events.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.handleDelivery(raw, handle)
		}
	}
}

// handleDelivery обрабатывает одно сообщение.
func (c *EventConsumer) handleDelivery(raw amqp.Delivery, handle events.Handler) {
	ev, err := DecodeDelivery(raw.Type, raw.Body)
	if err != nil {
		c.logger.Warn("dropping undecodable event",
			"message_id", raw.MessageId,
			"error", err,
			"body", string(raw.Body),
		)
		// Повтор не поможет — отбрасываем
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("received event",
		"message_id", raw.MessageId,
		"event", ev.Name,
		"order_id", ev.OrderID,
	)

	handle(ev)
	raw.Ack(false)
}

// DecodeDelivery разбирает тело сообщения в событие.
//
// Поддерживаются конверт Message {id, type, payload, timestamp}
// и «голый» payload с именем события в свойстве type AMQP-сообщения.
func DecodeDelivery(amqpType string, body []byte) (events.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		if amqpType == "" {
			return events.Event{}, errors.New("empty message without event type")
		}
		return events.Decode(SourceName, amqpType, nil)
	}

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", events.ErrInvalidPayload, err)
	}

	if msg.Type != "" {
		return events.Decode(SourceName, msg.Type, msg.Payload)
	}
	if amqpType != "" {
		return events.Decode(SourceName, amqpType, body)
	}
	return events.Event{}, errors.New("message has no event type")
}

// Close останавливает consumer. Соединение закрывает владелец.
func (c *EventConsumer) Close() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	return nil
}

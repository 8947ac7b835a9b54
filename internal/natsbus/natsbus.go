// Package natsbus — источник push-событий поверх NATS.
//
// События публикуются в subject "<prefix>.<event>", например
// "liveboard.events.order_closed" с payload {orderId}.
// Переподключение клиента доставляется как событие connect.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/events"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// SourceName — имя источника в событиях и метриках.
const SourceName = "nats"

// DefaultSubjectPrefix — префикс subject событий.
const DefaultSubjectPrefix = "liveboard.events"

// Bus — подключение к NATS: источник событий и публикация order_closed.
type Bus struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger

	// reconnects получает сигнал из обработчика переподключения клиента.
	reconnects chan struct{}
}

// Config — конфигурация Bus.
type Config struct {
	URL           string
	SubjectPrefix string // default: liveboard.events
	Name          string // имя клиента (default: liveboard)
	Logger        *slog.Logger
}

// Connect подключается к NATS.
func Connect(cfg Config) (*Bus, error) {
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	name := cfg.Name
	if name == "" {
		name = "liveboard"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bus{
		prefix:     prefix,
		logger:     logger,
		reconnects: make(chan struct{}, 1),
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("reconnected to NATS", "url", c.ConnectedUrl())
			select {
			case b.reconnects <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.conn = conn

	logger.Info("connected to NATS", "url", conn.ConnectedUrl(), "subject_prefix", prefix)
	return b, nil
}

// Name возвращает имя источника.
func (b *Bus) Name() string {
	return SourceName
}

// Run подписывается на "<prefix>.>" и передаёт события в handle до отмены ctx.
func (b *Bus) Run(ctx context.Context, handle events.Handler) error {
	msgs := make(chan *nats.Msg, 64)

	sub, err := b.conn.ChanSubscribe(b.prefix+".>", msgs)
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", b.prefix, err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-b.reconnects:
			handle(events.Event{Name: events.Connect, Source: SourceName})

		case msg := <-msgs:
			ev, err := b.decode(msg)
			if err != nil {
				b.logger.Warn("dropping undecodable event", "subject", msg.Subject, "error", err)
				continue
			}
			handle(ev)
		}
	}
}

func (b *Bus) decode(msg *nats.Msg) (events.Event, error) {
	name := strings.TrimPrefix(msg.Subject, b.prefix+".")
	return events.Decode(SourceName, name, msg.Data)
}

// OrderClosed публикует order_closed для соседних досок.
// Реализует orders.Notifier.
func (b *Bus) OrderClosed(ctx context.Context, orderID int64) error {
	payload, err := json.Marshal(events.OrderClosedPayload{
		OrderID: domain.FlexID(strconv.FormatInt(orderID, 10)),
	})
	if err != nil {
		return fmt.Errorf("marshal order_closed: %w", err)
	}
	subject := b.prefix + "." + string(events.OrderClosed)

	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	telemetry.WithOrderID(b.logger, orderID).Debug("published order_closed", "subject", subject)
	return nil
}

// Close закрывает соединение.
func (b *Bus) Close() error {
	if b.conn != nil && !b.conn.IsClosed() {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
			return fmt.Errorf("drain NATS connection: %w", err)
		}
	}
	return nil
}

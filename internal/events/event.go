package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shaiso/Liveboard/internal/domain"
)

var (
	// ErrUnknownEvent — событие с неизвестным именем.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidPayload — payload события не удалось разобрать.
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Name — имя push-события.
type Name string

const (
	// OrdersUpdated — коллекция заказов изменилась (payload не нужен).
	OrdersUpdated Name = "orders_updated"

	// OrderClosed — заказ закрыт, payload {orderId}.
	OrderClosed Name = "order_closed"

	// Connect — транспорт переподключился, нужно пересинхронизироваться.
	Connect Name = "connect"
)

// Event — push-событие.
type Event struct {
	Name Name

	// OrderID — id заказа для order_closed.
	OrderID int64

	// Source — транспорт, доставивший событие (amqp, nats).
	Source string
}

// Handler обрабатывает событие.
type Handler func(ev Event)

// Source — транспорт push-событий.
//
// Run блокируется до отмены ctx или фатальной ошибки и вызывает handle
// на каждое событие. Переподключение транспорта доставляется как Connect.
type Source interface {
	Name() string
	Run(ctx context.Context, handle Handler) error
	Close() error
}

// OrderClosedPayload — payload события order_closed.
type OrderClosedPayload struct {
	OrderID domain.FlexID `json:"orderId"`
}

// Decode разбирает событие из имени и JSON payload.
func Decode(source, name string, payload []byte) (Event, error) {
	ev := Event{Name: Name(strings.ToLower(strings.TrimSpace(name))), Source: source}

	switch ev.Name {
	case OrdersUpdated, Connect:
		return ev, nil

	case OrderClosed:
		var p struct {
			OrderID      domain.FlexID `json:"orderId"`
			OrderIDSnake domain.FlexID `json:"order_id"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
			}
		}

		raw := p.OrderID.Normalized()
		if raw == "" {
			raw = p.OrderIDSnake.Normalized()
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Event{}, fmt.Errorf("%w: order id %q", ErrInvalidPayload, raw)
		}
		ev.OrderID = id
		return ev, nil

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

package domain

import "strings"

// OrderStatus — статус заказа на стороне POS.
//
// Жизненный цикл:
//
//	DRAFT → CONFIRMED → CLOSED
//	      ↘           ↘ CANCELLED
type OrderStatus string

const (
	// OrderStatusDraft — заказ создан, но ещё не подтверждён (позиции могут отсутствовать).
	OrderStatusDraft OrderStatus = "draft"

	// OrderStatusConfirmed — заказ подтверждён и находится в работе.
	OrderStatusConfirmed OrderStatus = "confirmed"

	// OrderStatusClosed — заказ закрыт (оплачен/доставлен).
	OrderStatusClosed OrderStatus = "closed"

	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal возвращает true, если статус финальный (заказ уходит с доски).
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusClosed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseOrderStatus парсит строку в OrderStatus.
// Неизвестные значения возвращаются как есть, в нижнем регистре.
func ParseOrderStatus(s string) OrderStatus {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "draft":
		return OrderStatusDraft
	case "confirmed":
		return OrderStatusConfirmed
	case "closed":
		return OrderStatusClosed
	case "cancelled", "canceled":
		return OrderStatusCancelled
	default:
		return OrderStatus(v)
	}
}

// DriverStatus — статус доставки заказа водителем.
//
// Жизненный цикл:
//
//	UNSET → ON_ROAD → DELIVERED
type DriverStatus string

const (
	// DriverStatusUnset — водитель ещё не забрал заказ.
	DriverStatusUnset DriverStatus = ""

	// DriverStatusOnRoad — заказ в пути.
	DriverStatusOnRoad DriverStatus = "on_road"

	// DriverStatusDelivered — заказ доставлен.
	DriverStatusDelivered DriverStatus = "delivered"
)

// ParseDriverStatus парсит строку в DriverStatus.
// "picked_up" нормализуется в on_road, неизвестные значения — в unset.
func ParseDriverStatus(s string) DriverStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on_road", "picked_up":
		return DriverStatusOnRoad
	case "delivered":
		return DriverStatusDelivered
	default:
		return DriverStatusUnset
	}
}

// Valid возвращает true для статусов, которые можно отправить на сервер.
func (s DriverStatus) Valid() bool {
	switch s {
	case DriverStatusUnset, DriverStatusOnRoad, DriverStatusDelivered:
		return true
	default:
		return false
	}
}

// UnmarshalText нормализует статус при декодировании JSON.
func (s *DriverStatus) UnmarshalText(text []byte) error {
	*s = ParseDriverStatus(string(text))
	return nil
}

// OrderType — канал, через который поступил заказ.
type OrderType string

const (
	OrderTypePhone    OrderType = "phone"
	OrderTypePacket   OrderType = "packet"
	OrderTypeTable    OrderType = "table"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeOnline   OrderType = "online"
)

// ParseOrderType парсит строку в OrderType.
func ParseOrderType(s string) (OrderType, bool) {
	switch t := OrderType(strings.ToLower(strings.TrimSpace(s))); t {
	case OrderTypePhone, OrderTypePacket, OrderTypeTable, OrderTypeTakeaway, OrderTypeOnline:
		return t, true
	default:
		return t, false
	}
}

// KitchenStatus — статус приготовления позиции или заказа целиком.
//
// Жизненный цикл:
//
//	NEW → PREPARING → READY → DELIVERED
type KitchenStatus string

const (
	KitchenStatusNew       KitchenStatus = "new"
	KitchenStatusPreparing KitchenStatus = "preparing"
	KitchenStatusReady     KitchenStatus = "ready"
	KitchenStatusDelivered KitchenStatus = "delivered"
)

// ParseKitchenStatus парсит строку в KitchenStatus.
// Пустые и неизвестные значения считаются new.
func ParseKitchenStatus(s string) KitchenStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preparing", "in_progress":
		return KitchenStatusPreparing
	case "ready":
		return KitchenStatusReady
	case "delivered", "served":
		return KitchenStatusDelivered
	default:
		return KitchenStatusNew
	}
}

// UnmarshalText нормализует статус при декодировании JSON.
func (s *KitchenStatus) UnmarshalText(text []byte) error {
	*s = ParseKitchenStatus(string(text))
	return nil
}

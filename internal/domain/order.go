package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order — заказ на доске доставки.
//
// Order появляется в локальной коллекции после первого успешного fetch
// и удаляется, когда закрыт/отменён или пропал из свежего списка заголовков.
//
// ID стабилен между обновлениями. Остальные поля перезаписываются только
// более новым fetch или явным оптимистичным патчем от действия пользователя.
type Order struct {
	// ID — идентификатор заказа в POS.
	ID int64 `json:"id"`

	// Status — статус заказа.
	Status OrderStatus `json:"status,omitempty"`

	// DriverStatus — статус доставки (picked_up нормализуется в on_road).
	DriverStatus DriverStatus `json:"driver_status,omitempty"`

	// OrderType — канал заказа.
	OrderType OrderType `json:"order_type,omitempty"`

	// DriverID — назначенный водитель.
	DriverID *int64 `json:"driver_id,omitempty"`

	// DriverName — имя назначенного водителя (если сервер его прислал).
	DriverName string `json:"driver_name,omitempty"`

	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Address       string          `json:"address,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Total         decimal.Decimal `json:"total"`
	ReceiptID     string          `json:"receipt_id,omitempty"`

	// UpdatedAt — время последнего изменения на сервере.
	UpdatedAt time.Time `json:"updated_at"`

	// Items — позиции заказа.
	// nil — позиции ещё не загружены (заголовок), пустой срез — загружены и их нет.
	Items []OrderItem `json:"items"`

	// KitchenStatus — производный статус кухни (см. kitchen.Rules.Rollup).
	KitchenStatus KitchenStatus `json:"kitchen_status,omitempty"`
}

// Hydrated возвращает true, если позиции заказа загружены.
func (o *Order) Hydrated() bool {
	return o.Items != nil
}

// Clone возвращает копию заказа с собственным срезом позиций.
func (o Order) Clone() Order {
	if o.Items != nil {
		o.Items = append([]OrderItem(nil), o.Items...)
	}
	if o.DriverID != nil {
		id := *o.DriverID
		o.DriverID = &id
	}
	return o
}

// OrderItem — позиция заказа.
type OrderItem struct {
	// UniqueID — идентификатор позиции; если сервер его не прислал, используется ID.
	UniqueID string `json:"unique_id,omitempty"`
	ID       FlexID `json:"id,omitempty"`

	ProductID FlexID `json:"product_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`

	// KitchenStatus — статус, который прислал сервер. Не перезаписывается исключением.
	KitchenStatus KitchenStatus `json:"kitchen_status"`

	// Excluded — позиция явно исключена сервером.
	Excluded bool `json:"excluded,omitempty"`

	// KitchenExcluded — производный признак исключения из кухонного процесса.
	KitchenExcluded bool `json:"kitchen_excluded,omitempty"`
}

// Key возвращает идентификатор позиции: unique_id или id.
func (i *OrderItem) Key() string {
	if i.UniqueID != "" {
		return i.UniqueID
	}
	return string(i.ID)
}

// EffectiveStatus возвращает статус для свёртки: исключённая позиция
// считается доставленной, исходный статус сервера при этом не меняется.
func (i *OrderItem) EffectiveStatus() KitchenStatus {
	if i.KitchenExcluded {
		return KitchenStatusDelivered
	}
	return i.KitchenStatus
}

// FlexID — идентификатор, который сервер присылает то числом, то строкой.
type FlexID string

// UnmarshalJSON принимает число или строку.
func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// Normalized возвращает каноническую форму: "12", "12.0" и " 12 " дают "12".
func (f FlexID) Normalized() string {
	s := strings.TrimSpace(string(f))
	if s == "" {
		return ""
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	// "12.0" — целое только в пределах точности float64
	if v, err := strconv.ParseFloat(s, 64); err == nil && math.Abs(v) <= maxExactFloat && v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strings.ToLower(s)
}

// maxExactFloat — 2^53, граница точного представления целых во float64.
const maxExactFloat = 1 << 53

// OrderUpdate — поля для PUT /orders/{id}. Nil-поля не отправляются.
type OrderUpdate struct {
	DriverID      *int64           `json:"driver_id,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	PaymentMethod *string          `json:"payment_method,omitempty"`
	ReceiptID     *string          `json:"receipt_id,omitempty"`
}

// Apply применяет обновление к заказу (оптимистичный локальный патч).
func (u OrderUpdate) Apply(o *Order) {
	if u.DriverID != nil {
		id := *u.DriverID
		o.DriverID = &id
	}
	if u.Total != nil {
		o.Total = *u.Total
	}
	if u.PaymentMethod != nil {
		o.PaymentMethod = *u.PaymentMethod
	}
	if u.ReceiptID != nil {
		o.ReceiptID = *u.ReceiptID
	}
}

package orders

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shaiso/Liveboard/internal/domain"
)

func byID(orders []domain.Order) map[int64]domain.Order {
	m := make(map[int64]domain.Order, len(orders))
	for _, o := range orders {
		m[o.ID] = o
	}
	return m
}

func sampleOrders() []domain.Order {
	return []domain.Order{
		{ID: 1, Status: domain.OrderStatusConfirmed, CustomerName: "Anna", Items: []domain.OrderItem{{UniqueID: "a"}}},
		{ID: 2, Status: domain.OrderStatusDraft, Total: decimal.RequireFromString("12.50")},
	}
}

// --- Merge Tests ---

func TestMerge_Identity(t *testing.T) {
	prev := sampleOrders()

	if got := Merge(prev, nil, FieldsAll); !reflect.DeepEqual(got, prev) {
		t.Errorf("merge(prev, nil) = %+v, want prev", got)
	}
	if got := Merge(prev, []domain.Order{}, FieldsAll); !reflect.DeepEqual(got, prev) {
		t.Errorf("merge(prev, []) = %+v, want prev", got)
	}
}

func TestMerge_AssociativeOverDisjointIDs(t *testing.T) {
	prev := sampleOrders()
	a := []domain.Order{
		{ID: 1, DriverStatus: domain.DriverStatusOnRoad},
		{ID: 3, Status: domain.OrderStatusConfirmed},
	}
	b := []domain.Order{
		{ID: 2, Status: domain.OrderStatusConfirmed},
		{ID: 4, CustomerName: "Boris"},
	}

	stepwise := Merge(Merge(prev, a, FieldsAll), b, FieldsAll)
	union := Merge(prev, append(append([]domain.Order{}, b...), a...), FieldsAll)

	if !reflect.DeepEqual(byID(stepwise), byID(union)) {
		t.Errorf("merge is not associative:\n  stepwise: %+v\n  union:    %+v", byID(stepwise), byID(union))
	}
	if len(stepwise) != 4 {
		t.Errorf("expected 4 orders, got %d", len(stepwise))
	}
}

func TestMerge_ItemsKeepHeaderFields(t *testing.T) {
	prev := []domain.Order{{
		ID:           1,
		Status:       domain.OrderStatusConfirmed,
		DriverStatus: domain.DriverStatusOnRoad, // локальный патч
		Items:        []domain.OrderItem{{UniqueID: "a"}},
	}}
	incoming := []domain.Order{{
		ID:            1,
		Items:         []domain.OrderItem{{UniqueID: "b"}},
		KitchenStatus: domain.KitchenStatusReady,
	}}

	got := Merge(prev, incoming, FieldsItems)[0]

	if got.DriverStatus != domain.DriverStatusOnRoad || got.Status != domain.OrderStatusConfirmed {
		t.Errorf("header fields absent from incoming should survive, got %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].UniqueID != "b" {
		t.Errorf("expected items overlay, got %+v", got.Items)
	}
	if got.KitchenStatus != domain.KitchenStatusReady {
		t.Errorf("expected kitchen status overlay, got %q", got.KitchenStatus)
	}
}

func TestMerge_HeaderReplacesZeroValues(t *testing.T) {
	driver := int64(5)
	prev := []domain.Order{{
		ID:            1,
		Status:        domain.OrderStatusConfirmed,
		DriverStatus:  domain.DriverStatusOnRoad,
		DriverID:      &driver,
		ReceiptID:     "R-1",
		Total:         decimal.RequireFromString("10"),
		Items:         []domain.OrderItem{{UniqueID: "a"}},
		KitchenStatus: domain.KitchenStatusPreparing,
	}}
	incoming := []domain.Order{{
		ID:        1,
		Status:    domain.OrderStatusConfirmed,
		Address:   "Main St 1",
		UpdatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}}

	got := Merge(prev, incoming, FieldsHeader)[0]

	if got.DriverStatus != domain.DriverStatusUnset || got.DriverID != nil {
		t.Errorf("driver should be cleared, got status=%q id=%v", got.DriverStatus, got.DriverID)
	}
	if got.ReceiptID != "" || !got.Total.IsZero() {
		t.Errorf("zero values from the header should be applied, got receipt=%q total=%s", got.ReceiptID, got.Total)
	}
	if got.Address != "Main St 1" {
		t.Errorf("expected address overlay, got %q", got.Address)
	}
	if len(got.Items) != 1 || got.KitchenStatus != domain.KitchenStatusPreparing {
		t.Errorf("header without items should keep items and kitchen status, got %+v", got)
	}
}

func TestMerge_DoesNotMutatePrev(t *testing.T) {
	prev := sampleOrders()
	Merge(prev, []domain.Order{{ID: 1, CustomerName: "Changed"}}, FieldsAll)

	if prev[0].CustomerName != "Anna" {
		t.Error("prev must not be modified")
	}
}

func TestMerge_EmptyItemsReplace(t *testing.T) {
	prev := sampleOrders()
	got := byID(Merge(prev, []domain.Order{{ID: 1, Items: []domain.OrderItem{}}}, FieldsItems))

	if got[1].Items == nil || len(got[1].Items) != 0 {
		t.Errorf("hydrated empty items should replace previous, got %+v", got[1].Items)
	}
}

// --- Retain / Without Tests ---

func TestRetain(t *testing.T) {
	got := Retain(sampleOrders(), map[int64]struct{}{2: {}, 9: {}})

	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected only order 2, got %+v", got)
	}
}

func TestWithout(t *testing.T) {
	got := Without(sampleOrders(), map[int64]struct{}{1: {}})

	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected only order 2, got %+v", got)
	}
}

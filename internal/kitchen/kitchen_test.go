package kitchen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Liveboard/internal/domain"
)

func testRules() *Rules {
	return NewRules(domain.ExclusionSettings{
		ExcludedItems:      []domain.FlexID{"12", "abc"},
		ExcludedCategories: []string{"  Desserts ", "Side   Dishes"},
	}, DefaultDrinks)
}

func item(status domain.KitchenStatus) domain.OrderItem {
	return domain.OrderItem{Name: "Pizza Margherita", Category: "Pizza", KitchenStatus: status}
}

// --- IsExcluded Tests ---

func TestIsExcluded(t *testing.T) {
	r := testRules()

	tests := []struct {
		name string
		item domain.OrderItem
		want bool
	}{
		{"plain pizza", domain.OrderItem{Name: "Pizza", Category: "Pizza", ProductID: "7"}, false},
		{"server flag excluded", domain.OrderItem{Name: "Pizza", Excluded: true}, true},
		{"server flag kitchen_excluded", domain.OrderItem{Name: "Pizza", KitchenExcluded: true}, true},
		{"category normalized", domain.OrderItem{Name: "Tiramisu", Category: "DESSERTS"}, true},
		{"category whitespace", domain.OrderItem{Name: "Fries", Category: " side dishes "}, true},
		{"numeric product id", domain.OrderItem{Name: "Salad", ProductID: "12"}, true},
		{"float product id", domain.OrderItem{Name: "Salad", ProductID: "12.0"}, true},
		{"string product id", domain.OrderItem{Name: "Salad", ProductID: "ABC"}, true},
		{"drink with hyphen", domain.OrderItem{Name: "coca cola"}, true},
		{"drink case folded", domain.OrderItem{Name: "FANTA"}, true},
		{"drink spaced", domain.OrderItem{Name: "Red-Bull"}, true},
		{"empty item", domain.OrderItem{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsExcluded(tt.item); got != tt.want {
				t.Errorf("IsExcluded(%+v) = %v, want %v", tt.item, got, tt.want)
			}
		})
	}
}

func TestIsExcluded_NilRules(t *testing.T) {
	var r *Rules

	if r.IsExcluded(domain.OrderItem{Name: "Cola"}) {
		t.Error("nil rules should only honour server flags")
	}
	if !r.IsExcluded(domain.OrderItem{Excluded: true}) {
		t.Error("server flag should work without rules")
	}
}

// --- Rollup Tests ---

func TestRollup_Empty(t *testing.T) {
	if got := testRules().Rollup(nil); got != domain.KitchenStatusNew {
		t.Errorf("rollup([]) = %s, want new", got)
	}
}

func TestRollup_AllExcluded(t *testing.T) {
	r := testRules()
	items := []domain.OrderItem{
		{Name: "Cola", KitchenStatus: domain.KitchenStatusNew},
		{Name: "Fanta", KitchenStatus: domain.KitchenStatusDelivered},
	}

	if got := r.Rollup(items); got != domain.KitchenStatusNew {
		t.Errorf("drinks-only order should roll up to new, got %s", got)
	}
	if r.RelevantCount(items) != 0 {
		t.Error("drinks-only order has no relevant items")
	}
}

func TestRollup_AllDelivered(t *testing.T) {
	r := testRules()
	items := []domain.OrderItem{
		item(domain.KitchenStatusDelivered),
		item(domain.KitchenStatusDelivered),
		{Name: "Cola", KitchenStatus: domain.KitchenStatusNew},
	}

	if got := r.Rollup(items); got != domain.KitchenStatusDelivered {
		t.Errorf("expected delivered, got %s", got)
	}
}

func TestRollup_Precedence(t *testing.T) {
	r := testRules()

	tests := []struct {
		name  string
		items []domain.OrderItem
		want  domain.KitchenStatus
	}{
		{"any ready", []domain.OrderItem{item(domain.KitchenStatusNew), item(domain.KitchenStatusReady), item(domain.KitchenStatusPreparing)}, domain.KitchenStatusReady},
		{"preparing", []domain.OrderItem{item(domain.KitchenStatusNew), item(domain.KitchenStatusPreparing)}, domain.KitchenStatusPreparing},
		{"delivered and new", []domain.OrderItem{item(domain.KitchenStatusDelivered), item(domain.KitchenStatusNew)}, domain.KitchenStatusNew},
		{"all new", []domain.OrderItem{item(domain.KitchenStatusNew)}, domain.KitchenStatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Rollup(tt.items); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAnnotate_KeepsServerStatus(t *testing.T) {
	r := testRules()
	order := domain.Order{
		ID: 1,
		Items: []domain.OrderItem{
			{Name: "Cola", KitchenStatus: domain.KitchenStatusNew},
			item(domain.KitchenStatusReady),
		},
	}

	r.Annotate(&order)

	if !order.Items[0].KitchenExcluded {
		t.Error("drink should be marked excluded")
	}
	// Исходный статус сервера не перезаписывается
	if order.Items[0].KitchenStatus != domain.KitchenStatusNew {
		t.Errorf("server status must be kept, got %s", order.Items[0].KitchenStatus)
	}
	if order.Items[0].EffectiveStatus() != domain.KitchenStatusDelivered {
		t.Error("excluded item should be effectively delivered")
	}
	if order.KitchenStatus != domain.KitchenStatusReady {
		t.Errorf("expected ready, got %s", order.KitchenStatus)
	}
}

func TestAnnotate_HeaderUntouched(t *testing.T) {
	order := domain.Order{ID: 1}
	testRules().Annotate(&order)

	if order.Items != nil || order.KitchenStatus != "" {
		t.Error("header without items should not be annotated")
	}
}

// --- RulesCache Tests ---

type fakeSettings struct {
	calls    int
	err      error
	settings domain.ExclusionSettings
}

func (f *fakeSettings) CompileSettings(context.Context) (domain.ExclusionSettings, error) {
	f.calls++
	return f.settings, f.err
}

func TestRulesCache_TTLAndFallback(t *testing.T) {
	src := &fakeSettings{settings: domain.ExclusionSettings{ExcludedCategories: []string{"desserts"}}}
	cache := NewRulesCache(src, nil, time.Minute, nil)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	rules := cache.Get(context.Background())
	if !rules.IsExcluded(domain.OrderItem{Category: "Desserts"}) {
		t.Error("loaded settings should be applied")
	}

	cache.Get(context.Background())
	if src.calls != 1 {
		t.Errorf("settings should be cached, got %d calls", src.calls)
	}

	// TTL истёк, источник падает — остаются прежние правила
	now = now.Add(2 * time.Minute)
	src.err = errors.New("unavailable")
	rules = cache.Get(context.Background())
	if src.calls != 2 {
		t.Errorf("expected reload after TTL, got %d calls", src.calls)
	}
	if !rules.IsExcluded(domain.OrderItem{Category: "Desserts"}) {
		t.Error("previous rules should be kept on failure")
	}
}

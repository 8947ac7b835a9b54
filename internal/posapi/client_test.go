package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shaiso/Liveboard/internal/cancel"
	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestListOpenOrders(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[
			{"id": 1, "status": "CONFIRMED", "driver_status": "picked_up", "total": "12.50", "items": []},
			{"id": 2, "status": "draft", "total": 3}
		]`))
	})
	c.orderTypes = []domain.OrderType{domain.OrderTypePhone}

	orders, err := c.ListOpenOrders(context.Background())
	if err != nil {
		t.Fatalf("ListOpenOrders() error = %v", err)
	}

	if gotQuery != "order_type=phone&status=open_phone" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	if orders[0].Status != domain.OrderStatusConfirmed {
		t.Errorf("status = %q, want confirmed", orders[0].Status)
	}
	if orders[0].DriverStatus != domain.DriverStatusOnRoad {
		t.Errorf("driver_status = %q, want on_road", orders[0].DriverStatus)
	}
	if !orders[0].Total.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("total = %s, want 12.5", orders[0].Total)
	}
	if orders[0].Hydrated() {
		t.Error("header must not be hydrated")
	}
}

func TestListItems_Envelope(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCount int
	}{
		{"bare", `[{"id": 1, "name": "Burger"}]`, 1},
		{"data envelope", `{"data": [{"id": 1}, {"id": 2}]}`, 2},
		{"items envelope", `{"items": [{"id": "a"}]}`, 1},
		{"nested envelope", `{"data": {"items": [{"id": 1}]}}`, 1},
		{"empty", `[]`, 0},
		{"null data", `{"data": null}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/orders/7/items" {
					t.Errorf("path = %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})

			items, err := c.ListItems(context.Background(), 7)
			if err != nil {
				t.Fatalf("ListItems() error = %v", err)
			}
			if items == nil {
				t.Fatal("items must be non-nil after a successful fetch")
			}
			if len(items) != tt.wantCount {
				t.Errorf("got %d items, want %d", len(items), tt.wantCount)
			}
		})
	}
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		code int
		want retry.Class
	}{
		{http.StatusServiceUnavailable, retry.ClassTransient},
		{http.StatusInternalServerError, retry.ClassTransient},
		{http.StatusNotFound, retry.ClassPermanent},
		{http.StatusBadRequest, retry.ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(`{"error": {"message": "boom"}}`))
			})

			_, err := c.ListOpenOrders(context.Background())

			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *StatusError", err)
			}
			if se.StatusCode() != tt.code || se.Message != "boom" {
				t.Errorf("StatusError = %+v", se)
			}
			if got := retry.Classify(err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.ListDrivers(context.Background())

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if retry.Classify(err) != retry.ClassTransient {
		t.Error("transport error must be transient")
	}
}

func TestCancelledRequest(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancelFn := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancelFn()
	}()

	_, err := c.ListItems(ctx, 1)
	if !cancel.IsCancellation(err) {
		t.Fatalf("error = %v, want cancellation", err)
	}
}

func TestCloseOrder_AlreadyClosed(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, `{}`, false},
		{"no content", http.StatusNoContent, ``, false},
		{"conflict", http.StatusConflict, `{"error": "conflict"}`, false},
		{"already closed message", http.StatusBadRequest, `{"message": "Order already closed"}`, false},
		{"other client error", http.StatusBadRequest, `{"message": "invalid order"}`, true},
		{"server error", http.StatusBadGateway, `already closed`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/orders/5/close" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			})

			err := c.CloseOrder(context.Background(), 5)
			if (err != nil) != tt.wantErr {
				t.Errorf("CloseOrder() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCancelOrder_AlreadyCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/orders/5/cancel" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "order is already cancelled"}`))
	})

	if err := c.CancelOrder(context.Background(), 5); err != nil {
		t.Errorf("CancelOrder() error = %v", err)
	}
}

func TestSetDriverStatus(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/orders/9/driver-status" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.SetDriverStatus(context.Background(), 9, domain.DriverStatusDelivered); err != nil {
		t.Fatalf("SetDriverStatus() error = %v", err)
	}
	if got["driver_status"] != "delivered" {
		t.Errorf("body = %v", got)
	}
}

func TestUpdateOrder_OmitsNilFields(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/orders/3" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	})

	driverID := int64(42)
	if err := c.UpdateOrder(context.Background(), 3, domain.OrderUpdate{DriverID: &driverID}); err != nil {
		t.Fatalf("UpdateOrder() error = %v", err)
	}
	if len(got) != 1 || got["driver_id"] != float64(42) {
		t.Errorf("body = %v, want only driver_id", got)
	}
}

func TestCompileSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"excludedItems": [12, "ABC"], "excludedCategories": ["Drinks"]}}`))
	})

	settings, err := c.CompileSettings(context.Background())
	if err != nil {
		t.Fatalf("CompileSettings() error = %v", err)
	}
	if len(settings.ExcludedItems) != 2 || settings.ExcludedItems[0] != "12" || settings.ExcludedItems[1] != "ABC" {
		t.Errorf("excludedItems = %v", settings.ExcludedItems)
	}
	if len(settings.ExcludedCategories) != 1 {
		t.Errorf("excludedCategories = %v", settings.ExcludedCategories)
	}
}

func TestDriverReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/orders/driver-report" || q.Get("driver_id") != "7" || q.Get("date") != "2024-01-02" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{
			"packets_delivered": 3,
			"total_sales": "45.10",
			"sales_by_method": {"cash": "40", "card": 5.1},
			"orders": [{"id": 11, "total": 40}]
		}`))
	})

	slice, err := c.DriverReport(context.Background(), 7, "2024-01-02")
	if err != nil {
		t.Fatalf("DriverReport() error = %v", err)
	}
	if slice.DriverID != 7 || slice.Date != "2024-01-02" {
		t.Errorf("slice identity = %d/%s", slice.DriverID, slice.Date)
	}
	if slice.PacketsDelivered != 3 || !slice.TotalSales.Equal(decimal.RequireFromString("45.1")) {
		t.Errorf("slice = %+v", slice)
	}
	if !slice.SalesByMethod["card"].Equal(decimal.RequireFromString("5.1")) {
		t.Errorf("card sales = %s", slice.SalesByMethod["card"])
	}
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": "not a list"}`))
	})

	_, err := c.ListDrivers(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("error = %v, want ErrDecode", err)
	}
	if retry.Classify(err) != retry.ClassPermanent {
		t.Error("decode error must be permanent")
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestClient_ListOrders(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orders" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("kitchen_status"); got != "ready" {
			t.Errorf("kitchen_status = %q", got)
		}
		w.Write([]byte(`{"data":[{"id":7,"total":"12.5","kitchen_status":"ready","items":null}],"total":1,"phase":"idle","error":"boom"}`))
	})

	resp, err := client.ListOrders(ListOrdersOpts{KitchenStatus: "ready"})
	if err != nil {
		t.Fatalf("ListOrders: %v", err)
	}
	if resp.Total != 1 || resp.Data[0].ID != 7 || resp.Data[0].Total != "12.5" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Error != "boom" || resp.Phase != "idle" {
		t.Errorf("error/phase = %q/%q", resp.Error, resp.Phase)
	}
}

func TestClient_OrderActionNoContent(t *testing.T) {
	var body map[string]string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/v1/orders/3/driver-status" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	})

	order, err := client.SetDriverStatus(3, "picked_up")
	if err != nil {
		t.Fatalf("SetDriverStatus: %v", err)
	}
	if order != nil {
		t.Errorf("order = %+v, want nil for 204", order)
	}
	if body["driver_status"] != "picked_up" {
		t.Errorf("body = %v", body)
	}
}

func TestClient_Error(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"code":"UPSTREAM_ERROR","message":"pos unavailable"}}`))
	})

	err := client.CloseOrder(1)
	if err == nil || err.Error() != "UPSTREAM_ERROR: pos unavailable" {
		t.Errorf("err = %v", err)
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetOrder(1)
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_ListArchivedReports(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		w.Write([]byte(`{"data":[{"id":"a","from":"2024-01-01","to":"2024-01-02","total_sales":"10"}],"total":1}`))
	})

	reports, err := client.ListArchivedReports(5)
	if err != nil {
		t.Fatalf("ListArchivedReports: %v", err)
	}
	if len(reports) != 1 || reports[0].To != "2024-01-02" {
		t.Errorf("reports = %+v", reports)
	}
}

func TestOrderListCmd(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[
			{"id":1,"status":"confirmed","kitchen_status":"new","total":"5","items":[{"name":"Cola","kitchen_excluded":true}],"relevant_items":0,"kitchen_excluded_only":true},
			{"id":2,"status":"confirmed","kitchen_status":"ready","driver_name":"Ann","total":"9","items":null}
		],"total":2,"phase":"idle","stale":true}`))
	})

	var stdout, stderr bytes.Buffer
	cmd := NewOrderCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(&stdout, &stderr, false) },
	)
	cmd.SetArgs([]string{"list"})
	cmd.SetOut(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"ID", "1 (excluded)", "Ann", "ready"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "stored snapshot") {
		t.Errorf("stderr = %q, want stale warning", stderr.String())
	}
}

func TestOrderCmd_InvalidID(t *testing.T) {
	cmd := NewOrderCmd(
		func() *Client { return NewClient("http://127.0.0.1:0") },
		func() *Output { return NewOutputTo(io.Discard, io.Discard, false) },
	)
	cmd.SetArgs([]string{"close", "abc"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Error("expected error for invalid order id")
	}
}

func TestReportBuildCmd_Wait(t *testing.T) {
	polls := 0
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req BuildReportRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.From != "2024-01-01" || len(req.DriverIDs) != 2 {
				t.Errorf("request = %+v", req)
			}
			w.WriteHeader(http.StatusAccepted)
			w.Write([]byte(`{"data":{"loading":true}}`))
		default:
			polls++
			w.Write([]byte(`{"data":{"loading":false,"report":{"from":"2024-01-01","to":"2024-01-01","packets_delivered":4,"total_sales":"40","sales_by_method":{"cash":"40"},"tasks":2}}}`))
		}
	})

	var stdout bytes.Buffer
	cmd := NewReportCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(&stdout, io.Discard, false) },
	)
	cmd.SetArgs([]string{"build", "--from", "2024-01-01", "--driver", "7", "--driver", "9", "--poll", "1ms"})
	cmd.SetOut(io.Discard)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if polls != 1 {
		t.Errorf("polls = %d, want 1", polls)
	}
	if !strings.Contains(stdout.String(), "cash=40") {
		t.Errorf("output = %s", stdout.String())
	}
}

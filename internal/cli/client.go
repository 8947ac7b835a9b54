package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// OrderItemResponse — позиция заказа из API.
type OrderItemResponse struct {
	ID              string `json:"id,omitempty"`
	UniqueID        string `json:"unique_id,omitempty"`
	Name            string `json:"name,omitempty"`
	Category        string `json:"category,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
	KitchenStatus   string `json:"kitchen_status"`
	KitchenExcluded bool   `json:"kitchen_excluded,omitempty"`
}

// OrderResponse — заказ из API.
type OrderResponse struct {
	ID                  int64               `json:"id"`
	Status              string              `json:"status,omitempty"`
	DriverStatus        string              `json:"driver_status,omitempty"`
	OrderType           string              `json:"order_type,omitempty"`
	DriverID            *int64              `json:"driver_id,omitempty"`
	DriverName          string              `json:"driver_name,omitempty"`
	CustomerName        string              `json:"customer_name,omitempty"`
	CustomerPhone       string              `json:"customer_phone,omitempty"`
	Address             string              `json:"address,omitempty"`
	PaymentMethod       string              `json:"payment_method,omitempty"`
	Total               string              `json:"total"`
	ReceiptID           string              `json:"receipt_id,omitempty"`
	UpdatedAt           string              `json:"updated_at"`
	Items               []OrderItemResponse `json:"items"`
	KitchenStatus       string              `json:"kitchen_status,omitempty"`
	RelevantItems       *int                `json:"relevant_items,omitempty"`
	KitchenExcludedOnly bool                `json:"kitchen_excluded_only,omitempty"`
}

// OrdersResponse — коллекция заказов доски.
type OrdersResponse struct {
	Data      []OrderResponse `json:"data"`
	Total     int             `json:"total"`
	Error     string          `json:"error,omitempty"`
	Phase     string          `json:"phase"`
	Stale     bool            `json:"stale,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// ReportOrderResponse — заказ в отчёте по водителям.
type ReportOrderResponse struct {
	ID            int64  `json:"id"`
	DriverID      int64  `json:"driver_id,omitempty"`
	DriverName    string `json:"driver_name,omitempty"`
	Total         string `json:"total"`
	PaymentMethod string `json:"payment_method,omitempty"`
	Address       string `json:"address,omitempty"`
	DeliveredAt   string `json:"delivered_at,omitempty"`
}

// DriverReportResponse — отчёт по водителям из API.
type DriverReportResponse struct {
	ID               string                `json:"id"`
	From             string                `json:"from"`
	To               string                `json:"to"`
	DriverIDs        []int64               `json:"driver_ids"`
	PacketsDelivered int                   `json:"packets_delivered"`
	TotalSales       string                `json:"total_sales"`
	SalesByMethod    map[string]string     `json:"sales_by_method"`
	Orders           []ReportOrderResponse `json:"orders"`
	Tasks            int                   `json:"tasks"`
	FailedTasks      int                   `json:"failed_tasks"`
	Error            string                `json:"error,omitempty"`
	GeneratedAt      string                `json:"generated_at"`
}

// ReportStateResponse — состояние сборки отчёта.
type ReportStateResponse struct {
	Report  *DriverReportResponse `json:"report"`
	Loading bool                  `json:"loading"`
	Error   string                `json:"error,omitempty"`
}

// --- Request types ---

// ListOrdersOpts — параметры фильтрации заказов.
type ListOrdersOpts struct {
	KitchenStatus string
	DriverStatus  string
}

// UpdateOrderRequest — изменение полей заказа.
type UpdateOrderRequest struct {
	Total         *string `json:"total,omitempty"`
	PaymentMethod *string `json:"payment_method,omitempty"`
	ReceiptID     *string `json:"receipt_id,omitempty"`
}

// BuildReportRequest — запуск сборки отчёта.
type BuildReportRequest struct {
	DriverIDs []int64 `json:"driver_ids,omitempty"`
	From      string  `json:"from"`
	To        string  `json:"to,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Liveboard API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Orders ---

// ListOrders возвращает опубликованную коллекцию заказов.
func (c *Client) ListOrders(opts ListOrdersOpts) (*OrdersResponse, error) {
	params := url.Values{}
	if opts.KitchenStatus != "" {
		params.Set("kitchen_status", opts.KitchenStatus)
	}
	if opts.DriverStatus != "" {
		params.Set("driver_status", opts.DriverStatus)
	}

	path := "/api/v1/orders"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var orders OrdersResponse
	if err := json.NewDecoder(resp.Body).Decode(&orders); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &orders, nil
}

// GetOrder возвращает заказ по ID.
func (c *Client) GetOrder(id int64) (*OrderResponse, error) {
	var order OrderResponse
	err := c.get(orderPath(id, ""), &order)
	return &order, err
}

// RefreshOrders запускает внеочередной цикл заказов.
func (c *Client) RefreshOrders() error {
	return c.post("/api/v1/orders/refresh", nil, nil)
}

// SetDriverStatus меняет статус доставки. Возвращает nil, если заказ уже ушёл с доски.
func (c *Client) SetDriverStatus(id int64, status string) (*OrderResponse, error) {
	body := map[string]string{"driver_status": status}
	return c.orderAction(http.MethodPatch, orderPath(id, "/driver-status"), body)
}

// AssignDriver назначает водителя на заказ.
func (c *Client) AssignDriver(id, driverID int64, driverName string) (*OrderResponse, error) {
	body := map[string]any{"driver_id": driverID}
	if driverName != "" {
		body["driver_name"] = driverName
	}
	return c.orderAction(http.MethodPut, orderPath(id, "/driver"), body)
}

// UpdateOrder меняет сумму, способ оплаты или номер чека.
func (c *Client) UpdateOrder(id int64, req UpdateOrderRequest) (*OrderResponse, error) {
	return c.orderAction(http.MethodPut, orderPath(id, ""), req)
}

// CloseOrder закрывает заказ.
func (c *Client) CloseOrder(id int64) error {
	return c.post(orderPath(id, "/close"), nil, nil)
}

// CancelOrder отменяет заказ.
func (c *Client) CancelOrder(id int64) error {
	return c.post(orderPath(id, "/cancel"), nil, nil)
}

func (c *Client) orderAction(method, path string, body any) (*OrderResponse, error) {
	var order OrderResponse
	found, err := c.doData(method, path, body, &order)
	if err != nil || !found {
		return nil, err
	}
	return &order, nil
}

func orderPath(id int64, suffix string) string {
	return "/api/v1/orders/" + strconv.FormatInt(id, 10) + suffix
}

// --- Reports ---

// GetDriverReport возвращает текущее состояние отчёта по водителям.
func (c *Client) GetDriverReport() (*ReportStateResponse, error) {
	var state ReportStateResponse
	err := c.get("/api/v1/reports/drivers", &state)
	return &state, err
}

// BuildDriverReport запускает сборку отчёта.
func (c *Client) BuildDriverReport(req BuildReportRequest) (*ReportStateResponse, error) {
	var state ReportStateResponse
	err := c.post("/api/v1/reports/drivers", req, &state)
	return &state, err
}

// ListArchivedReports возвращает последние сохранённые отчёты.
func (c *Client) ListArchivedReports(limit int) ([]DriverReportResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var reports []DriverReportResponse
	err := c.list("/api/v1/reports/archive", params, &reports)
	return reports, err
}

// GetArchivedReport возвращает сохранённый отчёт по ID.
func (c *Client) GetArchivedReport(id string) (*DriverReportResponse, error) {
	var rep DriverReportResponse
	err := c.get("/api/v1/reports/archive/"+id, &rep)
	return &rep, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	_, err := c.doData(http.MethodGet, path, nil, result)
	return err
}

func (c *Client) post(path string, body any, result any) error {
	_, err := c.doData(http.MethodPost, path, body, result)
	return err
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

// doData выполняет запрос и разбирает конверт {data}.
// Возвращает false для 204 No Content.
func (c *Client) doData(method, path string, body any, result any) (bool, error) {
	resp, err := c.do(method, path, body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return false, err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return true, json.Unmarshal(dr.Data, result)
	}
	return true, nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}

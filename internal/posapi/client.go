package posapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Liveboard/internal/cancel"
	"github.com/shaiso/Liveboard/internal/domain"
)

// Default configuration values.
const (
	defaultTimeout  = 15 * time.Second
	openPhoneStatus = "open_phone"
	maxErrorBody    = 4 << 10
)

// Client — HTTP-клиент POS API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	orderTypes []domain.OrderType
	logger     *slog.Logger
}

// Config — конфигурация Client.
type Config struct {
	// BaseURL — адрес POS API, например http://pos.local/api.
	BaseURL string

	// Timeout — таймаут одного запроса (default: 15s).
	Timeout time.Duration

	// OrderTypes — фильтр order_type для списка открытых заказов (опционально).
	OrderTypes []domain.OrderType

	// HTTPClient — готовый клиент (для тестов). Timeout при этом не применяется.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// New создаёт клиент POS API.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		orderTypes: cfg.OrderTypes,
		logger:     logger,
	}
}

// --- Orders ---

// ListOpenOrders возвращает заголовки открытых телефонных заказов.
func (c *Client) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	params := url.Values{}
	params.Set("status", openPhoneStatus)
	for _, t := range c.orderTypes {
		params.Add("order_type", string(t))
	}

	var orders []domain.Order
	if err := c.get(ctx, "/orders", params, &orders, "orders"); err != nil {
		return nil, err
	}

	for i := range orders {
		orders[i].Status = domain.ParseOrderStatus(string(orders[i].Status))
		// Заголовок не несёт позиций, даже если сервер прислал пустой массив.
		orders[i].Items = nil
	}
	return orders, nil
}

// ListItems возвращает позиции заказа. Пустой ответ — пустой, но не nil срез.
func (c *Client) ListItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	if err := c.get(ctx, orderPath(orderID, "items"), nil, &items, "items"); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.OrderItem{}
	}
	return items, nil
}

// SetDriverStatus меняет статус доставки заказа.
func (c *Client) SetDriverStatus(ctx context.Context, orderID int64, status domain.DriverStatus) error {
	body := map[string]string{"driver_status": string(status)}
	return c.send(ctx, http.MethodPatch, orderPath(orderID, "driver-status"), body)
}

// CloseOrder закрывает заказ. Ответ «уже закрыт» считается успехом.
func (c *Client) CloseOrder(ctx context.Context, orderID int64) error {
	err := c.send(ctx, http.MethodPost, orderPath(orderID, "close"), nil)
	if IsAlreadyFinal(err) {
		c.logger.Debug("order already closed", "order_id", orderID)
		return nil
	}
	return err
}

// CancelOrder отменяет заказ. Ответ «уже отменён» считается успехом.
func (c *Client) CancelOrder(ctx context.Context, orderID int64) error {
	err := c.send(ctx, http.MethodPatch, orderPath(orderID, "cancel"), nil)
	if IsAlreadyFinal(err) {
		c.logger.Debug("order already cancelled", "order_id", orderID)
		return nil
	}
	return err
}

// UpdateOrder отправляет изменённые поля заказа.
func (c *Client) UpdateOrder(ctx context.Context, orderID int64, update domain.OrderUpdate) error {
	return c.send(ctx, http.MethodPut, orderPath(orderID, ""), update)
}

// --- Kitchen ---

// CompileSettings возвращает настройки исключений кухни.
func (c *Client) CompileSettings(ctx context.Context) (domain.ExclusionSettings, error) {
	var settings domain.ExclusionSettings
	err := c.get(ctx, "/kitchen/compile-settings", nil, &settings)
	return settings, err
}

// --- Staff & reports ---

// ListDrivers возвращает справочник водителей.
func (c *Client) ListDrivers(ctx context.Context) ([]domain.Driver, error) {
	var drivers []domain.Driver
	err := c.get(ctx, "/staff/drivers", nil, &drivers, "drivers")
	return drivers, err
}

// DriverReport возвращает срез отчёта по водителю за один день (date в формате 2006-01-02).
func (c *Client) DriverReport(ctx context.Context, driverID int64, date string) (domain.ReportSlice, error) {
	params := url.Values{}
	params.Set("driver_id", strconv.FormatInt(driverID, 10))
	params.Set("date", date)

	var slice domain.ReportSlice
	if err := c.get(ctx, "/orders/driver-report", params, &slice); err != nil {
		return domain.ReportSlice{}, err
	}
	if slice.DriverID == 0 {
		slice.DriverID = driverID
	}
	if slice.Date == "" {
		slice.Date = date
	}
	return slice, nil
}

// --- HTTP helpers ---

func orderPath(orderID int64, action string) string {
	path := "/orders/" + strconv.FormatInt(orderID, 10)
	if action != "" {
		path += "/" + action
	}
	return path
}

// get выполняет GET и декодирует ответ в result.
// listKeys — дополнительные ключи конверта, под которыми сервер может прислать список.
func (c *Client) get(ctx context.Context, path string, params url.Values, result any, listKeys ...string) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	payload := unwrap(body, listKeys...)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrDecode, path, err)
	}
	return nil
}

// send выполняет запрос-действие; тело ответа не разбирается.
func (c *Client) send(ctx context.Context, method, path string, body any) error {
	_, err := c.do(ctx, method, path, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancel.ErrCancelled
		}
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancel.ErrCancelled
		}
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	c.logger.Debug("POS request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: errorMessage(data),
		}
	}
	return data, nil
}

// unwrap снимает конверт {"data": ...} (или {"<key>": ...} для списков).
// Ответ без конверта возвращается как есть.
func unwrap(body []byte, keys ...string) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return body
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return body
	}
	if data, ok := envelope["data"]; ok {
		return unwrap(data, keys...)
	}
	for _, key := range keys {
		if data, ok := envelope[key]; ok {
			return data
		}
	}
	return body
}

// errorMessage достаёт текст ошибки из тела ответа:
// {"error": "..."}, {"error": {"message": "..."}}, {"message": "..."} или сам текст.
func errorMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	if len(body) == 0 {
		return ""
	}

	var resp struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return string(body)
	}

	if len(resp.Error) > 0 {
		var s string
		if err := json.Unmarshal(resp.Error, &s); err == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if resp.Message != "" {
		return resp.Message
	}
	return resp.Detail
}

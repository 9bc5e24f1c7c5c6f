// Package client — HTTP-клиент API оформления заказа. Используется
// cmd/loadtest и внешними потребителями сервиса.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/service/order"
)

const defaultTimeout = 10 * time.Second

var (
	// ErrMalformedResponse — сервер ответил, но тело не разобрать.
	// Для успешного статуса это неоднозначный исход: заказ мог быть создан.
	ErrMalformedResponse = errors.New("malformed server response")
	// ErrUnexpectedContentType — ответ пришёл не в JSON.
	ErrUnexpectedContentType = errors.New("unexpected response content type")
	// ErrServerFailure — ошибка на стороне сервера (5xx). Запрос можно повторять.
	ErrServerFailure = errors.New("server failure")
)

// APIError — отказ сервера уровня 4xx: запрос отвергнут по вине клиента,
// повторять без изменений бессмысленно.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// AsAPIError распаковывает APIError из цепочки ошибок.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Client — клиент API оформления заказа.
type Client struct {
	baseURL  string
	http     *http.Client
	minOrder int64
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithHTTPClient подменяет транспорт (таймауты, прокси, тесты).
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithMinOrder задаёт порог для клиентской предвалидации.
func WithMinOrder(minOrder int64) ClientOption {
	return func(c *Client) {
		if minOrder > 0 {
			c.minOrder = minOrder
		}
	}
}

// New создаёт клиента для указанного базового URL сервиса.
func New(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		minOrder: order.DefaultMinOrder,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type wireOrderItem struct {
	MenuID    int64 `json:"menu_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

type wireOrderRequest struct {
	CustomerID  string          `json:"customer_id,omitempty"`
	StoreID     int64           `json:"store_id,omitempty"`
	CustPhone   string          `json:"cust_phone"`
	CustAddress string          `json:"cust_address"`
	Items       []wireOrderItem `json:"items"`
}

// OrderConfirmation — разобранный ответ сервера на успешное оформление.
type OrderConfirmation struct {
	OrderID     int64  `json:"order_id"`
	TotalAmount int64  `json:"total_amount"`
	Status      string `json:"status"`
	Items       []struct {
		OrderItemID int64 `json:"order_item_id"`
		MenuID      int64 `json:"menu_id"`
		Quantity    int64 `json:"quantity"`
		UnitPrice   int64 `json:"unit_price"`
	} `json:"items"`
}

// CreateOrder отправляет заказ на сервер. Валидация выполняется и на клиенте:
// заведомо некорректный запрос не тратит сетевой вызов и возвращает
// *domain.ValidationError c тем же сообщением, что показал бы сервер.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (OrderConfirmation, error) {
	if verr := order.Validate(req, c.minOrder); verr != nil {
		return OrderConfirmation{}, verr
	}

	items := make([]wireOrderItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, wireOrderItem{
			MenuID:    line.MenuID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	payload, err := json.Marshal(wireOrderRequest{
		CustomerID:  req.CustomerID,
		StoreID:     req.StoreID,
		CustPhone:   req.CustomerPhone,
		CustAddress: req.DeliveryAddress,
		Items:       items,
	})
	if err != nil {
		return OrderConfirmation{}, fmt.Errorf("marshal order request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/create-order", bytes.NewReader(payload))
	if err != nil {
		return OrderConfirmation{}, fmt.Errorf("build order request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return OrderConfirmation{}, fmt.Errorf("send order request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OrderConfirmation{}, fmt.Errorf("read order response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			return OrderConfirmation{}, fmt.Errorf("%w: %s", ErrUnexpectedContentType, ct)
		}
		var conf OrderConfirmation
		if err := json.Unmarshal(body, &conf); err != nil || conf.OrderID == 0 {
			// Статус успешный, тело нечитаемо: заказ мог быть создан.
			return OrderConfirmation{}, fmt.Errorf("%w: status %d", ErrMalformedResponse, resp.StatusCode)
		}
		return conf, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return OrderConfirmation{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    serverMessage(body),
		}

	case resp.StatusCode >= 500:
		return OrderConfirmation{}, fmt.Errorf("%w: status %d: %s",
			ErrServerFailure, resp.StatusCode, serverMessage(body))

	default:
		return OrderConfirmation{}, fmt.Errorf("%w: unexpected status %d", ErrMalformedResponse, resp.StatusCode)
	}
}

// SubmitCart оформляет корзину и очищает её только после подтверждённого
// успеха. При любой ошибке, включая неоднозначный исход, содержимое
// корзины сохраняется.
func (c *Client) SubmitCart(ctx context.Context, cart *domain.Cart, customerID string, storeID int64, phone, address string) (OrderConfirmation, error) {
	conf, err := c.CreateOrder(ctx, cart.BuildRequest(customerID, storeID, phone, address))
	if err != nil {
		return OrderConfirmation{}, err
	}
	cart.Clear()
	return conf, nil
}

// serverMessage достаёт поле error из тела ответа. Нечитаемое или пустое
// тело не считается фатальным: возвращается подстановочный текст.
func serverMessage(body []byte) string {
	var parsed struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error == "" {
		return "no error details provided"
	}
	if parsed.Details != "" {
		return parsed.Error + ": " + parsed.Details
	}
	return parsed.Error
}

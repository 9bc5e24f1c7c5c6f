package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/service/order"
	"github.com/seongnamsijang/oms/internal/storage/memory"
	"github.com/seongnamsijang/oms/internal/transport/httpapi"
)

type testEnv struct {
	server *httptest.Server
	orders *memory.OrderRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logger.WithField("component", "test")

	orders := memory.NewOrderRepository()
	svc := order.NewService(orders, entry)
	handler := httpapi.NewHandler(svc, entry,
		httpapi.WithCatalog(memory.NewSeededCatalogRepository()),
		httpapi.WithIdempotency(memory.NewIdempotencyRepository()),
	)

	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testEnv{server: server, orders: orders}
}

func (e *testEnv) postOrder(t *testing.T, body string, headers map[string]string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/create-order", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

const validOrderBody = `{
	"cust_phone": "010-0000-0000",
	"cust_address": "성남시 수정구 산성대로 123",
	"items": [{"menu_id": 1, "quantity": 2, "unit_price": 7000}]
}`

func decodeJSON(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestCreateOrder_Success(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postOrder(t, validOrderBody, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
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
	decodeJSON(t, resp, &body)
	require.NotZero(t, body.OrderID)
	require.Equal(t, int64(14000), body.TotalAmount)
	require.Equal(t, "pending_payment", body.Status)
	require.Len(t, body.Items, 1)
	require.NotZero(t, body.Items[0].OrderItemID)
}

func TestCreateOrder_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/create-order")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.NotEmpty(t, body.Error)
}

func TestCreateOrder_BelowMinimum(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postOrder(t, `{
		"cust_phone": "010-0000-0000",
		"cust_address": "성남시",
		"items": [{"menu_id": 5, "quantity": 1, "unit_price": 5000}]
	}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "최소 주문금액은 13,000원 입니다. 현재 총액: 5,000원", body.Error)
	require.Equal(t, 0, env.orders.Count(), "rejected order must not be written")
}

func TestCreateOrder_InvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postOrder(t, `{"cust_phone": `, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "invalid request body", body.Error)
}

func TestCreateOrder_FractionalQuantityIsMalformed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postOrder(t, `{
		"cust_phone": "010-0000-0000",
		"cust_address": "성남시",
		"items": [
			{"menu_id": 1, "quantity": 1.5, "unit_price": 7000},
			{"menu_id": 2, "quantity": -1, "unit_price": 6000}
		]
	}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.Contains(t, body.Error, "lines 0, 1")
	require.Equal(t, 0, env.orders.Count())
}

func TestCreateOrder_MissingContact(t *testing.T) {
	env := newTestEnv(t)

	resp := env.postOrder(t, `{"items": [{"menu_id": 1, "quantity": 2, "unit_price": 7000}]}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateOrder_MissingContactBeforeMalformedItem(t *testing.T) {
	env := newTestEnv(t)

	// Пустые контакты и дробное количество в одном запросе: клиент должен
	// увидеть отказ по контактам, а не по структуре строк.
	resp := env.postOrder(t, `{
		"cust_phone": "",
		"cust_address": "",
		"items": [{"menu_id": 1, "quantity": 0.5, "unit_price": 7000}]
	}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "cust_phone and cust_address are required", body.Error)
	require.Equal(t, 0, env.orders.Count())
}

func TestCreateOrder_OversizedBody(t *testing.T) {
	env := newTestEnv(t)

	padding := strings.Repeat("a", 1<<20)
	resp := env.postOrder(t, `{"cust_phone": "`+padding+`"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error string `json:"error"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "request body too large", body.Error)
}

func TestCreateOrder_InternalErrorShape(t *testing.T) {
	env := newTestEnv(t)
	env.orders.FailAtomic = domain.ErrAtomicUnavailable
	env.orders.FailOrderInsert = io.ErrUnexpectedEOF

	resp := env.postOrder(t, validOrderBody, nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	decodeJSON(t, resp, &body)
	require.Equal(t, "failed to create order", body.Error)
	require.NotEmpty(t, body.Details)
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := env.postOrder(t, validOrderBody, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	firstBody, err := io.ReadAll(first.Body)
	require.NoError(t, err)

	second := env.postOrder(t, validOrderBody, headers)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	require.Equal(t, "true", second.Header.Get("X-Idempotent-Replay"))
	secondBody, err := io.ReadAll(second.Body)
	require.NoError(t, err)

	require.JSONEq(t, string(firstBody), string(secondBody))
	require.Equal(t, 1, env.orders.Count(), "retry must not create a second order")
}

func TestCreateOrder_IdempotencyKeyConflict(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"Idempotency-Key": "key-2"}

	first := env.postOrder(t, validOrderBody, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	other := env.postOrder(t, `{
		"cust_phone": "010-9999-8888",
		"cust_address": "성남시 중원구",
		"items": [{"menu_id": 3, "quantity": 2, "unit_price": 9000}]
	}`, headers)
	require.Equal(t, http.StatusConflict, other.StatusCode)
}

func TestListMarkets(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/markets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var markets []struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		Stores []struct {
			Name  string `json:"name"`
			Menus []struct {
				Name  string `json:"name"`
				Price int64  `json:"price"`
			} `json:"menus"`
		} `json:"stores"`
	}
	decodeJSON(t, resp, &markets)
	require.Len(t, markets, 2)
	require.Equal(t, "성남중앙공설시장", markets[0].Name)
	require.Equal(t, "모둠전", markets[0].Stores[0].Menus[0].Name)
	require.Equal(t, int64(7000), markets[0].Stores[0].Menus[0].Price)
}

func TestGetOrder(t *testing.T) {
	env := newTestEnv(t)

	created := env.postOrder(t, validOrderBody, nil)
	require.Equal(t, http.StatusCreated, created.StatusCode)
	var createdBody struct {
		OrderID int64 `json:"order_id"`
	}
	decodeJSON(t, created, &createdBody)

	resp, err := http.Get(env.server.URL + "/api/orders/" + strconv.FormatInt(createdBody.OrderID, 10))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	missing, err := http.Get(env.server.URL + "/api/orders/99999")
	require.NoError(t, err)
	defer missing.Body.Close()
	require.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(env.server.URL + "/api/orders/abc")
	require.NoError(t, err)
	defer bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

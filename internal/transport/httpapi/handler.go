package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/service/order"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayHeader         = "X-Idempotent-Replay"

	maxBodyBytes = 1 << 20 // 1 MiB

	defaultIdempotencyTTL = 24 * time.Hour
)

// Handler обслуживает HTTP API оформления заказа.
type Handler struct {
	orders      *order.Service
	catalog     domain.CatalogRepository
	idempotency domain.IdempotencyRepository
	logger      *log.Entry
}

// HandlerOption настраивает Handler.
type HandlerOption func(*Handler)

// WithCatalog подключает каталог рынков для GET /api/markets.
func WithCatalog(catalog domain.CatalogRepository) HandlerOption {
	return func(h *Handler) { h.catalog = catalog }
}

// WithIdempotency включает обработку заголовка Idempotency-Key.
func WithIdempotency(repo domain.IdempotencyRepository) HandlerOption {
	return func(h *Handler) { h.idempotency = repo }
}

// NewHandler конструирует HTTP-обработчик.
func NewHandler(orders *order.Service, logger *log.Entry, options ...HandlerOption) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "httpapi")
	}
	h := &Handler{orders: orders, logger: logger}
	for _, option := range options {
		option(h)
	}
	return h
}

// Register вешает маршруты API на mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/create-order", h.handleCreateOrder)
	mux.HandleFunc("/api/markets", h.handleListMarkets)
	mux.HandleFunc("/api/orders/{id}", h.handleGetOrder)
}

// createOrderRequest — запрос оформления в проводном формате.
// Числовые поля позиций декодируются как float64: некорректные значения
// должны дойти до валидатора и стать malformed_item, а не ошибкой декодера.
type createOrderRequest struct {
	CustomerID  string          `json:"customer_id"`
	StoreID     int64           `json:"store_id"`
	CustPhone   string          `json:"cust_phone"`
	CustAddress string          `json:"cust_address"`
	Items       []wireOrderItem `json:"items"`
}

type wireOrderItem struct {
	MenuID    float64 `json:"menu_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type createOrderResponse struct {
	OrderID     int64               `json:"order_id"`
	TotalAmount int64               `json:"total_amount"`
	Status      string              `json:"status"`
	Items       []orderItemResponse `json:"items"`
}

type orderItemResponse struct {
	OrderItemID int64 `json:"order_item_id"`
	MenuID      int64 `json:"menu_id"`
	Quantity    int64 `json:"quantity"`
	UnitPrice   int64 `json:"unit_price"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body too large"})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	idemKey := r.Header.Get(idempotencyKeyHeader)
	if idemKey != "" && h.idempotency != nil {
		if done := h.beginIdempotent(w, idemKey, body); done {
			return
		}
	}

	status, payload := h.createOrder(body)

	if idemKey != "" && h.idempotency != nil {
		h.finishIdempotent(idemKey, status, payload)
	}
	h.writeRaw(w, status, payload)
}

// createOrder выполняет оформление и возвращает HTTP-статус с готовым JSON-телом.
// Тело сериализуется заранее, чтобы его можно было сохранить для replay
// по Idempotency-Key.
func (h *Handler) createOrder(body []byte) (int, []byte) {
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return marshalResponse(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	wire := make([]order.WireLine, 0, len(req.Items))
	for _, item := range req.Items {
		wire = append(wire, order.WireLine{
			MenuID:    item.MenuID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	// Некорректные провод-строки остаются в запросе строками-маркерами:
	// порядок правил проверки (контакты, пустая корзина, структура строк)
	// принадлежит валидатору, а не транспорту.
	lines, _ := order.LinesFromWire(wire)

	conf, err := h.orders.Submit(domain.OrderRequest{
		CustomerID:      req.CustomerID,
		StoreID:         req.StoreID,
		CustomerPhone:   req.CustPhone,
		DeliveryAddress: req.CustAddress,
		Lines:           lines,
	})
	if err != nil {
		if verr, ok := domain.AsValidation(err); ok {
			return marshalResponse(http.StatusBadRequest, errorResponse{Error: verr.Message})
		}
		h.logger.WithError(err).Error("order submission failed")
		return marshalResponse(http.StatusInternalServerError, errorResponse{
			Error:   "failed to create order",
			Details: err.Error(),
		})
	}

	items := make([]orderItemResponse, 0, len(conf.Order.Items))
	for _, item := range conf.Order.Items {
		items = append(items, orderItemResponse{
			OrderItemID: item.ID,
			MenuID:      item.MenuID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return marshalResponse(http.StatusCreated, createOrderResponse{
		OrderID:     conf.Order.ID,
		TotalAmount: conf.Order.TotalAmount,
		Status:      string(conf.Order.Status),
		Items:       items,
	})
}

// beginIdempotent регистрирует ключ идемпотентности. Возвращает true, если
// ответ уже записан (replay сохранённого ответа или конфликт).
func (h *Handler) beginIdempotent(w http.ResponseWriter, key string, body []byte) bool {
	hash := sha256.Sum256(body)
	requestHash := hex.EncodeToString(hash[:])

	record, err := h.idempotency.CreateProcessing(key, requestHash, time.Now().UTC().Add(defaultIdempotencyTTL))
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "idempotency key reused with a different request"})
		return true
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			h.writeJSON(w, http.StatusConflict, errorResponse{Error: "request with this idempotency key is still being processed"})
			return true
		}
		w.Header().Set(replayHeader, "true")
		h.writeRaw(w, record.HTTPStatus, record.ResponseBody)
		return true
	default:
		h.logger.WithError(err).Error("idempotency bookkeeping failed")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to create order"})
		return true
	}
}

func (h *Handler) finishIdempotent(key string, status int, payload []byte) {
	var err error
	if status >= 200 && status < 300 {
		err = h.idempotency.MarkDone(key, payload, status)
	} else {
		err = h.idempotency.MarkFailed(key, payload, status)
	}
	if err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent response")
	}
}

func (h *Handler) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	if h.catalog == nil {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "catalog is not available"})
		return
	}

	markets, err := h.catalog.ListMarkets()
	if err != nil {
		h.logger.WithError(err).Error("failed to load catalog")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load markets"})
		return
	}
	h.writeJSON(w, http.StatusOK, marketsToResponse(markets))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return
	}

	ord, err := h.orders.GetOrder(id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "order not found"})
			return
		}
		h.logger.WithError(err).WithField("order_id", id).Error("failed to load order")
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load order"})
		return
	}

	items := make([]orderItemResponse, 0, len(ord.Items))
	for _, item := range ord.Items {
		items = append(items, orderItemResponse{
			OrderItemID: item.ID,
			MenuID:      item.MenuID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	h.writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:     ord.ID,
		TotalAmount: ord.TotalAmount,
		Status:      string(ord.Status),
		Items:       items,
	})
}

func marshalResponse(status int, payload any) (int, []byte) {
	body, err := json.Marshal(payload)
	if err != nil {
		return http.StatusInternalServerError, []byte(`{"error":"internal error"}`)
	}
	return status, body
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	respStatus, body := marshalResponse(status, payload)
	h.writeRaw(w, respStatus, body)
}

func (h *Handler) writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.WithError(err).Warn("failed to write response")
	}
}

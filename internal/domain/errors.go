package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибки инвариантов заказа.
	ErrContactInfoRequired = errors.New("customer phone and delivery address are required")
	ErrItemsRequired       = errors.New("order must contain at least one item")
	ErrAmountNegative      = errors.New("total_amount must be non-negative")
	ErrItemMenuRequired    = errors.New("item menu_id is required")
	ErrItemQtyInvalid      = errors.New("item quantity must be greater than zero")
	ErrItemPriceInvalid    = errors.New("item unit_price must be non-negative")
	ErrAmountMismatch      = errors.New("order total does not match items sum")

	// Ошибки агрегата корзины.
	ErrQuantityInvalid  = errors.New("quantity must be greater than zero")
	ErrCartLineNotFound = errors.New("cart line not found")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAtomicUnavailable сигнализирует, что атомарная процедура create_order
	// недоступна в хранилище и writer должен уйти в деградированный режим.
	ErrAtomicUnavailable = errors.New("atomic create_order procedure unavailable")
	// ErrOrderInsertFailed — не удалось вставить строку заказа (шаг 1 fallback-пути).
	ErrOrderInsertFailed = errors.New("order insert failed")
	// ErrItemsInsertFailed — не удалось вставить позиции заказа (шаг 2 fallback-пути);
	// влечёт компенсирующее удаление заказа.
	ErrItemsInsertFailed = errors.New("order items insert failed")
	// ErrCompensationFailed — компенсирующее удаление само завершилось ошибкой.
	// В базе остаётся заказ-сирота без позиций; аномалия консистентности,
	// которую разбирает cmd/reconcile.
	ErrCompensationFailed = errors.New("compensating order delete failed")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки идемпотентной обработки запросов.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// ValidationReason — машинно-проверяемый вид ошибки валидации заказа.
type ValidationReason string

const (
	ReasonMissingContactInfo ValidationReason = "missing_contact_info"
	ReasonEmptyCart          ValidationReason = "empty_cart"
	ReasonMalformedItem      ValidationReason = "malformed_item"
	ReasonBelowMinimum       ValidationReason = "below_minimum"
)

// ValidationError — отказ до какой-либо записи в хранилище.
// Message предназначен пользователю; Reason — для ветвления кода.
// Для ReasonBelowMinimum заполняются Total и Minimum.
type ValidationError struct {
	Reason  ValidationReason
	Message string
	Total   int64
	Minimum int64
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("order validation failed: %s", e.Reason)
}

// CompensationError — структурная ошибка неудавшейся компенсации: несёт
// идентификатор заказа-сироты, чтобы сверка не разбирала текст сообщения.
type CompensationError struct {
	OrderID int64
	Err     error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensating delete failed, orphaned order_id=%d: %v", e.OrderID, e.Err)
}

// Unwrap отдаёт и сентинел, и исходную причину для errors.Is/As.
func (e *CompensationError) Unwrap() []error {
	return []error{ErrCompensationFailed, e.Err}
}

// IsCompensationAnomaly проверяет, оставила ли ошибка записи заказ-сироту
// (компенсирующее удаление не удалось).
func IsCompensationAnomaly(err error) bool {
	return errors.Is(err, ErrCompensationFailed)
}

// AsValidation распаковывает ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

package domain

import "time"

// WriteMode — каким путём заказ был сохранён.
type WriteMode string

const (
	// WriteModeAtomic — предпочтительный путь: одна серверная процедура,
	// одна транзакция, повторная проверка минимальной суммы на уровне данных.
	WriteModeAtomic WriteMode = "atomic"
	// WriteModeDegraded — fallback: две отдельные вставки с компенсирующим
	// удалением при сбое второго шага. Явно деградированный режим.
	WriteModeDegraded WriteMode = "degraded"
)

// OrderRepository описывает требования к хранилищу заказов.
//
// CreateAtomic и CreateTwoStep возвращают сохранённый заказ с назначенными
// базой идентификаторами заказа и позиций.
type OrderRepository interface {
	// CreateAtomic сохраняет заказ вызовом атомарной процедуры create_order.
	// Возвращает ErrAtomicUnavailable, если процедуры нет в хранилище,
	// и ValidationError{below_minimum}, если политику отвергла сама база.
	CreateAtomic(order Order) (Order, error)
	// CreateTwoStep сохраняет заказ двумя шагами: строка заказа, затем позиции.
	// При сбое второго шага выполняет best-effort компенсирующее удаление;
	// возвращаемая ошибка оборачивает ErrItemsInsertFailed, а если удаление
	// тоже не удалось — дополнительно ErrCompensationFailed.
	CreateTwoStep(order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id int64) (Order, error)
	// FindOrphaned возвращает заказы без единой позиции — следы неудавшейся
	// компенсации, подлежащие ручной сверке.
	FindOrphaned(limit int) ([]Order, error)
	// Delete удаляет заказ вместе с позициями (используется reconcile).
	Delete(id int64) error
}

// CatalogRepository читает каталог рынков. Внешний коллаборатор ядра:
// только чтение, без инвариантов.
type CatalogRepository interface {
	ListMarkets() ([]Market, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по Idempotency-Key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

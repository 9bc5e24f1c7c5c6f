package memory

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/seongnamsijang/oms/internal/domain"
)

// OrderRepository — in-memory реализация domain.OrderRepository для локальной
// разработки и тестов. Поля Fail* позволяют инжектировать сбои на каждом шаге
// записи, чтобы проверять fallback-путь и компенсирующее удаление.
type OrderRepository struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]domain.Order

	// MinOrder включает проверку политики минимальной суммы на «уровне данных»
	// атомарного пути, как это делает SQL-процедура create_order. 0 = выключено.
	MinOrder int64

	// FailAtomic возвращается из CreateAtomic вместо записи
	// (например domain.ErrAtomicUnavailable для проверки деградации).
	FailAtomic error
	// FailOrderInsert срывает первый шаг CreateTwoStep.
	FailOrderInsert error
	// FailItemsInsert срывает второй шаг CreateTwoStep после вставки заказа.
	FailItemsInsert error
	// FailCompensation дополнительно срывает компенсирующее удаление,
	// оставляя заказ-сироту — воспроизводит аномалию консистентности.
	FailCompensation error
}

// NewOrderRepository возвращает пустой репозиторий.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		nextID: 1,
		orders: make(map[int64]domain.Order),
	}
}

// CreateAtomic сохраняет заказ одной «транзакцией», повторяя контракт SQL-процедуры.
func (r *OrderRepository) CreateAtomic(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAtomic != nil {
		return domain.Order{}, r.FailAtomic
	}
	if r.MinOrder > 0 && order.TotalAmount < r.MinOrder {
		return domain.Order{}, &domain.ValidationError{
			Reason:  domain.ReasonBelowMinimum,
			Total:   order.TotalAmount,
			Minimum: r.MinOrder,
		}
	}

	return r.persist(order), nil
}

// CreateTwoStep повторяет деградированный путь: вставка заказа, вставка позиций,
// компенсирующее удаление при сбое второго шага.
func (r *OrderRepository) CreateTwoStep(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailOrderInsert != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderInsertFailed, r.FailOrderInsert)
	}

	// Шаг 1: строка заказа уже в хранилище.
	persisted := r.persist(order)

	if r.FailItemsInsert != nil {
		itemsErr := fmt.Errorf("%w: %w", domain.ErrItemsInsertFailed, r.FailItemsInsert)
		// Шаг 3: best-effort компенсирующее удаление заказа из шага 1.
		if r.FailCompensation != nil {
			orphan := persisted
			orphan.Items = nil
			r.orders[orphan.ID] = orphan
			return domain.Order{}, fmt.Errorf("%w: %w", itemsErr,
				&domain.CompensationError{OrderID: orphan.ID, Err: r.FailCompensation})
		}
		delete(r.orders, persisted.ID)
		return domain.Order{}, itemsErr
	}

	return persisted, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// FindOrphaned возвращает заказы без позиций, от старых к новым.
func (r *OrderRepository) FindOrphaned(limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.orders {
		if len(order.Items) == 0 {
			result = append(result, cloneOrder(order))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Delete удаляет заказ вместе с позициями.
func (r *OrderRepository) Delete(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.orders, id)
	return nil
}

// Count возвращает число сохранённых заказов (используется в тестах).
func (r *OrderRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// persist назначает идентификаторы и сохраняет копию заказа. Вызывать под мьютексом.
func (r *OrderRepository) persist(order domain.Order) domain.Order {
	order.ID = r.nextID
	r.nextID++
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	for i := range items {
		items[i].ID = order.ID*1000 + int64(i) + 1
		items[i].OrderID = order.ID
	}
	order.Items = items

	r.orders[order.ID] = cloneOrder(order)
	return cloneOrder(order)
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = make([]domain.OrderItem, len(src.Items))
	copy(dst.Items, src.Items)
	return dst
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

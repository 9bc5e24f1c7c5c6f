package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/seongnamsijang/oms/internal/domain"
)

const opTimeout = 5 * time.Second

// SQLSTATE-коды атомарной процедуры create_order.
const (
	// sqlstatePolicyViolation возвращает сама процедура при нарушении
	// политики минимальной суммы. Структурный код, без разбора текста.
	sqlstatePolicyViolation = "MO400"
	// sqlstateUndefinedFunction означает, что процедуры нет в схеме
	// (например, миграция ещё не применена). Сигнал к деградации.
	sqlstateUndefinedFunction = "42883"
)

type orderRepository struct {
	db       *sql.DB
	minOrder int64
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
// minOrder передаётся в процедуру create_order для повторной проверки
// политики на уровне данных; minOrder<=0 оставляет встроенный порог процедуры.
func NewOrderRepository(store *Store, minOrder int64) domain.OrderRepository {
	return &orderRepository{db: store.DB(), minOrder: minOrder}
}

type wireItem struct {
	MenuID    int64 `json:"menu_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// CreateAtomic вызывает серверную процедуру create_order: одна транзакция,
// пересчёт суммы и проверка политики на стороне базы.
func (r *orderRepository) CreateAtomic(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	items := make([]wireItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, wireItem{
			MenuID:    item.MenuID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return domain.Order{}, fmt.Errorf("marshal order items: %w", err)
	}

	query := `
		SELECT r_order_id, r_item_id, r_menu_id, r_quantity, r_unit_price
		FROM create_order($1, $2, $3, $4, $5, $6)
	`
	minOrder := r.minOrder
	if minOrder <= 0 {
		minOrder = 13000
	}

	rows, err := r.db.QueryContext(ctx, query,
		order.CustomerID, order.StoreID, order.CustomerPhone,
		order.DeliveryAddress, payload, minOrder,
	)
	if err != nil {
		return domain.Order{}, mapAtomicError(err)
	}
	defer rows.Close()

	persisted := order
	persisted.Items = make([]domain.OrderItem, 0, len(order.Items))
	persisted.Status = domain.OrderStatusPendingPayment

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ID, &item.MenuID, &item.Quantity, &item.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan create_order result: %w", err)
		}
		persisted.ID = item.OrderID
		persisted.Items = append(persisted.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, mapAtomicError(err)
	}
	if persisted.ID == 0 {
		return domain.Order{}, fmt.Errorf("create_order returned no rows")
	}

	return persisted, nil
}

// CreateTwoStep — деградированный путь записи: строка заказа и позиции
// вставляются раздельно, при сбое второго шага заказ компенсируется удалением.
func (r *orderRepository) CreateTwoStep(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// Шаг 1: строка заказа.
	var orderID int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, store_id, cust_phone, cust_address, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		order.CustomerID, order.StoreID, order.CustomerPhone,
		order.DeliveryAddress, order.TotalAmount, string(domain.OrderStatusPendingPayment), createdAt,
	).Scan(&orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderInsertFailed, err)
	}

	// Шаг 2: позиции заказа.
	persisted := order
	persisted.ID = orderID
	persisted.Status = domain.OrderStatusPendingPayment
	persisted.CreatedAt = createdAt
	persisted.Items = make([]domain.OrderItem, 0, len(order.Items))

	for _, item := range order.Items {
		var itemID int64
		if err := r.db.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, menu_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, orderID, item.MenuID, item.Quantity, item.UnitPrice).Scan(&itemID); err != nil {
			itemsErr := fmt.Errorf("%w: %w", domain.ErrItemsInsertFailed, err)
			// Шаг 3: best-effort компенсирующее удаление заказа из шага 1.
			if delErr := r.deleteOrder(ctx, orderID); delErr != nil {
				return domain.Order{}, fmt.Errorf("%w: %w", itemsErr,
					&domain.CompensationError{OrderID: orderID, Err: delErr})
			}
			return domain.Order{}, itemsErr
		}
		item.ID = itemID
		item.OrderID = orderID
		persisted.Items = append(persisted.Items, item)
	}

	return persisted, nil
}

// Get возвращает заказ с позициями или ErrOrderNotFound.
func (r *orderRepository) Get(id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		order  domain.Order
		status string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, store_id, cust_phone, cust_address, total_amount, status, created_at
		FROM orders
		WHERE id = $1
	`, id).Scan(
		&order.ID, &order.CustomerID, &order.StoreID, &order.CustomerPhone,
		&order.DeliveryAddress, &order.TotalAmount, &status, &order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

// FindOrphaned возвращает заказы без единой позиции, от старых к новым.
// Такие строки остаются после неудавшейся компенсации fallback-пути.
func (r *orderRepository) FindOrphaned(limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.customer_id, o.store_id, o.cust_phone, o.cust_address,
		       o.total_amount, o.status, o.created_at
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE oi.id IS NULL
		ORDER BY o.created_at ASC, o.id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("find orphaned orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			order  domain.Order
			status string
		)
		if err := rows.Scan(
			&order.ID, &order.CustomerID, &order.StoreID, &order.CustomerPhone,
			&order.DeliveryAddress, &order.TotalAmount, &status, &order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan orphaned order: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orphaned orders: %w", err)
	}

	return orders, nil
}

// Delete удаляет заказ; позиции каскадируются на уровне схемы.
func (r *orderRepository) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return r.deleteOrder(ctx, id)
}

func (r *orderRepository) deleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for order delete: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) loadItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, menu_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

// mapAtomicError переводит SQLSTATE-коды процедуры create_order в доменные ошибки.
func mapAtomicError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("call create_order: %w", err)
	}

	switch pgErr.Code {
	case sqlstatePolicyViolation:
		verr := &domain.ValidationError{
			Reason:  domain.ReasonBelowMinimum,
			Message: pgErr.Message,
		}
		// DETAIL несёт машинную форму: "total=<n> minimum=<n>".
		_, _ = fmt.Sscanf(pgErr.Detail, "total=%d minimum=%d", &verr.Total, &verr.Minimum)
		return verr
	case sqlstateUndefinedFunction:
		return fmt.Errorf("%w: %s", domain.ErrAtomicUnavailable, pgErr.Message)
	default:
		return fmt.Errorf("call create_order: %w", err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)

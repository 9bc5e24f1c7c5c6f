package domain

import "time"

// OrderStatus описывает статус заказа после оформления.
type OrderStatus string

const (
	// OrderStatusPendingPayment — заказ создан и ждёт ручного банковского перевода.
	// Это единственный статус, который назначает сервис оформления: дальнейший
	// жизненный цикл (подтверждение оплаты, доставка) обрабатывается вне этого ядра.
	OrderStatusPendingPayment OrderStatus = "pending_payment"
)

// OrderItem представляет одну позицию сохранённого заказа.
// Цена — снимок на момент оформления; она копируется из корзины
// и никогда не перечитывается из каталога.
type OrderItem struct {
	// ID — surrogate key, назначается базой при вставке.
	ID int64
	// OrderID — ссылка на родительский заказ; позиция не живёт дольше заказа.
	OrderID int64
	// MenuID — идентификатор позиции меню на момент заказа.
	MenuID int64
	// Quantity — количество, всегда >= 1.
	Quantity int64
	// UnitPrice — цена за единицу в вонах на момент оформления.
	UnitPrice int64
}

// Order агрегирует сохранённый заказ и его позиции.
type Order struct {
	ID              int64
	CustomerID      string
	StoreID         int64
	CustomerPhone   string
	DeliveryAddress string
	// TotalAmount — неизменяемый снимок суммы корзины на момент оформления.
	TotalAmount int64
	Status      OrderStatus
	Items       []OrderItem
	CreatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerPhone == "" || o.DeliveryAddress == "" {
		errs = append(errs, ErrContactInfoRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount < 0 {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: qty * unit_price.
	var calc int64
	for _, item := range o.Items {
		if item.MenuID <= 0 {
			errs = append(errs, ErrItemMenuRequired)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += item.Quantity * item.UnitPrice
	}
	if calc != o.TotalAmount {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// OrderRequest — транзиентный payload оформления, собирается из корзины
// в момент отправки и никогда не сохраняется напрямую.
type OrderRequest struct {
	// CustomerID — опциональный идентификатор авторизованного клиента.
	CustomerID string
	// StoreID — опциональный идентификатор магазина (0 = не указан).
	StoreID int64
	CustomerPhone   string
	DeliveryAddress string
	Lines           []CartLine
}

// Total возвращает сумму запроса в вонах.
func (r OrderRequest) Total() int64 {
	var sum int64
	for _, line := range r.Lines {
		sum += line.Quantity * line.UnitPrice
	}
	return sum
}

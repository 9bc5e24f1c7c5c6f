package domain

// CartLine — одна строка корзины: позиция меню с количеством
// и ценой за единицу, зафиксированной при добавлении.
type CartLine struct {
	MenuID   int64
	MenuName string
	Quantity int64
	// UnitPrice — цена в вонах на момент добавления в корзину,
	// а не на момент чтения каталога.
	UnitPrice int64
}

// Cart — клиентский агрегат корзины одной сессии.
//
// Все мутации идут через методы агрегата; внутренний срез наружу не отдаётся.
// Политика количества: UpdateQuantity отвергает qty <= 0 (ErrQuantityInvalid),
// удаление строки — только явный RemoveItem. Верхняя граница количества
// здесь не проверяется, это зона ответственности валидатора заказа.
//
// Агрегат не потокобезопасен: корзина принадлежит одной сессии,
// и в полёте может быть только одна отправка заказа.
type Cart struct {
	lines []CartLine
}

// NewCart возвращает пустую корзину.
func NewCart() *Cart {
	return &Cart{}
}

// AddItem добавляет позицию меню. Если позиция уже есть, количество
// суммируется; иначе строка добавляется в конец, сохраняя порядок добавления.
func (c *Cart) AddItem(item MenuItem, qty int64) error {
	if qty <= 0 {
		return ErrQuantityInvalid
	}
	for i := range c.lines {
		if c.lines[i].MenuID == item.ID {
			c.lines[i].Quantity += qty
			return nil
		}
	}
	c.lines = append(c.lines, CartLine{
		MenuID:    item.ID,
		MenuName:  item.Name,
		Quantity:  qty,
		UnitPrice: item.Price,
	})
	return nil
}

// UpdateQuantity заменяет количество существующей строки.
// qty <= 0 отвергается: неявного удаления через ноль нет.
func (c *Cart) UpdateQuantity(menuID, qty int64) error {
	if qty <= 0 {
		return ErrQuantityInvalid
	}
	for i := range c.lines {
		if c.lines[i].MenuID == menuID {
			c.lines[i].Quantity = qty
			return nil
		}
	}
	return ErrCartLineNotFound
}

// RemoveItem убирает строку из корзины; отсутствующая строка — no-op.
func (c *Cart) RemoveItem(menuID int64) {
	filtered := c.lines[:0]
	for _, line := range c.lines {
		if line.MenuID != menuID {
			filtered = append(filtered, line)
		}
	}
	c.lines = filtered
}

// Clear опустошает корзину. Вызывается только после подтверждённого
// успешного оформления заказа либо по явному сбросу.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines возвращает копию строк в порядке добавления.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal — сумма корзины в вонах; всегда вычисляется заново по строкам.
func (c *Cart) Subtotal() int64 {
	var sum int64
	for _, line := range c.lines {
		sum += line.Quantity * line.UnitPrice
	}
	return sum
}

// TotalQuantity — суммарное количество единиц по всем строкам.
func (c *Cart) TotalQuantity() int64 {
	var sum int64
	for _, line := range c.lines {
		sum += line.Quantity
	}
	return sum
}

// BuildRequest собирает транзиентный OrderRequest из текущего состояния корзины.
func (c *Cart) BuildRequest(customerID string, storeID int64, phone, address string) OrderRequest {
	return OrderRequest{
		CustomerID:      customerID,
		StoreID:         storeID,
		CustomerPhone:   phone,
		DeliveryAddress: address,
		Lines:           c.Lines(),
	}
}

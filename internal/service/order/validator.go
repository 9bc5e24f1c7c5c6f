package order

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/seongnamsijang/oms/internal/domain"
)

// DefaultMinOrder — минимальная сумма заказа в вонах по умолчанию.
const DefaultMinOrder int64 = 13000

// wonPrinter форматирует суммы с корейскими разделителями тысяч (13,000).
var wonPrinter = message.NewPrinter(language.Korean)

// WireLine — строка заказа в том виде, как она приходит с провода.
// Числа остаются float64 до проверки: NaN, бесконечности и дробные
// значения должны попадать в malformed_item, а не ломать декодер.
type WireLine struct {
	MenuID    float64
	Quantity  float64
	UnitPrice float64
}

// Пределы значений одной строки заказа. Запаса хватает на любые реальные
// цены рынка, а произведение quantity × unit_price и сумма по строкам
// гарантированно не переполняют int64.
const (
	maxLineMenuID    int64 = 1_000_000_000_000
	maxLineQuantity  int64 = 1_000_000
	maxLineUnitPrice int64 = 100_000_000
)

// LinesFromWire конвертирует провод-строки в доменные, собирая индексы
// всех некорректных строк батча, а не только первой. Некорректная строка
// не выбрасывается: на её месте остаётся строка-маркер, которую Validate
// отвергнет как malformed_item. Так правила проверки применяются в штатном
// порядке: контакты и пустая корзина раньше структуры строк.
func LinesFromWire(items []WireLine) ([]domain.CartLine, []int) {
	lines := make([]domain.CartLine, 0, len(items))
	var bad []int
	for i, it := range items {
		if !wireLineOK(it) {
			bad = append(bad, i)
			lines = append(lines, domain.CartLine{MenuID: -1, Quantity: -1, UnitPrice: -1})
			continue
		}
		lines = append(lines, domain.CartLine{
			MenuID:    int64(it.MenuID),
			Quantity:  int64(it.Quantity),
			UnitPrice: int64(it.UnitPrice),
		})
	}
	return lines, bad
}

func wireLineOK(it WireLine) bool {
	for _, v := range []float64{it.MenuID, it.Quantity, it.UnitPrice} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return false
		}
	}
	// Верхние границы проверяются ещё на float64: конвертация значения
	// за пределами int64 в целое сама по себе небезопасна.
	return it.MenuID > 0 && it.MenuID <= float64(maxLineMenuID) &&
		it.Quantity > 0 && it.Quantity <= float64(maxLineQuantity) &&
		it.UnitPrice >= 0 && it.UnitPrice <= float64(maxLineUnitPrice)
}

// Validate прогоняет правила проверки заказа в фиксированном порядке.
// Чистая функция без побочных эффектов: вызывается и сервером (граница
// доверия), и клиентом для быстрого отказа до сетевого вызова.
func Validate(req domain.OrderRequest, minOrder int64) *domain.ValidationError {
	if minOrder <= 0 {
		minOrder = DefaultMinOrder
	}

	if strings.TrimSpace(req.CustomerPhone) == "" || strings.TrimSpace(req.DeliveryAddress) == "" {
		return &domain.ValidationError{
			Reason:  domain.ReasonMissingContactInfo,
			Message: "cust_phone and cust_address are required",
		}
	}

	if len(req.Lines) == 0 {
		return &domain.ValidationError{
			Reason:  domain.ReasonEmptyCart,
			Message: "at least one order item is required",
		}
	}

	var bad []int
	for i, line := range req.Lines {
		if line.MenuID <= 0 || line.MenuID > maxLineMenuID ||
			line.Quantity <= 0 || line.Quantity > maxLineQuantity ||
			line.UnitPrice < 0 || line.UnitPrice > maxLineUnitPrice {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return MalformedLines(bad)
	}

	total := req.Total()
	if total < minOrder {
		return BelowMinimum(total, minOrder)
	}

	return nil
}

// MalformedLines строит ошибку malformed_item, перечисляя все некорректные строки.
func MalformedLines(indexes []int) *domain.ValidationError {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return &domain.ValidationError{
		Reason: domain.ReasonMalformedItem,
		Message: fmt.Sprintf(
			"invalid item structure: menu_id, quantity (>0), unit_price required (lines %s)",
			strings.Join(parts, ", ")),
	}
}

// BelowMinimum строит ошибку below_minimum с пользовательским сообщением,
// в котором порог и текущая сумма отформатированы в корейской локали.
func BelowMinimum(total, minimum int64) *domain.ValidationError {
	return &domain.ValidationError{
		Reason: domain.ReasonBelowMinimum,
		Message: wonPrinter.Sprintf(
			"최소 주문금액은 %d원 입니다. 현재 총액: %d원", minimum, total),
		Total:   total,
		Minimum: minimum,
	}
}

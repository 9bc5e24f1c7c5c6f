package order_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/service/order"
)

func TestValidate_RuleOrder(t *testing.T) {
	// Контактные данные проверяются раньше корзины: запрос без телефона
	// и без позиций должен получить missing_contact_info, а не empty_cart.
	req := domain.OrderRequest{DeliveryAddress: "성남시 수정구"}
	verr := order.Validate(req, 0)
	require.NotNil(t, verr)
	require.Equal(t, domain.ReasonMissingContactInfo, verr.Reason)

	req.CustomerPhone = "010-1234-5678"
	verr = order.Validate(req, 0)
	require.NotNil(t, verr)
	require.Equal(t, domain.ReasonEmptyCart, verr.Reason)

	// Структура позиций проверяется раньше порога суммы.
	req.Lines = []domain.CartLine{{MenuID: 0, Quantity: 1, UnitPrice: 100}}
	verr = order.Validate(req, 0)
	require.NotNil(t, verr)
	require.Equal(t, domain.ReasonMalformedItem, verr.Reason)
}

func TestValidate_Table(t *testing.T) {
	base := domain.OrderRequest{
		CustomerPhone:   "010-1234-5678",
		DeliveryAddress: "성남시 중원구 둔촌대로 456",
	}

	tests := []struct {
		name   string
		lines  []domain.CartLine
		reason domain.ValidationReason
		ok     bool
	}{
		{
			name:  "valid order at threshold",
			lines: []domain.CartLine{{MenuID: 1, Quantity: 1, UnitPrice: 13000}},
			ok:    true,
		},
		{
			name:  "valid multi-line order",
			lines: []domain.CartLine{{MenuID: 1, Quantity: 2, UnitPrice: 7000}, {MenuID: 2, Quantity: 1, UnitPrice: 5000}},
			ok:    true,
		},
		{
			name:   "one won below threshold",
			lines:  []domain.CartLine{{MenuID: 1, Quantity: 1, UnitPrice: 12999}},
			reason: domain.ReasonBelowMinimum,
		},
		{
			name:   "empty cart",
			lines:  nil,
			reason: domain.ReasonEmptyCart,
		},
		{
			name:   "zero quantity",
			lines:  []domain.CartLine{{MenuID: 1, Quantity: 0, UnitPrice: 20000}},
			reason: domain.ReasonMalformedItem,
		},
		{
			name:   "negative price",
			lines:  []domain.CartLine{{MenuID: 1, Quantity: 1, UnitPrice: -500}},
			reason: domain.ReasonMalformedItem,
		},
		{
			name:   "missing menu id",
			lines:  []domain.CartLine{{Quantity: 1, UnitPrice: 20000}},
			reason: domain.ReasonMalformedItem,
		},
		{
			name: "free item allowed when total clears threshold",
			lines: []domain.CartLine{
				{MenuID: 1, Quantity: 2, UnitPrice: 7000},
				{MenuID: 9, Quantity: 1, UnitPrice: 0},
			},
			ok: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.Lines = tt.lines
			verr := order.Validate(req, order.DefaultMinOrder)
			if tt.ok {
				require.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			require.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidate_WhitespaceContactIsMissing(t *testing.T) {
	req := domain.OrderRequest{
		CustomerPhone:   "   ",
		DeliveryAddress: "\t",
		Lines:           []domain.CartLine{{MenuID: 1, Quantity: 1, UnitPrice: 20000}},
	}
	verr := order.Validate(req, 0)
	require.NotNil(t, verr)
	require.Equal(t, domain.ReasonMissingContactInfo, verr.Reason)
}

func TestLinesFromWire(t *testing.T) {
	lines, bad := order.LinesFromWire([]order.WireLine{
		{MenuID: 1, Quantity: 2, UnitPrice: 7000},
		{MenuID: 2, Quantity: 1.5, UnitPrice: 5000},          // дробное количество
		{MenuID: math.NaN(), Quantity: 1, UnitPrice: 5000},   // NaN с провода
		{MenuID: 3, Quantity: 1, UnitPrice: math.Inf(1)},     // бесконечность
		{MenuID: 4, Quantity: 9e18, UnitPrice: 5000},         // больше int64
		{MenuID: 5, Quantity: 1, UnitPrice: 5000},
	})
	require.Equal(t, []int{1, 2, 3, 4}, bad)

	// Некорректные строки не выбрасываются: на тех же индексах остаются
	// строки-маркеры, чтобы Validate отвергла их в штатном порядке правил.
	require.Len(t, lines, 6)
	require.Equal(t, int64(1), lines[0].MenuID)
	require.Equal(t, int64(5), lines[5].MenuID)
	for _, idx := range bad {
		require.Equal(t, domain.CartLine{MenuID: -1, Quantity: -1, UnitPrice: -1}, lines[idx])
	}
}

func TestLinesFromWire_MarkersKeepRuleOrder(t *testing.T) {
	// Запрос без контактов и с некорректной строкой обязан получить
	// missing_contact_info: структура строк проверяется позже контактов.
	lines, bad := order.LinesFromWire([]order.WireLine{
		{MenuID: 1, Quantity: 0.5, UnitPrice: 7000},
	})
	require.Equal(t, []int{0}, bad)

	verr := order.Validate(domain.OrderRequest{Lines: lines}, 0)
	require.NotNil(t, verr)
	require.Equal(t, domain.ReasonMissingContactInfo, verr.Reason)
}

func TestValidate_LineCaps(t *testing.T) {
	base := domain.OrderRequest{
		CustomerPhone:   "010-1234-5678",
		DeliveryAddress: "성남시 수정구 산성대로 123",
	}

	tests := []struct {
		name string
		line domain.CartLine
	}{
		{name: "quantity above cap", line: domain.CartLine{MenuID: 1, Quantity: 1_000_001, UnitPrice: 7000}},
		{name: "unit price above cap", line: domain.CartLine{MenuID: 1, Quantity: 1, UnitPrice: 100_000_001}},
		{name: "menu id above cap", line: domain.CartLine{MenuID: 1_000_000_000_001, Quantity: 1, UnitPrice: 7000}},
		// Пара значений, чьё произведение переполнило бы int64 без пределов.
		{name: "overflowing subtotal", line: domain.CartLine{MenuID: 1, Quantity: math.MaxInt64 / 2, UnitPrice: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			req.Lines = []domain.CartLine{tt.line}
			verr := order.Validate(req, order.DefaultMinOrder)
			require.NotNil(t, verr)
			require.Equal(t, domain.ReasonMalformedItem, verr.Reason)
		})
	}
}

func TestBelowMinimum_KoreanMessage(t *testing.T) {
	verr := order.BelowMinimum(12000, 13000)
	require.Equal(t, domain.ReasonBelowMinimum, verr.Reason)
	require.Equal(t, int64(12000), verr.Total)
	require.Equal(t, int64(13000), verr.Minimum)
	require.Equal(t, "최소 주문금액은 13,000원 입니다. 현재 총액: 12,000원", verr.Message)
}

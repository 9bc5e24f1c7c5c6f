package domain_test

import (
	"testing"
	"time"

	"github.com/seongnamsijang/oms/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	return domain.Order{
		ID:              1,
		CustomerPhone:   "010-0000-0000",
		DeliveryAddress: "성남시 수정구 산성대로 123",
		TotalAmount:     14000,
		Status:          domain.OrderStatusPendingPayment,
		Items: []domain.OrderItem{
			{ID: 1, OrderID: 1, MenuID: 1, Quantity: 2, UnitPrice: 7000},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no phone",
			mut: func(o *domain.Order) {
				o.CustomerPhone = ""
			},
		},
		{
			name: "no address",
			mut: func(o *domain.Order) {
				o.DeliveryAddress = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Quantity = 0
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].UnitPrice = -5
			},
		},
		{
			name: "menu id missing",
			mut: func(o *domain.Order) {
				o.Items[0].MenuID = 0
			},
		},
		{
			name: "amount mismatch",
			mut: func(o *domain.Order) {
				o.TotalAmount = 999
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)
			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestOrderRequestTotal(t *testing.T) {
	req := domain.OrderRequest{
		Lines: []domain.CartLine{
			{MenuID: 1, Quantity: 2, UnitPrice: 7000},
			{MenuID: 2, Quantity: 1, UnitPrice: 5000},
		},
	}
	if got := req.Total(); got != 19000 {
		t.Fatalf("expected 19000, got %d", got)
	}
}

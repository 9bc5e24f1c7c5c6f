package memory_test

import (
	"errors"
	"testing"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/storage/memory"
)

func newOrder() domain.Order {
	return domain.Order{
		CustomerPhone:   "010-0000-0000",
		DeliveryAddress: "성남시 수정구",
		TotalAmount:     14000,
		Status:          domain.OrderStatusPendingPayment,
		Items: []domain.OrderItem{
			{MenuID: 1, Quantity: 2, UnitPrice: 7000},
		},
	}
}

func TestOrderRepository_CreateAtomicGet(t *testing.T) {
	repo := memory.NewOrderRepository()

	created, err := repo.CreateAtomic(newOrder())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected server-assigned order id")
	}
	if len(created.Items) != 1 || created.Items[0].OrderID != created.ID {
		t.Fatalf("expected items bound to order, got %+v", created.Items)
	}

	stored, err := repo.Get(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.TotalAmount != 14000 {
		t.Fatalf("expected total 14000, got %d", stored.TotalAmount)
	}
}

func TestOrderRepository_CreateAtomicPolicyCheck(t *testing.T) {
	repo := memory.NewOrderRepository()
	repo.MinOrder = 13000

	order := newOrder()
	order.TotalAmount = 12000
	order.Items = []domain.OrderItem{{MenuID: 1, Quantity: 2, UnitPrice: 6000}}

	_, err := repo.CreateAtomic(order)
	verr, ok := domain.AsValidation(err)
	if !ok || verr.Reason != domain.ReasonBelowMinimum {
		t.Fatalf("expected below_minimum from data layer, got %v", err)
	}
	if repo.Count() != 0 {
		t.Fatal("rejected order must not be persisted")
	}
}

func TestOrderRepository_TwoStepCompensatingDelete(t *testing.T) {
	repo := memory.NewOrderRepository()
	repo.FailItemsInsert = errors.New("disk full")

	_, err := repo.CreateTwoStep(newOrder())
	if !errors.Is(err, domain.ErrItemsInsertFailed) {
		t.Fatalf("expected ErrItemsInsertFailed, got %v", err)
	}
	// Компенсирующее удаление сработало: заказ-сирота не остался.
	if repo.Count() != 0 {
		t.Fatalf("expected compensating delete to remove the order, %d left", repo.Count())
	}
}

func TestOrderRepository_TwoStepCompensationFailureLeavesOrphan(t *testing.T) {
	repo := memory.NewOrderRepository()
	repo.FailItemsInsert = errors.New("disk full")
	repo.FailCompensation = errors.New("connection reset")

	_, err := repo.CreateTwoStep(newOrder())
	if !domain.IsCompensationAnomaly(err) {
		t.Fatalf("expected compensation anomaly, got %v", err)
	}

	orphans, err := repo.FindOrphaned(10)
	if err != nil {
		t.Fatalf("find orphaned failed: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphaned order, got %d", len(orphans))
	}

	if err := repo.Delete(orphans[0].ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if repo.Count() != 0 {
		t.Fatal("expected orphan removed after reconcile delete")
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := memory.NewOrderRepository()
	if _, err := repo.Get(404); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/seongnamsijang/oms/internal/domain"
)

func testOrderFixture() domain.Order {
	return domain.Order{
		CustomerID:      "guest-1",
		StoreID:         1,
		CustomerPhone:   "010-0000-0000",
		DeliveryAddress: "성남시 수정구 산성대로 123",
		TotalAmount:     14000,
		Status:          domain.OrderStatusPendingPayment,
		Items: []domain.OrderItem{
			{MenuID: 1, Quantity: 2, UnitPrice: 7000},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestOrderRepository_CreateAtomicRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	persisted, err := repo.CreateAtomic(testOrderFixture())
	require.NoError(t, err)
	require.NotZero(t, persisted.ID)
	require.Len(t, persisted.Items, 1)
	require.NotZero(t, persisted.Items[0].ID)
	require.Equal(t, persisted.ID, persisted.Items[0].OrderID)

	got, err := repo.Get(persisted.ID)
	require.NoError(t, err)
	require.Equal(t, int64(14000), got.TotalAmount)
	require.Equal(t, domain.OrderStatusPendingPayment, got.Status)
	require.Len(t, got.Items, 1)
	require.Empty(t, got.ValidateInvariants())
}

func TestOrderRepository_CreateAtomicPolicyViolation(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	order := testOrderFixture()
	order.Items = []domain.OrderItem{{MenuID: 1, Quantity: 1, UnitPrice: 12000}}
	order.TotalAmount = 12000

	_, err := repo.CreateAtomic(order)
	verr, ok := domain.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	require.Equal(t, domain.ReasonBelowMinimum, verr.Reason)
	require.Equal(t, int64(12000), verr.Total)
	require.Equal(t, int64(13000), verr.Minimum)
	require.Contains(t, verr.Message, "13,000")

	// Политика отвергла заказ до какой-либо записи.
	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count))
	require.Equal(t, 0, count)
}

func TestOrderRepository_CreateTwoStepRoundTrip(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	persisted, err := repo.CreateTwoStep(testOrderFixture())
	require.NoError(t, err)
	require.NotZero(t, persisted.ID)
	require.Len(t, persisted.Items, 1)

	got, err := repo.Get(persisted.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
}

func TestOrderRepository_CreateTwoStepCompensatesOnItemsFailure(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	// CHECK (quantity > 0) валит вставку позиций после успешной вставки заказа.
	order := testOrderFixture()
	order.Items = append(order.Items, domain.OrderItem{MenuID: 2, Quantity: 0, UnitPrice: 5000})

	_, err := repo.CreateTwoStep(order)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrItemsInsertFailed)
	require.False(t, domain.IsCompensationAnomaly(err))

	var count int
	require.NoError(t, store.DB().QueryRow(`SELECT COUNT(*) FROM orders`).Scan(&count))
	require.Equal(t, 0, count, "order row must be compensated away")
}

func TestOrderRepository_FindOrphanedAndDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Заказ без позиций, как после неудавшейся компенсации.
	var orphanID int64
	require.NoError(t, store.DB().QueryRowContext(ctx, `
		INSERT INTO orders (cust_phone, cust_address, total_amount)
		VALUES ('010-1111-2222', '성남시 중원구', 15000)
		RETURNING id
	`).Scan(&orphanID))

	// И полный заказ рядом, он в выдачу попасть не должен.
	_, err := repo.CreateAtomic(testOrderFixture())
	require.NoError(t, err)

	orphans, err := repo.FindOrphaned(10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, orphanID, orphans[0].ID)

	require.NoError(t, repo.Delete(orphanID))
	require.True(t, errors.Is(repo.Delete(orphanID), domain.ErrOrderNotFound))
}

func TestOrderRepository_GetNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store, 13000)

	_, err := repo.Get(424242)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCatalogRepository_ListSeededMarkets(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewCatalogRepository(store)

	markets, err := repo.ListMarkets()
	require.NoError(t, err)
	require.Len(t, markets, 2)
	require.Equal(t, "성남중앙공설시장", markets[0].Name)
	require.Len(t, markets[0].Stores, 2)
	require.Len(t, markets[0].Stores[0].Menus, 2)
	require.Equal(t, int64(7000), markets[0].Stores[0].Menus[0].Price)
}

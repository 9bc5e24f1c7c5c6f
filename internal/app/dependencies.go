package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/seongnamsijang/oms/internal/domain"
	"github.com/seongnamsijang/oms/internal/storage/memory"
	"github.com/seongnamsijang/oms/internal/storage/postgres"
)

// Dependencies содержит хранилища приложения.
type Dependencies struct {
	Orders      domain.OrderRepository
	Catalog     domain.CatalogRepository
	Outbox      domain.OutboxRepository
	Idempotency domain.IdempotencyRepository
	Logger      *log.Entry

	// Store заполнен только при PostgreSQL-хранилище: нужен для
	// health-проверки и закрытия подключения при остановке.
	Store *postgres.Store
}

// NewDependencies выбирает стек хранения по конфигурации: PostgreSQL при
// заданном DSN, иначе in-memory для локальной разработки и демо.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	if cfg.PostgresDSN == "" {
		logger.Info("OMS_POSTGRES_DSN не задан, используем in-memory хранилище")
		orders := memory.NewOrderRepository()
		// Та же политика минимальной суммы, что у SQL-процедуры create_order.
		orders.MinOrder = cfg.MinOrder
		return &Dependencies{
			Orders:      orders,
			Catalog:     memory.NewSeededCatalogRepository(),
			Outbox:      memory.NewOutboxRepository(),
			Idempotency: memory.NewIdempotencyRepository(),
			Logger:      logger,
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("подключились к PostgreSQL, миграции применены")

	return &Dependencies{
		Orders:      postgres.NewOrderRepository(store, cfg.MinOrder),
		Catalog:     postgres.NewCatalogRepository(store),
		Outbox:      postgres.NewOutboxRepository(store),
		Idempotency: postgres.NewIdempotencyRepository(store),
		Logger:      logger,
		Store:       store,
	}, nil
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}

package memory

import (
	"sync"

	"github.com/seongnamsijang/oms/internal/domain"
)

// CatalogRepository — in-memory каталог рынков для локальной разработки и тестов.
type CatalogRepository struct {
	mu      sync.RWMutex
	markets []domain.Market
}

// NewCatalogRepository возвращает каталог с переданными рынками.
func NewCatalogRepository(markets []domain.Market) *CatalogRepository {
	return &CatalogRepository{markets: markets}
}

// NewSeededCatalogRepository возвращает каталог с демонстрационными данными
// двух рынков Соннама (тот же набор, что и seed-скрипты боевой базы).
func NewSeededCatalogRepository() *CatalogRepository {
	return NewCatalogRepository([]domain.Market{
		{
			ID:   1,
			Name: "성남중앙공설시장",
			Stores: []domain.MarketStore{
				{
					ID:   1,
					Name: "할머니전집",
					Menus: []domain.MenuItem{
						{ID: 1, Name: "모둠전", Price: 7000, Description: "동태전, 동그랑땡, 꼬치전 모둠"},
						{ID: 2, Name: "김치전", Price: 6000, Description: "묵은지 김치전"},
					},
				},
				{
					ID:   2,
					Name: "시장순대국",
					Menus: []domain.MenuItem{
						{ID: 3, Name: "순대국", Price: 9000, Description: "머리고기 듬뿍 순대국"},
						{ID: 4, Name: "모둠순대", Price: 12000, Description: "찰순대와 오소리감투"},
					},
				},
			},
		},
		{
			ID:   2,
			Name: "현대시장",
			Stores: []domain.MarketStore{
				{
					ID:   3,
					Name: "현대분식",
					Menus: []domain.MenuItem{
						{ID: 5, Name: "떡볶이", Price: 5000, Description: "쌀떡볶이 1인분"},
						{ID: 6, Name: "튀김 모둠", Price: 7000, Description: "오징어, 고구마, 김말이"},
					},
				},
			},
		},
	})
}

// ListMarkets возвращает копию каталога: рынки → магазины → меню.
func (r *CatalogRepository) ListMarkets() ([]domain.Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Market, len(r.markets))
	for i, market := range r.markets {
		stores := make([]domain.MarketStore, len(market.Stores))
		for j, store := range market.Stores {
			menus := make([]domain.MenuItem, len(store.Menus))
			copy(menus, store.Menus)
			store.Menus = menus
			stores[j] = store
		}
		market.Stores = stores
		out[i] = market
	}
	return out, nil
}

var _ domain.CatalogRepository = (*CatalogRepository)(nil)

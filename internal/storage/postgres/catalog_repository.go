package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/seongnamsijang/oms/internal/domain"
)

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository создаёт PostgreSQL-реализацию CatalogRepository.
func NewCatalogRepository(store *Store) domain.CatalogRepository {
	return &catalogRepository{db: store.DB()}
}

// ListMarkets читает каталог целиком одним запросом: рынки → магазины → меню.
// Магазины без меню и рынки без магазинов тоже попадают в выдачу.
func (r *catalogRepository) ListMarkets() ([]domain.Market, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.name,
		       s.id, s.name,
		       mi.id, mi.name, mi.price, mi.image_url, mi.description
		FROM markets m
		LEFT JOIN market_stores s ON s.market_id = m.id
		LEFT JOIN menu_items mi ON mi.store_id = s.id
		ORDER BY m.id, s.id, mi.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	markets := make([]domain.Market, 0)
	marketIdx := make(map[int64]int)
	storeIdx := make(map[int64]int)

	for rows.Next() {
		var (
			marketID   int64
			marketName string
			storeID    sql.NullInt64
			storeName  sql.NullString
			menuID     sql.NullInt64
			menuName   sql.NullString
			menuPrice  sql.NullInt64
			menuImage  sql.NullString
			menuDesc   sql.NullString
		)
		if err := rows.Scan(
			&marketID, &marketName,
			&storeID, &storeName,
			&menuID, &menuName, &menuPrice, &menuImage, &menuDesc,
		); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}

		mi, ok := marketIdx[marketID]
		if !ok {
			markets = append(markets, domain.Market{ID: marketID, Name: marketName})
			mi = len(markets) - 1
			marketIdx[marketID] = mi
		}

		if !storeID.Valid {
			continue
		}
		si, ok := storeIdx[storeID.Int64]
		if !ok {
			markets[mi].Stores = append(markets[mi].Stores, domain.MarketStore{
				ID:   storeID.Int64,
				Name: storeName.String,
			})
			si = len(markets[mi].Stores) - 1
			storeIdx[storeID.Int64] = si
		}

		if !menuID.Valid {
			continue
		}
		markets[mi].Stores[si].Menus = append(markets[mi].Stores[si].Menus, domain.MenuItem{
			ID:          menuID.Int64,
			Name:        menuName.String,
			Price:       menuPrice.Int64,
			ImageURL:    menuImage.String,
			Description: menuDesc.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}

	return markets, nil
}

var _ domain.CatalogRepository = (*catalogRepository)(nil)

package httpapi

import "github.com/seongnamsijang/oms/internal/domain"

// Проводные формы каталога: рынки → магазины → меню.

type marketResponse struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Stores []storeResponse `json:"stores"`
}

type storeResponse struct {
	ID    int64              `json:"id"`
	Name  string             `json:"name"`
	Menus []menuItemResponse `json:"menus"`
}

type menuItemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

func marketsToResponse(markets []domain.Market) []marketResponse {
	out := make([]marketResponse, 0, len(markets))
	for _, market := range markets {
		stores := make([]storeResponse, 0, len(market.Stores))
		for _, store := range market.Stores {
			menus := make([]menuItemResponse, 0, len(store.Menus))
			for _, menu := range store.Menus {
				menus = append(menus, menuItemResponse{
					ID:          menu.ID,
					Name:        menu.Name,
					Price:       menu.Price,
					ImageURL:    menu.ImageURL,
					Description: menu.Description,
				})
			}
			stores = append(stores, storeResponse{ID: store.ID, Name: store.Name, Menus: menus})
		}
		out = append(out, marketResponse{ID: market.ID, Name: market.Name, Stores: stores})
	}
	return out
}

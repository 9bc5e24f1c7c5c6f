package domain

// MenuItem — позиция меню магазина традиционного рынка.
type MenuItem struct {
	ID          int64
	Name        string
	Price       int64
	ImageURL    string
	Description string
}

// MarketStore — магазин внутри рынка со своим меню.
type MarketStore struct {
	ID    int64
	Name  string
	Menus []MenuItem
}

// Market — рынок с вложенными магазинами и их меню.
// Каталог читается целиком одним вложенным запросом: markets → stores → menus.
type Market struct {
	ID     int64
	Name   string
	Stores []MarketStore
}

package models

// SeriesRequest is the query for GET /api/series/:symbol.
type SeriesRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
	Limit  int    `query:"limit" default:"250" validate:"gte=1,lte=5000"`
}

// SymbolRequest carries a single path symbol.
type SymbolRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
}

// WarehouseRequest is the query for GET /api/warehouse/:symbol.
type WarehouseRequest struct {
	Symbol string `param:"symbol" validate:"required,max=32"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
}

package request

import "github.com/shopspring/decimal"

type InsertProduct struct {
	Name        string          `json:"name"        validate:"required,min=1,max=255"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"       validate:"required"`
	Category    string          `json:"category"    validate:"required,min=1,max=100"`
	ImageUrl    string          `json:"imageUrl"    validate:"omitempty,url"`
	Stock       int32           `json:"stock"       validate:"min=0"`
}

type FindProducts struct {
	Category string `json:"category"`
	Search   string `json:"search"`
}

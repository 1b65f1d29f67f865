package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem stores stock in container units when IsBulkProduct is set.
type InventoryItem struct {
	ID            int64           `yaml:"id" json:"id"`
	Code          string          `yaml:"code" json:"code"`
	Name          string          `yaml:"name" json:"name"`
	Category      string          `yaml:"category" json:"category"`
	Stock         float64         `yaml:"stock" json:"stock"`
	MinStock      float64         `yaml:"min_stock" json:"min_stock"`
	UnitPrice     decimal.Decimal `yaml:"unit_price" json:"unit_price"`
	IsBulkProduct bool            `yaml:"is_bulk_product" json:"is_bulk_product"`
	BulkQuantity  float64         `yaml:"bulk_quantity" json:"bulk_quantity"`
	UnitOfMeasure string          `yaml:"unit_of_measure" json:"unit_of_measure"`
	CreatedAt     time.Time       `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `yaml:"updated_at" json:"updated_at"`
}

type Technician struct {
	ID     int64  `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Active bool   `yaml:"active" json:"active"`
}

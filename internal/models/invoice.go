package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID           int64             `json:"id"`
	Number       string            `json:"number"`
	CustomerName string            `json:"customer_name"`
	Date         time.Time         `json:"date"`
	Total        decimal.Decimal   `json:"total"`
	LineItems    []InvoiceLineItem `json:"line_items"`
	CreatedAt    time.Time         `json:"created_at"`
}

// InvoiceLineItem quantities are consumption units; UnitPrice is the consumption-unit price.
// TaxRate is a fraction (0.2 is 20%). PriceOverride marks a linked line whose price
// differs from the catalog consumption-unit price.
type InvoiceLineItem struct {
	Description     string              `json:"description"`
	Quantity        float64             `json:"quantity"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	Total           decimal.Decimal     `json:"total"`
	TaxRate         decimal.NullDecimal `json:"tax_rate"`
	PriceOverride   bool                `json:"price_override,omitempty"`
	InventoryItemID *int64              `json:"inventory_item_id,omitempty"`
}

// ComputeTotal returns quantity * unit price plus tax, rounded to cents.
func (l InvoiceLineItem) ComputeTotal() decimal.Decimal {
	net := decimal.NewFromFloat(l.Quantity).Mul(l.UnitPrice)
	if l.TaxRate.Valid {
		net = net.Add(net.Mul(l.TaxRate.Decimal))
	}
	return net.Round(2)
}

// SumTotals adds up line totals.
func SumTotals(lines []InvoiceLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total)
	}
	return total
}

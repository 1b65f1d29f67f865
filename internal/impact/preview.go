// Package impact projects the stock effect of an invoice and gates its commit.
package impact

import (
	"sort"
	"time"

	"workshop/internal/inventory"

	"github.com/shopspring/decimal"
)

// Severity ranks how far a projected stock level falls below its threshold.
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityLow      Severity = "low"
	SeverityCritical Severity = "critical"
)

// WarningFactor widens the minimum threshold for the warning band.
const WarningFactor = 1.5

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityLow:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Classify maps a projected stock level onto a severity. Comparisons are strict:
// after == minStock is not low, it falls in the warning band.
func Classify(after, minStock float64) Severity {
	switch {
	case after < 0:
		return SeverityCritical
	case after < minStock:
		return SeverityLow
	case after < minStock*WarningFactor:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Candidate describes one inventory item touched by an invoice. CurrentStock and
// MinStock carry their own unit kind; QuantityUsed is always consumption units.
type Candidate struct {
	ItemID        int64
	ItemName      string
	CurrentStock  inventory.Quantity
	QuantityUsed  float64
	MinStock      inventory.Quantity
	IsBulkProduct bool
	BulkQuantity  float64
	UnitOfMeasure string
}

func (c Candidate) packaging() inventory.Packaging {
	return inventory.Packaging{IsBulk: c.IsBulkProduct, BulkQuantity: c.BulkQuantity}
}

// Impact is the computed projection for one item, all figures in consumption units.
type Impact struct {
	ItemID        int64    `json:"item_id"`
	ItemName      string   `json:"item_name"`
	CurrentStock  float64  `json:"current_stock"`
	QuantityUsed  float64  `json:"quantity_used"`
	AfterStock    float64  `json:"after_stock"`
	MinStock      float64  `json:"min_stock"`
	IsBulkProduct bool     `json:"is_bulk_product"`
	BulkQuantity  float64  `json:"bulk_quantity,omitempty"`
	UnitOfMeasure string   `json:"unit_of_measure"`
	Severity      Severity `json:"severity"`
	StockDisplay  string   `json:"stock_display"`
	AfterDisplay  string   `json:"after_display"`
}

// NewImpact converts the candidate into one unit domain and computes the projection.
func NewImpact(c Candidate) Impact {
	p := c.packaging()
	before := c.CurrentStock.InConsumption(p).Amount
	minStock := c.MinStock.InConsumption(p).Amount
	after := before - c.QuantityUsed

	im := Impact{
		ItemID:        c.ItemID,
		ItemName:      c.ItemName,
		CurrentStock:  before,
		QuantityUsed:  c.QuantityUsed,
		AfterStock:    after,
		MinStock:      minStock,
		IsBulkProduct: p.Bulk(),
		UnitOfMeasure: c.UnitOfMeasure,
		Severity:      Classify(after, minStock),
	}
	if p.Bulk() {
		im.BulkQuantity = c.BulkQuantity
		im.StockDisplay = inventory.FormatStockDisplay(c.CurrentStock.InContainers(p).Amount, c.BulkQuantity, c.UnitOfMeasure)
		im.AfterDisplay = inventory.FormatStockDisplay(inventory.Consumables(after).InContainers(p).Amount, c.BulkQuantity, c.UnitOfMeasure)
	} else {
		im.StockDisplay = inventory.FormatStockDisplay(before, 0, c.UnitOfMeasure)
		im.AfterDisplay = inventory.FormatStockDisplay(after, 0, c.UnitOfMeasure)
	}
	return im
}

// InvoiceSummary is the part of the invoice shown on the confirmation gate.
type InvoiceSummary struct {
	CustomerName string          `json:"customer_name"`
	Date         time.Time       `json:"date"`
	Total        decimal.Decimal `json:"total"`
}

// Preview holds the impacts computed once when the preview is built.
type Preview struct {
	Invoice InvoiceSummary `json:"invoice"`
	Impacts []Impact       `json:"impacts"`
}

// NewPreview computes every impact and orders them most severe first, then by name.
func NewPreview(invoice InvoiceSummary, candidates []Candidate) *Preview {
	impacts := make([]Impact, 0, len(candidates))
	for _, c := range candidates {
		impacts = append(impacts, NewImpact(c))
	}
	sort.SliceStable(impacts, func(i, j int) bool {
		if impacts[i].Severity.rank() != impacts[j].Severity.rank() {
			return impacts[i].Severity.rank() > impacts[j].Severity.rank()
		}
		return impacts[i].ItemName < impacts[j].ItemName
	})
	return &Preview{Invoice: invoice, Impacts: impacts}
}

// HasCritical reports whether any item would go below zero.
func (p *Preview) HasCritical() bool {
	for _, im := range p.Impacts {
		if im.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Counts returns the number of impacts per severity.
func (p *Preview) Counts() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, im := range p.Impacts {
		counts[im.Severity]++
	}
	return counts
}

// Deductions returns the consumption quantity to deduct per item.
func (p *Preview) Deductions() map[int64]float64 {
	out := make(map[int64]float64, len(p.Impacts))
	for _, im := range p.Impacts {
		out[im.ItemID] += im.QuantityUsed
	}
	return out
}

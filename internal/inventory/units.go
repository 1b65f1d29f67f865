// Package inventory converts between container and consumption units and checks
// stock sufficiency for invoice lines.
package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind tells which unit domain a quantity is expressed in.
type Kind int

const (
	// Consumption is the smallest sellable unit, e.g. one litre.
	Consumption Kind = iota
	// Container is the bulk unit stock is stored in, e.g. one drum.
	Container
)

func (k Kind) String() string {
	if k == Container {
		return "container"
	}
	return "consumption"
}

// Packaging describes how an item converts between the two domains.
type Packaging struct {
	IsBulk       bool
	BulkQuantity float64
}

// Bulk reports whether conversion applies. A missing, zero or negative bulk
// quantity means the item is treated as non-bulk.
func (p Packaging) Bulk() bool {
	return p.IsBulk && p.BulkQuantity > 0 && !math.IsInf(p.BulkQuantity, 0) && !math.IsNaN(p.BulkQuantity)
}

// Quantity is an amount tagged with its unit domain.
type Quantity struct {
	Amount float64
	Kind   Kind
}

// Containers tags n as a stored container count.
func Containers(n float64) Quantity { return Quantity{Amount: n, Kind: Container} }

// Consumables tags n as consumption units.
func Consumables(n float64) Quantity { return Quantity{Amount: n, Kind: Consumption} }

// InConsumption converts q to consumption units. Consumption quantities are returned
// unchanged, so converting twice is a no-op.
func (q Quantity) InConsumption(p Packaging) Quantity {
	if q.Kind == Consumption {
		return q
	}
	return Consumables(CalculateTotalConsumptionUnits(q.Amount, p.IsBulk, p.BulkQuantity))
}

// InContainers converts q to container units.
func (q Quantity) InContainers(p Packaging) Quantity {
	if q.Kind == Container {
		return q
	}
	if !p.Bulk() {
		return Containers(q.Amount)
	}
	return Containers(q.Amount / p.BulkQuantity)
}

// CalculateTotalConsumptionUnits returns stockCount*bulkQuantity for bulk items and
// stockCount otherwise.
func CalculateTotalConsumptionUnits(stockCount float64, isBulk bool, bulkQuantity float64) float64 {
	if !(Packaging{IsBulk: isBulk, BulkQuantity: bulkQuantity}).Bulk() {
		return stockCount
	}
	return stockCount * bulkQuantity
}

// CalculatePricePerConsumptionUnit divides a container price by the units it holds.
func CalculatePricePerConsumptionUnit(bulkPrice decimal.Decimal, isBulk bool, bulkQuantity float64) decimal.Decimal {
	if !(Packaging{IsBulk: isBulk, BulkQuantity: bulkQuantity}).Bulk() {
		return bulkPrice
	}
	return bulkPrice.Div(decimal.NewFromFloat(bulkQuantity))
}

// FormatStockDisplay renders the container count alongside the derived consumption
// count when bulk metadata is present.
func FormatStockDisplay(stockCount, bulkQuantity float64, unitOfMeasure string) string {
	if bulkQuantity > 0 {
		total := stockCount * bulkQuantity
		return fmt.Sprintf("%s %s (%s %s)",
			FormatQuantity(stockCount), pluralize("container", stockCount),
			FormatQuantity(total), GetUnitLabel(unitOfMeasure, total))
	}
	return fmt.Sprintf("%s %s", FormatQuantity(stockCount), GetUnitLabel(unitOfMeasure, stockCount))
}

// abbreviations never take a plural suffix.
var abbreviations = map[string]bool{
	"ml": true, "l": true, "kg": true, "g": true, "mg": true, "m": true,
	"cm": true, "mm": true, "oz": true, "lb": true, "gal": true, "qt": true, "pt": true,
}

// GetUnitLabel returns a singular or plural unit label for quantity. An empty unit
// of measure falls back to "unit".
func GetUnitLabel(unitOfMeasure string, quantity float64) string {
	unit := strings.TrimSpace(unitOfMeasure)
	if unit == "" || strings.EqualFold(unit, "unit") || strings.EqualFold(unit, "units") {
		return pluralize("unit", quantity)
	}
	lower := strings.ToLower(unit)
	if abbreviations[lower] {
		return unit
	}
	singular := unit
	if strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 1 {
		singular = unit[:len(unit)-1]
	}
	return pluralize(singular, quantity)
}

func pluralize(word string, quantity float64) string {
	if quantity == 1 {
		return word
	}
	lower := strings.ToLower(word)
	switch {
	case strings.HasSuffix(lower, "s"), strings.HasSuffix(lower, "x"),
		strings.HasSuffix(lower, "ch"), strings.HasSuffix(lower, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

// FormatQuantity prints whole numbers without decimals and fractions with at most two.
func FormatQuantity(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

package inventory

import (
	"fmt"
	"math"
)

// StockCheck is the outcome of a sufficiency check. An invalid result is a soft
// block: the caller asks the user whether to proceed anyway.
type StockCheck struct {
	IsValid   bool    `json:"is_valid"`
	Message   string  `json:"message,omitempty"`
	Requested float64 `json:"requested"`
	Available float64 `json:"available"`
	Shortfall float64 `json:"shortfall,omitempty"`
}

// ValidateSufficientStock compares a requested consumption quantity against the
// stock on hand after converting it to consumption units.
func ValidateSufficientStock(requested, currentStock float64, isBulk bool, bulkQuantity float64, unitOfMeasure string) StockCheck {
	available := CalculateTotalConsumptionUnits(currentStock, isBulk, bulkQuantity)
	check := StockCheck{IsValid: true, Requested: requested, Available: available}
	if math.IsNaN(requested) || requested <= available {
		return check
	}

	check.IsValid = false
	check.Shortfall = requested - available
	check.Message = fmt.Sprintf("Insufficient stock: requested %s %s, only %s %s available (short by %s %s)",
		FormatQuantity(requested), GetUnitLabel(unitOfMeasure, requested),
		FormatQuantity(math.Max(available, 0)), GetUnitLabel(unitOfMeasure, math.Max(available, 0)),
		FormatQuantity(check.Shortfall), GetUnitLabel(unitOfMeasure, check.Shortfall))
	return check
}

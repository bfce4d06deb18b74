package forecast

import (
	"math"

	"github.com/ordercast/ordercast/internal/domain"
)

const (
	lowStockDaysLimit  = 3.0
	overstockDaysLimit = 30.0
	surgeMinDataPoints = 5
	surgeRatio         = 2.0
)

// CalcSafetyStock sizes the buffer for demand variability during lead
// time: z * stdDev * sqrt(leadTime), capped at the rank's maximum days
// of cover. Ranks with a zero z-score carry no safety stock.
func CalcSafetyStock(cfg domain.RankConfig, stats ProductStats, leadTimeDays int) float64 {
	if cfg.SafetyZScore == 0 {
		return 0
	}

	statistical := cfg.SafetyZScore * stats.StdDev * math.Sqrt(float64(leadTimeDays))
	capped := cfg.MaxSafetyDays * stats.AvgDailyRate

	return math.Round(math.Min(statistical, capped))
}

// SafetyDays converts a safety stock quantity into days of cover.
func SafetyDays(safetyStock, avgDailyRate float64) float64 {
	if avgDailyRate == 0 {
		return 0
	}

	return safetyStock / avgDailyRate
}

// DetectAnomalies runs the ordered stock-level rules (first match wins)
// plus the independent demand-surge check.
func DetectAnomalies(stats ProductStats, currentStock float64) AnomalyReport {
	report := AnomalyReport{StockDays: StockDaysSentinel}
	if stats.AvgDailyRate > 0 {
		report.StockDays = currentStock / stats.AvgDailyRate
	}

	switch {
	case currentStock == 0 && stats.AvgDailyRate > 0:
		report.Flags = append(report.Flags, AnomalyStockout)
	case report.StockDays < lowStockDaysLimit && stats.AvgDailyRate > 0:
		report.Flags = append(report.Flags, AnomalyLowStock)
	case report.StockDays > overstockDaysLimit && currentStock > 0:
		report.Flags = append(report.Flags, AnomalyOverstock)
	}

	if stats.DataPoints >= surgeMinDataPoints && stats.AvgDailyRate > 0 &&
		stats.Recent3Avg > surgeRatio*stats.AvgDailyRate {
		report.Flags = append(report.Flags, AnomalyOrderSurge)
	}

	switch {
	case report.Has(AnomalyStockout):
		report.Severity = SeverityHigh
	case len(report.Flags) > 0:
		report.Severity = SeverityMedium
	}

	return report
}

package forecast

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ordercast/ordercast/internal/domain"
)

// Request scopes one forecast run. Zero values for the day counts mean
// "use the engine defaults".
type Request struct {
	StoreID      int64     `json:"store_id"`
	OrderDate    time.Time `json:"order_date"`
	ForecastDays int       `json:"forecast_days"`
	LookbackDays int       `json:"lookback_days"`
}

// ProductInput bundles everything the engine needs for one product:
// master data with current stock, the daily sales history covering the
// seasonality span, learned parameters (nil when never learned), and
// the supplier lead time.
type ProductInput struct {
	Product           domain.Product
	Sales             []domain.SalesPoint
	Params            *domain.ForecastParams
	LeadTimeDays      int
	OrderIntervalDays int
}

// SeasonalityProfile holds one demand index per weekday, indexed by
// time.Weekday (Sunday = 0). Index 1.0 means no weekday effect.
type SeasonalityProfile [7]float64

// FlatSeasonality returns the all-1.0 profile used when the weekday
// pattern is too weak to trust.
func FlatSeasonality() SeasonalityProfile {
	return SeasonalityProfile{1, 1, 1, 1, 1, 1, 1}
}

// At returns the index for a weekday, guarding against non-positive
// values so callers can divide by it.
func (s SeasonalityProfile) At(d time.Weekday) float64 {
	idx := s[d]
	if idx <= 0 {
		return 1.0
	}

	return idx
}

// Flat reports whether every index is exactly 1.0.
func (s SeasonalityProfile) Flat() bool {
	return s == FlatSeasonality()
}

// Named returns the profile keyed by lowercase weekday name for API payloads.
func (s SeasonalityProfile) Named() map[string]float64 {
	names := [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}
	out := make(map[string]float64, 7)
	for i, n := range names {
		out[n] = s[i]
	}

	return out
}

// ProductStats holds the demand statistics extracted from one product's
// daily sales history. Recomputed fresh on every forecast run.
type ProductStats struct {
	AvgDailyRate float64            // mean over the lookback window, zero days included
	StdDev       float64            // population std-dev over the same window
	MedianRate   float64            // median of the outlier-cleaned window
	WeightedRate float64            // exponentially weighted de-seasonalized rate
	TrendFactor  float64            // clamped to [0.7, 1.3]
	BaseRate     float64            // WeightedRate x TrendFactor
	CV           float64            // StdDev / AvgDailyRate, 0 when rate is 0
	Seasonality  SeasonalityProfile // weekday demand indices
	DataPoints   int                // raw history points inside the lookback window
	Recent3Avg   float64            // mean of the last 3 window days
}

// Anomaly flag values, in the order the stock-level rules are checked.
const (
	AnomalyStockout   = "stockout"
	AnomalyLowStock   = "low_stock"
	AnomalyOverstock  = "overstock"
	AnomalyOrderSurge = "order_surge"
)

// Anomaly severities. An empty severity means no anomaly.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// StockDaysSentinel is reported when average demand is zero and days of
// cover cannot be computed.
const StockDaysSentinel = 999.0

// AnomalyReport represents the anomaly flags raised for one product
type AnomalyReport struct {
	Flags     []string `json:"flags"`
	Severity  string   `json:"severity,omitempty"`
	StockDays float64  `json:"stock_days"`
}

// Has reports whether a flag was raised.
func (r AnomalyReport) Has(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}

	return false
}

// OrderPlan holds the order calculation for one product. The breakdown
// string is rendered from the same fields, so it cannot drift from the
// numbers.
type OrderPlan struct {
	Algorithm        string          `json:"algorithm"`
	ForecastQty      float64         `json:"forecast_qty"`
	LeadTimeDemand   float64         `json:"lead_time_demand"`
	SafetyStock      float64         `json:"safety_stock"`
	RawSafetyStock   float64         `json:"raw_safety_stock"`
	GrossDemand      float64         `json:"gross_demand"`
	NetDemand        float64         `json:"net_demand"`
	RecommendedOrder int             `json:"recommended_order"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	BiasApplied      bool            `json:"bias_applied"`
	SafetyApplied    bool            `json:"safety_applied"`
	Suppressed       bool            `json:"suppressed"`
	Breakdown        string          `json:"breakdown"`
}

// SeriesPoint represents one bucket of the past-sales series returned
// with a product forecast.
type SeriesPoint struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"qty"`
}

// Series granularities for the past-sales payload.
const (
	GranularityDaily  = "daily"
	GranularityWeekly = "weekly"
)

// ProductForecast represents the full per-product forecast result
type ProductForecast struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	SupplierName     string          `json:"supplier_name"`
	Rank             domain.Rank     `json:"rank"`
	CumulativeRatio  float64         `json:"cumulative_ratio"`
	Algorithm        string          `json:"algorithm"`
	AvgDailySales    float64         `json:"avg_daily_sales"`
	CV               float64         `json:"coefficient_of_variation"`
	TrendFactor      float64         `json:"trend_factor"`
	CurrentStock     float64         `json:"current_stock"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	RetailPrice      decimal.Decimal `json:"retail_price"`
	LotSize          int             `json:"lot_size"`
	ForecastQty      float64         `json:"forecast_qty"`
	SafetyStock      float64         `json:"safety_stock"`
	LeadTimeDemand   float64         `json:"lead_time_demand"`
	RecommendedOrder int             `json:"recommended_order"`
	OrderAmount      decimal.Decimal `json:"order_amount"`
	Breakdown        string          `json:"breakdown"`
	Anomalies        AnomalyReport   `json:"anomalies"`
	PastSales        []SeriesPoint   `json:"past_sales"`
	PastSalesUnit    string          `json:"past_sales_unit"`
}

// SupplierGroup represents the forecast results for one supplier
type SupplierGroup struct {
	SupplierName      string            `json:"supplier_name"`
	LeadTimeDays      int               `json:"lead_time_days"`
	OrderIntervalDays int               `json:"order_interval_days"`
	Products          []ProductForecast `json:"products"`
	TotalOrderQty     int               `json:"total_order_qty"`
	TotalOrderAmount  decimal.Decimal   `json:"total_order_amount"`
}

// Summary represents the aggregate view over one forecast run
type Summary struct {
	ProductCount          int                 `json:"product_count"`
	OrderCount            int                 `json:"order_count"`
	TotalOrderQty         int                 `json:"total_order_qty"`
	TotalOrderAmount      decimal.Decimal     `json:"total_order_amount"`
	RankCounts            map[domain.Rank]int `json:"rank_counts"`
	AnomalyCounts         map[string]int      `json:"anomaly_counts"`
	EstimatedStockoutCost decimal.Decimal     `json:"estimated_stockout_cost"`
}

// Result represents one full forecast run for a store
type Result struct {
	StoreID        int64           `json:"store_id"`
	OrderDate      time.Time       `json:"order_date"`
	ForecastDays   int             `json:"forecast_days"`
	LookbackDays   int             `json:"lookback_days"`
	SupplierGroups []SupplierGroup `json:"supplier_groups"`
	Summary        Summary         `json:"summary"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Snapshots flattens the run into persistable forecast snapshots, one
// per product. PredictedQty is the demand forecast for the period, not
// the order quantity.
func (r *Result) Snapshots() []domain.ForecastSnapshot {
	periodStart := r.OrderDate
	periodEnd := r.OrderDate.AddDate(0, 0, r.ForecastDays-1)

	var out []domain.ForecastSnapshot
	for _, g := range r.SupplierGroups {
		for _, p := range g.Products {
			out = append(out, domain.ForecastSnapshot{
				StoreID:          r.StoreID,
				ProductID:        p.ProductID,
				ForecastDate:     r.OrderDate,
				PeriodStart:      periodStart,
				PeriodEnd:        periodEnd,
				PredictedQty:     p.ForecastQty,
				Algorithm:        p.Algorithm,
				Rank:             p.Rank,
				SafetyStock:      p.SafetyStock,
				RecommendedOrder: p.RecommendedOrder,
			})
		}
	}

	return out
}

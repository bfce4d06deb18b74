// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store represents a store location
type Store struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Supplier represents supplier settings used when ordering
type Supplier struct {
	Name          string `json:"name" db:"name"`
	LeadTimeDays  int    `json:"lead_time_days" db:"lead_time_days"`
	OrderInterval int    `json:"order_interval_days" db:"order_interval_days"`
}

// Product represents a product in a store context, joined with its
// current stock level. Quantities are units; money fields are decimal.
type Product struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	SupplierName string          `json:"supplier_name" db:"supplier_name"`
	UnitCost     decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	RetailPrice  decimal.Decimal `json:"retail_price" db:"retail_price"`
	LotSize      int             `json:"lot_size" db:"lot_size"`
	CurrentStock float64         `json:"current_stock" db:"current_stock"`
}

// SalesPoint represents one day of realized sales for a product
type SalesPoint struct {
	Date     time.Time `json:"date" db:"sale_date"`
	Quantity float64   `json:"quantity" db:"quantity"`
}

// ForecastSnapshot represents one persisted forecast run for one product.
// It is written at forecast time and mutated exactly once, when the
// accuracy evaluator flips Evaluated after the period has elapsed.
type ForecastSnapshot struct {
	ID               int64     `json:"id" db:"id"`
	StoreID          int64     `json:"store_id" db:"store_id"`
	ProductID        string    `json:"product_id" db:"product_id"`
	ForecastDate     time.Time `json:"forecast_date" db:"forecast_date"`
	PeriodStart      time.Time `json:"period_start" db:"period_start"`
	PeriodEnd        time.Time `json:"period_end" db:"period_end"`
	PredictedQty     float64   `json:"predicted_qty" db:"predicted_qty"`
	Algorithm        string    `json:"algorithm" db:"algorithm"`
	Rank             Rank      `json:"rank" db:"rank"`
	SafetyStock      float64   `json:"safety_stock" db:"safety_stock"`
	RecommendedOrder int       `json:"recommended_order" db:"recommended_order"`
	Evaluated        bool      `json:"evaluated" db:"evaluated"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// AccuracyRecord represents the outcome of one evaluated snapshot
type AccuracyRecord struct {
	ID           int64     `json:"id" db:"id"`
	StoreID      int64     `json:"store_id" db:"store_id"`
	ProductID    string    `json:"product_id" db:"product_id"`
	PeriodStart  time.Time `json:"period_start" db:"period_start"`
	PeriodEnd    time.Time `json:"period_end" db:"period_end"`
	PredictedQty float64   `json:"predicted_qty" db:"predicted_qty"`
	ActualQty    float64   `json:"actual_qty" db:"actual_qty"`
	Error        float64   `json:"error" db:"forecast_error"`
	AbsError     float64   `json:"abs_error" db:"abs_error"`
	MAPE         float64   `json:"mape" db:"mape"`
	Bias         float64   `json:"bias" db:"bias"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// ForecastParams represents the learned per-product coefficients.
// Defaults are neutral; the forecaster applies BiasCorrection and
// SafetyMultiplier only once LearningCycles reaches MinLearningCycles.
type ForecastParams struct {
	ID               int64     `json:"id" db:"id"`
	StoreID          int64     `json:"store_id" db:"store_id"`
	ProductID        string    `json:"product_id" db:"product_id"`
	BiasCorrection   float64   `json:"bias_correction" db:"bias_correction"`
	SafetyMultiplier float64   `json:"safety_multiplier" db:"safety_multiplier"`
	BestLookbackDays int       `json:"best_lookback_days" db:"best_lookback_days"`
	DowReliability   float64   `json:"dow_reliability" db:"dow_reliability"`
	WeeklyMAPE       float64   `json:"weekly_mape" db:"weekly_mape"`
	WeeklyBias       float64   `json:"weekly_bias" db:"weekly_bias"`
	LearningCycles   int       `json:"learning_cycles" db:"learning_cycles"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// ProductKey identifies one product in one store. Learning jobs are
// keyed and parallelized on it.
type ProductKey struct {
	StoreID   int64  `json:"store_id" db:"store_id"`
	ProductID string `json:"product_id" db:"product_id"`
}

// MinLearningCycles is the history depth required before learned
// corrections are trusted enough to be applied.
const MinLearningCycles = 3

// DefaultForecastParams returns neutral parameters for a product that
// has not been through the learning loop yet.
func DefaultForecastParams(storeID int64, productID string) *ForecastParams {
	return &ForecastParams{
		StoreID:          storeID,
		ProductID:        productID,
		BiasCorrection:   1.0,
		SafetyMultiplier: 1.0,
		BestLookbackDays: 28,
		DowReliability:   1.0,
		LearningCycles:   0,
	}
}

// Active reports whether learned corrections should be applied.
func (p *ForecastParams) Active() bool {
	return p != nil && p.LearningCycles >= MinLearningCycles
}

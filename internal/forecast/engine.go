package forecast

import (
	"sort"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

// Defaults are the engine fallbacks for request knobs and per-product
// inputs that collaborators leave unset.
type Defaults struct {
	ForecastDays int
	LookbackDays int
	LeadTimeDays int
	LotSize      int
}

// Engine runs the full forecast pipeline over in-memory inputs. It
// holds no mutable state, so one instance serves concurrent requests.
type Engine struct {
	defaults Defaults
}

// NewEngine creates an engine with the given defaults. Non-positive
// defaults are replaced with the built-in ones.
func NewEngine(d Defaults) *Engine {
	if d.ForecastDays <= 0 {
		d.ForecastDays = 7
	}
	if d.LookbackDays <= 0 {
		d.LookbackDays = 28
	}
	if d.LeadTimeDays <= 0 {
		d.LeadTimeDays = 3
	}
	if d.LotSize <= 0 {
		d.LotSize = 1
	}

	return &Engine{defaults: d}
}

// Run produces the forecast result for one store scope. Inputs are
// fully assembled by the caller; the run itself touches no shared state
// and is safe to execute in parallel with other runs.
func (e *Engine) Run(req Request, inputs []ProductInput) *Result {
	orderDate := dateOnly(req.OrderDate)
	if req.OrderDate.IsZero() {
		orderDate = dateOnly(time.Now())
	}
	forecastDays := req.ForecastDays
	if forecastDays <= 0 {
		forecastDays = e.defaults.ForecastDays
	}
	lookbackDays := req.LookbackDays
	if lookbackDays <= 0 {
		lookbackDays = e.defaults.LookbackDays
	}

	// 1. Per-product statistics. A learned lookback window overrides
	// the request-level one for that product only.
	type computed struct {
		in    ProductInput
		stats ProductStats
	}
	items := make([]computed, 0, len(inputs))
	values := make([]SalesValueItem, 0, len(inputs))
	for _, in := range inputs {
		lb := lookbackDays
		if in.Params != nil && in.Params.BestLookbackDays > 0 {
			lb = in.Params.BestLookbackDays
		}
		stats := BuildStats(in.Sales, orderDate, lb)
		items = append(items, computed{in: in, stats: stats})
		values = append(values, SalesValueItem{
			ProductID:  in.Product.ID,
			SalesValue: stats.AvgDailyRate * priceAsFloat(in.Product.RetailPrice),
		})
	}

	// 2. ABC ranking over the whole scope.
	ranks := AssignRanks(values)

	// 3. Safety stock, anomalies and the order plan per product.
	products := make([]ProductForecast, 0, len(items))
	for _, c := range items {
		products = append(products, e.buildProduct(c.in, c.stats, ranks, orderDate, forecastDays, lookbackDays))
	}

	// 4. Supplier grouping and the aggregate summary.
	res := &Result{
		StoreID:        req.StoreID,
		OrderDate:      orderDate,
		ForecastDays:   forecastDays,
		LookbackDays:   lookbackDays,
		SupplierGroups: groupBySupplier(products, inputs, e.defaults.LeadTimeDays),
		Summary:        buildSummary(products),
		GeneratedAt:    time.Now(),
	}

	return res
}

func (e *Engine) buildProduct(in ProductInput, stats ProductStats, ranks RankTable, orderDate time.Time, forecastDays, lookbackDays int) ProductForecast {
	assignment := ranks.For(in.Product.ID)
	cfg := domain.ConfigForRank(assignment.Rank)

	leadTime := in.LeadTimeDays
	if leadTime <= 0 {
		leadTime = e.defaults.LeadTimeDays
	}
	lotSize := in.Product.LotSize
	if lotSize <= 0 {
		lotSize = e.defaults.LotSize
	}

	plan := BuildOrder(OrderInput{
		Rank:         assignment.Rank,
		Config:       cfg,
		Stats:        stats,
		Params:       in.Params,
		CurrentStock: in.Product.CurrentStock,
		LeadTimeDays: leadTime,
		ForecastDays: forecastDays,
		LotSize:      lotSize,
		UnitCost:     in.Product.UnitCost,
		OrderDate:    orderDate,
	})
	anomalies := DetectAnomalies(stats, in.Product.CurrentStock)

	effectiveLookback := lookbackDays
	if in.Params != nil && in.Params.BestLookbackDays > 0 {
		effectiveLookback = in.Params.BestLookbackDays
	}
	series, unit := PastSalesSeries(in.Sales, orderDate, effectiveLookback)

	return ProductForecast{
		ProductID:        in.Product.ID,
		ProductName:      in.Product.Name,
		SupplierName:     in.Product.SupplierName,
		Rank:             assignment.Rank,
		CumulativeRatio:  assignment.CumulativeRatio,
		Algorithm:        plan.Algorithm,
		AvgDailySales:    stats.AvgDailyRate,
		CV:               stats.CV,
		TrendFactor:      stats.TrendFactor,
		CurrentStock:     in.Product.CurrentStock,
		UnitCost:         in.Product.UnitCost,
		RetailPrice:      in.Product.RetailPrice,
		LotSize:          lotSize,
		ForecastQty:      plan.ForecastQty,
		SafetyStock:      plan.SafetyStock,
		LeadTimeDemand:   plan.LeadTimeDemand,
		RecommendedOrder: plan.RecommendedOrder,
		OrderAmount:      plan.OrderAmount,
		Breakdown:        plan.Breakdown,
		Anomalies:        anomalies,
		PastSales:        series,
		PastSalesUnit:    unit,
	}
}

// PastSalesSeries renders the history carried on the result: daily
// points for short windows, Monday-anchored weekly buckets otherwise.
func PastSalesSeries(sales []domain.SalesPoint, orderDate time.Time, lookbackDays int) ([]SeriesPoint, string) {
	refEnd := dateOnly(orderDate).AddDate(0, 0, -1)
	daily := materializeDaily(sales, refEnd, lookbackDays)

	if lookbackDays <= 14 {
		pts := make([]SeriesPoint, 0, len(daily))
		for _, d := range daily {
			pts = append(pts, SeriesPoint{Date: d.date.Format("2006-01-02"), Quantity: d.qty})
		}

		return pts, GranularityDaily
	}

	var pts []SeriesPoint
	var currentWeek string
	for _, d := range daily {
		offset := (int(d.date.Weekday()) + 6) % 7
		week := d.date.AddDate(0, 0, -offset).Format("2006-01-02")
		if week != currentWeek {
			pts = append(pts, SeriesPoint{Date: week})
			currentWeek = week
		}
		pts[len(pts)-1].Quantity += d.qty
	}

	return pts, GranularityWeekly
}

func sortProducts(products []ProductForecast) {
	sort.SliceStable(products, func(i, j int) bool {
		cmp := products[i].OrderAmount.Cmp(products[j].OrderAmount)
		if cmp != 0 {
			return cmp > 0
		}

		return products[i].ProductID < products[j].ProductID
	})
}

package forecast

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ordercast/ordercast/internal/domain"
)

// stockoutLossDays is the fixed multiplier behind the estimated
// stockout cost: two days of lost sales at the retail price.
const stockoutLossDays = 2

// defaultOrderIntervalDays is the fallback ordering cycle when the
// supplier row carries none: once a week.
const defaultOrderIntervalDays = 7

// groupBySupplier splits product results into supplier groups with
// per-group totals. Lead time and order interval come from the product
// inputs; products inside a group are ordered by order amount, largest
// first.
func groupBySupplier(products []ProductForecast, inputs []ProductInput, defaultLeadTime int) []SupplierGroup {
	leadTimes := make(map[string]int, len(inputs))
	intervals := make(map[string]int, len(inputs))
	for _, in := range inputs {
		if in.LeadTimeDays > 0 {
			leadTimes[in.Product.SupplierName] = in.LeadTimeDays
		}
		if in.OrderIntervalDays > 0 {
			intervals[in.Product.SupplierName] = in.OrderIntervalDays
		}
	}

	byName := make(map[string][]ProductForecast)
	for _, p := range products {
		byName[p.SupplierName] = append(byName[p.SupplierName], p)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]SupplierGroup, 0, len(names))
	for _, name := range names {
		members := byName[name]
		sortProducts(members)

		group := SupplierGroup{
			SupplierName:      name,
			LeadTimeDays:      defaultLeadTime,
			OrderIntervalDays: defaultOrderIntervalDays,
			Products:          members,
			TotalOrderAmount:  decimal.Zero,
		}
		if lt, ok := leadTimes[name]; ok {
			group.LeadTimeDays = lt
		}
		if iv, ok := intervals[name]; ok {
			group.OrderIntervalDays = iv
		}
		for _, p := range members {
			group.TotalOrderQty += p.RecommendedOrder
			group.TotalOrderAmount = group.TotalOrderAmount.Add(p.OrderAmount)
		}
		groups = append(groups, group)
	}

	return groups
}

// buildSummary aggregates rank counts, anomaly counts, order totals and
// the estimated cost of current stockouts across the whole run.
func buildSummary(products []ProductForecast) Summary {
	s := Summary{
		ProductCount:          len(products),
		TotalOrderAmount:      decimal.Zero,
		RankCounts:            make(map[domain.Rank]int),
		AnomalyCounts:         make(map[string]int),
		EstimatedStockoutCost: decimal.Zero,
	}

	for _, p := range products {
		s.RankCounts[p.Rank]++
		for _, flag := range p.Anomalies.Flags {
			s.AnomalyCounts[flag]++
		}
		if p.RecommendedOrder > 0 {
			s.OrderCount++
			s.TotalOrderQty += p.RecommendedOrder
			s.TotalOrderAmount = s.TotalOrderAmount.Add(p.OrderAmount)
		}
		if p.CurrentStock == 0 && p.AvgDailySales > 0 {
			loss := p.RetailPrice.Mul(decimal.NewFromFloat(p.AvgDailySales * stockoutLossDays))
			s.EstimatedStockoutCost = s.EstimatedStockoutCost.Add(loss)
		}
	}
	s.EstimatedStockoutCost = s.EstimatedStockoutCost.Round(0)

	return s
}

func priceAsFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()

	return f
}

package forecast

import (
	"math"
	"sort"

	"github.com/ordercast/ordercast/internal/domain"
)

// SalesValueItem is the ranker input: one product and its sales value
// (average daily rate x unit retail price).
type SalesValueItem struct {
	ProductID  string
	SalesValue float64
}

// RankAssignment represents the rank given to one product
type RankAssignment struct {
	Rank            domain.Rank `json:"rank"`
	CumulativeRatio float64     `json:"cumulative_ratio"`
}

// RankTable maps product ids to their assignments.
type RankTable map[string]RankAssignment

// For returns the assignment for a product. Products the ranking pass
// never saw default to rank E with a full cumulative ratio.
func (t RankTable) For(productID string) RankAssignment {
	if a, ok := t[productID]; ok {
		return a
	}

	return RankAssignment{Rank: domain.RankE, CumulativeRatio: 1.0}
}

// AssignRanks partitions products into ranks A-E by descending share of
// cumulative sales value. When every product has zero sales value the
// ranking falls back to position within the sorted list, mapped through
// the same thresholds. Cumulative ratios are rounded to 3 decimals.
func AssignRanks(items []SalesValueItem) RankTable {
	table := make(RankTable, len(items))
	if len(items) == 0 {
		return table
	}

	sorted := append([]SalesValueItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SalesValue > sorted[j].SalesValue
	})

	total := 0.0
	for _, it := range sorted {
		total += it.SalesValue
	}

	running := 0.0
	for i, it := range sorted {
		var ratio float64
		if total > 0 {
			running += it.SalesValue
			ratio = running / total
		} else {
			ratio = float64(i+1) / float64(len(sorted))
		}
		table[it.ProductID] = RankAssignment{
			Rank:            domain.RankForRatio(ratio),
			CumulativeRatio: round3(ratio),
		}
	}

	return table
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

package domain

import "strings"

// Rank is the ABC classification tier for a product. Higher tiers carry
// more of the sales value and get a more aggressive safety-stock policy.
type Rank string

const (
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
	RankE Rank = "E"
)

// Forecast algorithm tags carried by rank configuration.
const (
	AlgorithmDowWeighted = "dow_weighted"
	AlgorithmSimple      = "simple"
)

// RankConfig holds the static ordering policy attached to a rank.
type RankConfig struct {
	CumulativeThreshold float64 `json:"cumulative_threshold"`
	SafetyZScore        float64 `json:"safety_z_score"`
	MaxSafetyDays       float64 `json:"max_safety_days"`
	Algorithm           string  `json:"algorithm"`
	MinOrderLot         int     `json:"min_order_lot"`
}

// RankOrder lists ranks from highest to lowest share of sales value.
var RankOrder = []Rank{RankA, RankB, RankC, RankD, RankE}

var rankConfigs = map[Rank]RankConfig{
	RankA: {CumulativeThreshold: 0.50, SafetyZScore: 1.65, MaxSafetyDays: 3, Algorithm: AlgorithmDowWeighted, MinOrderLot: 1},
	RankB: {CumulativeThreshold: 0.75, SafetyZScore: 1.28, MaxSafetyDays: 4, Algorithm: AlgorithmDowWeighted, MinOrderLot: 1},
	RankC: {CumulativeThreshold: 0.90, SafetyZScore: 0.84, MaxSafetyDays: 5, Algorithm: AlgorithmSimple, MinOrderLot: 1},
	RankD: {CumulativeThreshold: 0.97, SafetyZScore: 0, MaxSafetyDays: 0, Algorithm: AlgorithmSimple, MinOrderLot: 1},
	RankE: {CumulativeThreshold: 1.0, SafetyZScore: 0, MaxSafetyDays: 0, Algorithm: AlgorithmSimple, MinOrderLot: 3},
}

// ConfigForRank returns the policy for a rank, falling back to rank E
// for unknown values.
func ConfigForRank(r Rank) RankConfig {
	if cfg, ok := rankConfigs[r]; ok {
		return cfg
	}

	return rankConfigs[RankE]
}

// RankForRatio maps a cumulative sales-value ratio onto its rank. The
// first threshold the ratio does not exceed wins, scanning A through E.
func RankForRatio(ratio float64) Rank {
	for _, r := range RankOrder {
		if ratio <= rankConfigs[r].CumulativeThreshold {
			return r
		}
	}

	return RankE
}

// ParseRank returns the Rank for a label (case-insensitive).
func ParseRank(label string) (Rank, bool) {
	r := Rank(strings.ToUpper(strings.TrimSpace(label)))
	_, ok := rankConfigs[r]

	return r, ok
}

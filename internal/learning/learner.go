package learning

import (
	"math"
	"sort"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

const (
	// trailingWindowDays is how far back accuracy history is considered.
	trailingWindowDays = 56

	// minWeeklyPeriods is the number of distinct evaluation periods a
	// product needs inside the trailing window before learning runs.
	minWeeklyPeriods = 3

	// recentRecordCount bounds the "recent performance" view used for
	// bias, safety and reliability updates.
	recentRecordCount = 4

	// biasNoiseBand: average bias inside this band is treated as noise.
	biasNoiseBand = 0.10

	// biasDamper scales how hard one cycle pushes back against bias.
	biasDamper = 0.15

	minBiasCorrection = 0.80
	maxBiasCorrection = 1.20

	// Stock-days outside [stockDaysFloor, stockDaysCeil] nudge the
	// safety multiplier by safetyStep.
	stockDaysFloor = 1.0
	stockDaysCeil  = 21.0
	safetyStep     = 0.1

	minSafetyMultiplier = 0.5
	maxSafetyMultiplier = 2.0

	// minLookbackRecords is how many records a candidate window needs
	// before its MAPE average is comparable.
	minLookbackRecords = 2
)

// lookbackCandidates are the windows the learner may choose between.
var lookbackCandidates = []int{14, 28, 42, 56}

// Input is one product's learning context: its current parameters (nil
// when never learned), its accuracy history, and the current stock used
// by the safety-multiplier rule.
type Input struct {
	StoreID      int64
	ProductID    string
	Params       *domain.ForecastParams
	Records      []domain.AccuracyRecord
	CurrentStock float64
	AsOf         time.Time
}

// Outcome reports what one learning pass did.
type Outcome struct {
	Params  *domain.ForecastParams
	Updated bool
	Reason  string
}

// Skip reasons.
const (
	ReasonInsufficientHistory = "insufficient_history"
)

// HistoryCutoff returns the oldest accuracy date a learning run
// anchored at asOf considers. Callers use it to bound their fetches.
func HistoryCutoff(asOf time.Time) time.Time {
	return truncateDay(asOf).AddDate(0, 0, -trailingWindowDays)
}

// Learn runs one parameter-learning cycle for a product. Products with
// fewer than minWeeklyPeriods distinct periods in the trailing window
// are skipped untouched. All four coefficients update independently and
// always land inside their clamped ranges.
func Learn(in Input) Outcome {
	recent := filterSince(in.Records, HistoryCutoff(in.AsOf))

	if countDistinctPeriods(recent) < minWeeklyPeriods {
		return Outcome{Params: in.Params, Reason: ReasonInsufficientHistory}
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].PeriodStart.After(recent[j].PeriodStart)
	})
	head := recent
	if len(head) > recentRecordCount {
		head = head[:recentRecordCount]
	}

	params := in.Params
	if params == nil {
		params = domain.DefaultForecastParams(in.StoreID, in.ProductID)
	}
	next := *params

	// 1. Bias correction: push back against a sustained average bias,
	// damped so one bad week cannot swing the forecast.
	avgBias := avgOf(head, func(r domain.AccuracyRecord) float64 { return r.Bias })
	if math.Abs(avgBias) > biasNoiseBand {
		next.BiasCorrection = clamp(params.BiasCorrection-avgBias*biasDamper, minBiasCorrection, maxBiasCorrection)
	}

	// 2. Safety multiplier: steer days of cover back into the stable
	// zone. Unjudgeable when recent demand was zero.
	avgActual := avgOf(head, func(r domain.AccuracyRecord) float64 { return r.ActualQty })
	dailyActual := avgActual / 7.0
	if dailyActual > 0 {
		stockDays := in.CurrentStock / dailyActual
		switch {
		case stockDays < stockDaysFloor:
			next.SafetyMultiplier = clamp(params.SafetyMultiplier+safetyStep, minSafetyMultiplier, maxSafetyMultiplier)
		case stockDays > stockDaysCeil:
			next.SafetyMultiplier = clamp(params.SafetyMultiplier-safetyStep, minSafetyMultiplier, maxSafetyMultiplier)
		}
	}

	// 3. Best lookback window by minimum mean MAPE over the candidates
	// that have enough history to judge.
	if best, ok := bestLookback(in.Records, in.AsOf); ok {
		next.BestLookbackDays = best
	}

	// 4. Weekday-pattern reliability: lower recent error means more
	// trust in the seasonal projection.
	avgMAPE := avgOf(head, func(r domain.AccuracyRecord) float64 { return r.MAPE })
	next.DowReliability = clamp(1.0-avgMAPE, 0, 1)

	next.WeeklyMAPE = round4(avgMAPE)
	next.WeeklyBias = round4(avgBias)
	next.LearningCycles = params.LearningCycles + 1

	return Outcome{Params: &next, Updated: true}
}

// bestLookback scans the candidate windows in ascending order and keeps
// the first strict improvement, so ties favor the shorter window.
func bestLookback(records []domain.AccuracyRecord, asOf time.Time) (int, bool) {
	bestWindow := 0
	bestMAPE := math.Inf(1)
	day := truncateDay(asOf)

	for _, window := range lookbackCandidates {
		cutoff := day.AddDate(0, 0, -window)
		qualifying := filterSince(records, cutoff)
		if len(qualifying) < minLookbackRecords {
			continue
		}
		m := avgOf(qualifying, func(r domain.AccuracyRecord) float64 { return r.MAPE })
		if m < bestMAPE {
			bestMAPE = m
			bestWindow = window
		}
	}

	return bestWindow, bestWindow > 0
}

func filterSince(records []domain.AccuracyRecord, cutoff time.Time) []domain.AccuracyRecord {
	out := make([]domain.AccuracyRecord, 0, len(records))
	for _, r := range records {
		if !r.PeriodStart.Before(cutoff) {
			out = append(out, r)
		}
	}

	return out
}

func countDistinctPeriods(records []domain.AccuracyRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		seen[r.PeriodStart.Format("2006-01-02")] = struct{}{}
	}

	return len(seen)
}

func avgOf(records []domain.AccuracyRecord, f func(domain.AccuracyRecord) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += f(r)
	}

	return sum / float64(len(records))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}

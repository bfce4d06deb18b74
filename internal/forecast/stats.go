package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

const (
	// minSeasonalitySpan is the minimum history span, in days, used to
	// estimate weekday indices. Shorter lookbacks are padded up to this.
	minSeasonalitySpan = 84

	// seasonalityTrustBand: if every weekday index stays inside
	// [1-band, 1+band] the pattern is considered noise and flattened.
	seasonalityTrustBand = 0.25

	// minTrendPoints is the minimum number of window days before a
	// trend is estimated at all.
	minTrendPoints = 7

	// weakTrendThreshold: relative trends below this are ignored.
	weakTrendThreshold = 0.10
)

type dayQty struct {
	date time.Time
	qty  float64
}

// BuildStats extracts demand statistics for one product from its raw
// daily sales history. The window of lookbackDays ends the day before
// orderDate; dates missing from the series count as zero-sale days.
func BuildStats(sales []domain.SalesPoint, orderDate time.Time, lookbackDays int) ProductStats {
	stats := ProductStats{
		TrendFactor: 1.0,
		Seasonality: FlatSeasonality(),
	}
	if lookbackDays <= 0 {
		return stats
	}

	refEnd := dateOnly(orderDate).AddDate(0, 0, -1)

	// 1. Materialize the daily series over the seasonality span, then
	// slice off the lookback window.
	span := lookbackDays
	if span < minSeasonalitySpan {
		span = minSeasonalitySpan
	}
	daily := materializeDaily(sales, refEnd, span)
	window := daily[len(daily)-lookbackDays:]

	windowStart := refEnd.AddDate(0, 0, -(lookbackDays - 1))
	stats.DataPoints = countRawPoints(sales, windowStart, refEnd)

	// 2. Weekday seasonality over the full span.
	stats.Seasonality = seasonalityProfile(daily)

	// 3. Plain mean and population std-dev over the window, zero days included.
	values := make([]float64, len(window))
	for i, d := range window {
		values[i] = d.qty
	}
	stats.AvgDailyRate = mean(values)
	stats.StdDev = populationStdDev(values, stats.AvgDailyRate)
	if stats.AvgDailyRate > 0 {
		stats.CV = stats.StdDev / stats.AvgDailyRate
	}

	// 4. IQR outlier cleaning for the robust median and the admission
	// cap on the weighted rate.
	cleaned := removeOutliersIQR(values)
	stats.MedianRate = median(cleaned)
	cleanedMax := 0.0
	for _, v := range cleaned {
		if v > cleanedMax {
			cleanedMax = v
		}
	}

	// 5. Exponentially weighted, de-seasonalized base rate.
	stats.WeightedRate = weightedBaseRate(window, stats.Seasonality, lookbackDays, cleanedMax)

	// 6. Trend factor from a linear fit over the window.
	stats.TrendFactor = trendFactor(values)
	stats.BaseRate = stats.WeightedRate * stats.TrendFactor

	// 7. Short-horizon average for the surge check.
	recent := values
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	stats.Recent3Avg = mean(recent)

	return stats
}

// HistoryWindow returns the inclusive date range callers should load
// sales for so one run has enough history for both the lookback window
// and the seasonality span. The range ends the day before orderDate.
func HistoryWindow(orderDate time.Time, lookbackDays int) (from, to time.Time) {
	span := lookbackDays
	if span < minSeasonalitySpan {
		span = minSeasonalitySpan
	}
	to = dateOnly(orderDate).AddDate(0, 0, -1)
	from = to.AddDate(0, 0, -(span - 1))

	return from, to
}

// materializeDaily expands the sparse sales points into one entry per
// calendar day over the span ending at end, summing duplicates and
// filling gaps with zero.
func materializeDaily(sales []domain.SalesPoint, end time.Time, span int) []dayQty {
	byDate := make(map[string]float64, len(sales))
	for _, p := range sales {
		byDate[p.Date.Format("2006-01-02")] += p.Quantity
	}

	out := make([]dayQty, 0, span)
	for i := span - 1; i >= 0; i-- {
		d := end.AddDate(0, 0, -i)
		out = append(out, dayQty{date: d, qty: byDate[d.Format("2006-01-02")]})
	}

	return out
}

func countRawPoints(sales []domain.SalesPoint, start, end time.Time) int {
	n := 0
	for _, p := range sales {
		d := dateOnly(p.Date)
		if !d.Before(start) && !d.After(end) {
			n++
		}
	}

	return n
}

// seasonalityProfile computes weekday demand indices over the
// materialized span. A pattern where no weekday deviates by more than
// the trust band is flattened to all-1.0.
func seasonalityProfile(daily []dayQty) SeasonalityProfile {
	overall := 0.0
	var sums, counts [7]float64
	for _, d := range daily {
		wd := d.date.Weekday()
		sums[wd] += d.qty
		counts[wd]++
		overall += d.qty
	}
	if len(daily) == 0 || overall <= 0 {
		return FlatSeasonality()
	}
	overallMean := overall / float64(len(daily))

	profile := FlatSeasonality()
	trusted := false
	for wd := 0; wd < 7; wd++ {
		if counts[wd] == 0 {
			continue
		}
		idx := (sums[wd] / counts[wd]) / overallMean
		profile[wd] = idx
		if idx < 1-seasonalityTrustBand || idx > 1+seasonalityTrustBand {
			trusted = true
		}
	}
	if !trusted {
		return FlatSeasonality()
	}

	return profile
}

// weightedBaseRate computes the exponentially weighted average of the
// de-seasonalized window, newest day first. Values beyond 1.5x the
// outlier-cleaned maximum are excluded; zero-sale days always count.
func weightedBaseRate(window []dayQty, profile SeasonalityProfile, lookbackDays int, cleanedMax float64) float64 {
	alpha := 2.0 / (float64(lookbackDays) + 1.0)
	admitCap := cleanedMax * 1.5

	var sum, weightSum float64
	for i := 0; i < len(window); i++ {
		day := window[len(window)-1-i]
		if day.qty > 0 && day.qty > admitCap {
			continue
		}
		w := math.Pow(1-alpha, float64(i))
		sum += w * day.qty / profile.At(day.date.Weekday())
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}

	return sum / weightSum
}

// trendFactor fits quantity against day index (oldest = 1) and converts
// the slope into a multiplicative factor clamped to [0.7, 1.3]. Weak or
// underdetermined trends collapse to 1.0.
func trendFactor(values []float64) float64 {
	n := len(values)
	if n < minTrendPoints {
		return 1.0
	}
	meanY := mean(values)
	if meanY == 0 {
		return 1.0
	}

	meanX := float64(n+1) / 2.0
	var num, den float64
	for i, y := range values {
		x := float64(i + 1)
		num += (x - meanX) * (y - meanY)
		den += (x - meanX) * (x - meanX)
	}
	if den == 0 {
		return 1.0
	}

	slope := num / den
	strength := slope * float64(n) / meanY
	if math.Abs(strength) < weakTrendThreshold {
		return 1.0
	}

	return clamp(1.0+0.5*strength, 0.7, 1.3)
}

// removeOutliersIQR drops values outside [Q1-1.5*IQR, Q3+1.5*IQR].
func removeOutliersIQR(values []float64) []float64 {
	if len(values) < 4 {
		return append([]float64(nil), values...)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr

	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			out = append(out, v)
		}
	}

	return out
}

// percentile interpolates linearly over a sorted slice, p in [0,1].
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}

	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}

	return sorted[mid]
}

func populationStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)))
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

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

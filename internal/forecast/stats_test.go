package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercast/ordercast/internal/domain"
)

// dailySales builds consecutive daily points ending at end, quantities
// given oldest first.
func dailySales(end time.Time, qtys []float64) []domain.SalesPoint {
	pts := make([]domain.SalesPoint, 0, len(qtys))
	for i, q := range qtys {
		pts = append(pts, domain.SalesPoint{
			Date:     end.AddDate(0, 0, -(len(qtys) - 1 - i)),
			Quantity: q,
		})
	}

	return pts
}

func repeat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func mkWindow(end time.Time, qtys []float64) []dayQty {
	out := make([]dayQty, 0, len(qtys))
	for i, q := range qtys {
		out = append(out, dayQty{
			date: end.AddDate(0, 0, -(len(qtys) - 1 - i)),
			qty:  q,
		})
	}

	return out
}

func TestBuildStatsSteadySeries(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)
	stats := BuildStats(dailySales(refEnd, repeat(28, 10)), monday, 28)

	assert.InDelta(t, 10.0, stats.AvgDailyRate, 1e-9)
	assert.InDelta(t, 0.0, stats.StdDev, 1e-9)
	assert.Zero(t, stats.CV)
	assert.InDelta(t, 10.0, stats.MedianRate, 1e-9)
	assert.InDelta(t, 10.0, stats.WeightedRate, 1e-9)
	assert.Equal(t, 1.0, stats.TrendFactor)
	assert.InDelta(t, 10.0, stats.BaseRate, 1e-9)
	assert.Equal(t, 28, stats.DataPoints)
	assert.InDelta(t, 10.0, stats.Recent3Avg, 1e-9)
	assert.True(t, stats.Seasonality.Flat())
}

func TestBuildStatsFillsMissingDaysWithZero(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)

	// Only the last 3 of 7 window days have sales.
	stats := BuildStats(dailySales(refEnd, []float64{10, 10, 10}), monday, 7)

	assert.InDelta(t, 30.0/7, stats.AvgDailyRate, 1e-9)
	assert.Equal(t, 3, stats.DataPoints, "only raw points count, not filled days")
	assert.InDelta(t, 10.0, stats.Recent3Avg, 1e-9)
	assert.InDelta(t, 4.9487, stats.StdDev, 1e-3)
	assert.InDelta(t, 1.1547, stats.CV, 1e-3)
}

func TestBuildStatsIgnoresSalesOutsideWindow(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)

	sales := dailySales(refEnd, repeat(7, 5))
	// On the order date itself, so past the window end.
	sales = append(sales, domain.SalesPoint{Date: monday, Quantity: 100})
	// Old enough to miss the 7-day window.
	sales = append(sales, domain.SalesPoint{Date: refEnd.AddDate(0, 0, -20), Quantity: 40})

	stats := BuildStats(sales, monday, 7)

	assert.InDelta(t, 5.0, stats.AvgDailyRate, 1e-9)
	assert.Equal(t, 7, stats.DataPoints)
}

func TestBuildStatsSumsDuplicateDates(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)
	sales := []domain.SalesPoint{
		{Date: refEnd, Quantity: 3},
		{Date: refEnd, Quantity: 4},
	}

	stats := BuildStats(sales, monday, 7)

	assert.InDelta(t, 1.0, stats.AvgDailyRate, 1e-9, "7 on one day over a 7-day window")
	assert.Equal(t, 2, stats.DataPoints)
}

func TestBuildStatsZeroLookback(t *testing.T) {
	stats := BuildStats(dailySales(monday, repeat(10, 5)), monday, 0)

	assert.Zero(t, stats.AvgDailyRate)
	assert.Equal(t, 1.0, stats.TrendFactor)
	assert.True(t, stats.Seasonality.Flat())
}

func TestBuildStatsEmptyHistory(t *testing.T) {
	stats := BuildStats(nil, monday, 28)

	assert.Zero(t, stats.AvgDailyRate)
	assert.Zero(t, stats.StdDev)
	assert.Zero(t, stats.CV)
	assert.Zero(t, stats.WeightedRate)
	assert.Zero(t, stats.BaseRate)
	assert.Zero(t, stats.DataPoints)
	assert.Equal(t, 1.0, stats.TrendFactor)
	assert.True(t, stats.Seasonality.Flat())
}

func TestSeasonalityDetection(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)

	weekdaySeries := func(mondayQty, otherQty float64) []domain.SalesPoint {
		qtys := make([]float64, 84)
		for i := range qtys {
			d := refEnd.AddDate(0, 0, -(83 - i))
			if d.Weekday() == time.Monday {
				qtys[i] = mondayQty
			} else {
				qtys[i] = otherQty
			}
		}

		return dailySales(refEnd, qtys)
	}

	t.Run("strong weekday pattern is kept", func(t *testing.T) {
		stats := BuildStats(weekdaySeries(20, 10), monday, 28)

		require.False(t, stats.Seasonality.Flat())
		// Overall mean is 80/7 per week, so Monday indexes at 1.75.
		assert.InDelta(t, 1.75, stats.Seasonality.At(time.Monday), 1e-9)
		assert.InDelta(t, 0.875, stats.Seasonality.At(time.Tuesday), 1e-9)
	})

	t.Run("weak pattern is flattened to noise", func(t *testing.T) {
		stats := BuildStats(weekdaySeries(11, 10), monday, 28)

		assert.True(t, stats.Seasonality.Flat())
	})
}

func TestWeightedBaseRate(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)

	t.Run("spikes beyond the cleaned cap are excluded", func(t *testing.T) {
		window := mkWindow(refEnd, []float64{10, 10, 10, 1000, 10, 10, 10})
		got := weightedBaseRate(window, FlatSeasonality(), 7, 10)

		assert.InDelta(t, 10.0, got, 1e-9)
	})

	t.Run("zero days always count", func(t *testing.T) {
		window := mkWindow(refEnd, []float64{10, 0, 10, 0})
		got := weightedBaseRate(window, FlatSeasonality(), 4, 10)

		// alpha 0.4; weights newest-first 1, .6, .36, .216
		assert.InDelta(t, 8.16/2.176, got, 1e-9)
	})

	t.Run("recent days dominate", func(t *testing.T) {
		window := mkWindow(refEnd, []float64{0, 0, 0, 10})
		got := weightedBaseRate(window, FlatSeasonality(), 4, 10)

		assert.Greater(t, got, 2.5, "plain mean would be 2.5")
		assert.InDelta(t, 10.0/2.176, got, 1e-6)
	})

	t.Run("weekday index divides out", func(t *testing.T) {
		profile := FlatSeasonality()
		profile[time.Monday] = 2.0

		window := mkWindow(refEnd.AddDate(0, 0, 1), []float64{20}) // a Monday
		got := weightedBaseRate(window, profile, 1, 20)

		assert.InDelta(t, 10.0, got, 1e-9)
	})

	t.Run("everything excluded yields zero", func(t *testing.T) {
		window := mkWindow(refEnd, []float64{20, 30})
		got := weightedBaseRate(window, FlatSeasonality(), 2, 10)

		assert.Zero(t, got)
	})
}

func TestTrendFactor(t *testing.T) {
	rising := make([]float64, 28)
	falling := make([]float64, 28)
	drifting := make([]float64, 28)
	moderate := make([]float64, 28)
	for i := range rising {
		rising[i] = float64(i + 1)
		falling[i] = float64(28 - i)
		drifting[i] = 10 + 0.001*float64(i)
		moderate[i] = 8.55 + 0.1*float64(i+1)
	}

	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "too few points", values: []float64{1, 2, 3, 4, 5, 6}, want: 1.0},
		{name: "flat series", values: repeat(14, 10), want: 1.0},
		{name: "all zeros", values: repeat(14, 0), want: 1.0},
		{name: "negligible drift", values: drifting, want: 1.0},
		{name: "moderate growth", values: moderate, want: 1.14},
		{name: "strong growth clamps high", values: rising, want: 1.3},
		{name: "strong decline clamps low", values: falling, want: 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, trendFactor(tt.values), 1e-9)
		})
	}
}

func TestRemoveOutliersIQR(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []float64
	}{
		{
			name:   "fewer than four values pass through",
			values: []float64{1, 100, 1000},
			want:   []float64{1, 100, 1000},
		},
		{
			name:   "high outlier dropped, order preserved",
			values: []float64{10, 12, 11, 13, 100},
			want:   []float64{10, 12, 11, 13},
		},
		{
			name:   "low outlier dropped",
			values: []float64{100, 101, 102, 103, 1},
			want:   []float64{100, 101, 102, 103},
		},
		{
			name:   "clean series untouched",
			values: []float64{1, 2, 3, 4},
			want:   []float64{1, 2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeOutliersIQR(tt.values))
		})
	}
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, percentile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 2.5, percentile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 1.0, percentile(sorted, 0), 1e-9)
	assert.InDelta(t, 4.0, percentile(sorted, 1), 1e-9)
	assert.InDelta(t, 7.0, percentile([]float64{7}, 0.5), 1e-9)
	assert.Zero(t, percentile(nil, 0.5))
}

func TestHistoryWindow(t *testing.T) {
	t.Run("short lookbacks pad out to the seasonality span", func(t *testing.T) {
		from, to := HistoryWindow(monday, 28)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
		assert.Equal(t, time.Date(2025, 12, 8, 0, 0, 0, 0, time.UTC), from)
	})

	t.Run("long lookbacks set the span themselves", func(t *testing.T) {
		from, to := HistoryWindow(monday, 120)

		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), to)
		assert.Equal(t, time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC), from)
	})
}

func TestBuildStatsRecent3Avg(t *testing.T) {
	refEnd := monday.AddDate(0, 0, -1)
	qtys := append(repeat(4, 10), 1, 2, 3)

	stats := BuildStats(dailySales(refEnd, qtys), monday, 7)

	assert.InDelta(t, 2.0, stats.Recent3Avg, 1e-9)
}

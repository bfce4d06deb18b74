package learning

import (
	"math"
	"time"

	"github.com/ordercast/ordercast/internal/domain"
)

// PeriodElapsed reports whether a snapshot's forecast horizon has fully
// passed and it can be scored against realized sales.
func PeriodElapsed(s domain.ForecastSnapshot, asOf time.Time) bool {
	return s.PeriodEnd.Before(truncateDay(asOf))
}

// Evaluate scores one snapshot against the realized sales summed over
// its period. Metrics follow the fixed conventions: MAPE falls back to
// 1.0 for a missed zero-demand period and 0 for a correct one; bias is
// 0 whenever actual demand was zero.
func Evaluate(s domain.ForecastSnapshot, actual float64) domain.AccuracyRecord {
	errVal := s.PredictedQty - actual
	absErr := math.Abs(errVal)

	var mape float64
	switch {
	case actual > 0:
		mape = absErr / actual
	case s.PredictedQty > 0:
		mape = 1.0
	default:
		mape = 0
	}

	var bias float64
	if actual > 0 {
		bias = errVal / actual
	}

	return domain.AccuracyRecord{
		StoreID:      s.StoreID,
		ProductID:    s.ProductID,
		PeriodStart:  s.PeriodStart,
		PeriodEnd:    s.PeriodEnd,
		PredictedQty: s.PredictedQty,
		ActualQty:    actual,
		Error:        round4(errVal),
		AbsError:     round4(absErr),
		MAPE:         round4(mape),
		Bias:         round4(bias),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

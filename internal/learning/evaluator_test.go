package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ordercast/ordercast/internal/domain"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		predicted float64
		actual    float64
		wantErr   float64
		wantMAPE  float64
		wantBias  float64
	}{
		{
			name:      "overforecast",
			predicted: 100,
			actual:    80,
			wantErr:   20,
			wantMAPE:  0.25,
			wantBias:  0.25,
		},
		{
			name:      "underforecast",
			predicted: 60,
			actual:    80,
			wantErr:   -20,
			wantMAPE:  0.25,
			wantBias:  -0.25,
		},
		{
			name:      "exact hit",
			predicted: 80,
			actual:    80,
			wantErr:   0,
			wantMAPE:  0,
			wantBias:  0,
		},
		{
			name:      "predicted demand that never came",
			predicted: 10,
			actual:    0,
			wantErr:   10,
			wantMAPE:  1.0,
			wantBias:  0,
		},
		{
			name:      "correctly predicted zero demand",
			predicted: 0,
			actual:    0,
			wantErr:   0,
			wantMAPE:  0,
			wantBias:  0,
		},
		{
			name:      "metrics round to four decimals",
			predicted: 1,
			actual:    3,
			wantErr:   -2,
			wantMAPE:  0.6667,
			wantBias:  -0.6667,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := domain.ForecastSnapshot{
				StoreID:      3,
				ProductID:    "sku-1",
				PeriodStart:  time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				PeriodEnd:    time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
				PredictedQty: tt.predicted,
			}

			rec := Evaluate(snap, tt.actual)

			assert.Equal(t, snap.StoreID, rec.StoreID)
			assert.Equal(t, snap.ProductID, rec.ProductID)
			assert.Equal(t, snap.PeriodStart, rec.PeriodStart)
			assert.Equal(t, snap.PeriodEnd, rec.PeriodEnd)
			assert.Equal(t, tt.predicted, rec.PredictedQty)
			assert.Equal(t, tt.actual, rec.ActualQty)
			assert.InDelta(t, tt.wantErr, rec.Error, 1e-9)
			assert.InDelta(t, tt.wantMAPE, rec.MAPE, 1e-9)
			assert.InDelta(t, tt.wantBias, rec.Bias, 1e-9)
			assert.GreaterOrEqual(t, rec.AbsError, 0.0)
		})
	}
}

func TestPeriodElapsed(t *testing.T) {
	periodEnd := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	snap := domain.ForecastSnapshot{PeriodEnd: periodEnd}

	tests := []struct {
		name string
		asOf time.Time
		want bool
	}{
		{
			name: "during the period",
			asOf: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "late on the final day",
			asOf: time.Date(2026, 3, 8, 23, 59, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "first moment of the next day",
			asOf: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			want: true,
		},
		{
			name: "well after",
			asOf: time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeriodElapsed(snap, tt.asOf))
		})
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/forecast"
)

var evalAsOf = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func newLearningFixture(snapshots *fakeSnapshots, accuracy *fakeAccuracy, sales *fakeSales, catalog *fakeCatalog, cacheFake *fakeCache) *LearningService {
	return NewLearningService(snapshots, accuracy, newFakeParams(), sales, catalog, cacheFake, 2)
}

func TestEvaluateForecasts(t *testing.T) {
	periodStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 0, 6)

	snapshots := newFakeSnapshots(
		domain.ForecastSnapshot{StoreID: 9, ProductID: "p1", ForecastDate: periodStart, PeriodStart: periodStart, PeriodEnd: periodEnd, PredictedQty: 84},
		domain.ForecastSnapshot{StoreID: 9, ProductID: "p2", ForecastDate: periodStart, PeriodStart: periodStart, PeriodEnd: periodEnd.AddDate(0, 0, 2), PredictedQty: 40},
		domain.ForecastSnapshot{StoreID: 9, ProductID: "bad", ForecastDate: periodStart, PeriodStart: periodStart, PeriodEnd: periodEnd, PredictedQty: 30},
	)
	sales := &fakeSales{
		series:  map[string][]domain.SalesPoint{"p1": steadySales(periodEnd, 7, 10)},
		sumErrs: map[string]error{"bad": assert.AnError},
	}
	accuracy := &fakeAccuracy{}

	svc := newLearningFixture(snapshots, accuracy, sales, &fakeCatalog{}, newFakeCache())

	report, err := svc.EvaluateForecasts(context.Background(), evalAsOf)
	require.NoError(t, err)

	// p2's period is still running, so only two snapshots are eligible.
	assert.Equal(t, 2, report.Eligible)
	assert.Equal(t, 1, report.Evaluated)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Skipped)

	require.Equal(t, 1, accuracy.count())
	records, err := accuracy.GetRecords(context.Background(), 9, "p1", periodStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 84.0, rec.PredictedQty)
	assert.Equal(t, 70.0, rec.ActualQty)
	assert.InDelta(t, 0.2, rec.MAPE, 1e-9)
	assert.InDelta(t, 0.2, rec.Bias, 1e-9)

	evaluatedByProduct := make(map[string]bool)
	for _, s := range snapshots.all() {
		evaluatedByProduct[s.ProductID] = s.Evaluated
	}
	assert.True(t, evaluatedByProduct["p1"])
	assert.False(t, evaluatedByProduct["p2"])
	assert.False(t, evaluatedByProduct["bad"], "failed rows stay unevaluated for the next run")

	// Clear the fault and retry: only the failed snapshot is left, and
	// its zero-demand period scores a full miss.
	delete(sales.sumErrs, "bad")
	report, err = svc.EvaluateForecasts(context.Background(), evalAsOf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Eligible)
	assert.Equal(t, 1, report.Evaluated)

	records, err = accuracy.GetRecords(context.Background(), 9, "bad", periodStart)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].MAPE)
	assert.Zero(t, records[0].ActualQty)

	// Everything is scored now.
	report, err = svc.EvaluateForecasts(context.Background(), evalAsOf)
	require.NoError(t, err)
	assert.Zero(t, report.Eligible)
}

func TestEvaluateForecastsCancelled(t *testing.T) {
	periodStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	snapshots := newFakeSnapshots(domain.ForecastSnapshot{
		StoreID: 9, ProductID: "p1",
		PeriodStart: periodStart, PeriodEnd: periodStart.AddDate(0, 0, 6),
	})

	svc := newLearningFixture(snapshots, &fakeAccuracy{}, &fakeSales{}, &fakeCatalog{}, newFakeCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.EvaluateForecasts(ctx, evalAsOf)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLearnParameters(t *testing.T) {
	accuracy := &fakeAccuracy{}
	addRecords := func(productID string, weeks int, bias float64) {
		for w := 1; w <= weeks; w++ {
			start := evalAsOf.AddDate(0, 0, -7*w)
			require.NoError(t, accuracy.SaveRecord(context.Background(), &domain.AccuracyRecord{
				StoreID:     9,
				ProductID:   productID,
				PeriodStart: start,
				PeriodEnd:   start.AddDate(0, 0, 6),
				MAPE:        0.2,
				Bias:        bias,
				ActualQty:   70,
			}))
		}
	}
	addRecords("p1", 4, 0.5) // enough history, sustained overforecast
	addRecords("p2", 2, 0.5) // too thin to learn from
	addRecords("p3", 4, 0.5) // product is gone from the catalog

	catalog := &fakeCatalog{products: map[int64][]domain.Product{
		9: {
			{ID: "p1", SupplierName: "acme", CurrentStock: 50},
			{ID: "p2", SupplierName: "acme", CurrentStock: 10},
		},
	}}
	params := newFakeParams()
	cacheFake := newFakeCache()

	// A cached forecast for the store, to be dropped once params move.
	staleScope := cache.ForecastScope{StoreID: 9, OrderDate: "2026-03-09", ForecastDays: 7, LookbackDays: 28}
	require.NoError(t, cacheFake.SetResult(context.Background(), staleScope, &forecast.Result{StoreID: 9}))

	svc := NewLearningService(newFakeSnapshots(), accuracy, params, &fakeSales{}, catalog, cacheFake, 2)

	report, err := svc.LearnParameters(context.Background(), evalAsOf)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Products)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	learned, err := params.Get(context.Background(), 9, "p1")
	require.NoError(t, err)
	require.NotNil(t, learned)
	assert.Equal(t, 1, learned.LearningCycles)
	assert.InDelta(t, 0.925, learned.BiasCorrection, 1e-9)
	assert.InDelta(t, 0.8, learned.DowReliability, 1e-9)

	skipped, err := params.Get(context.Background(), 9, "p2")
	require.NoError(t, err)
	assert.Nil(t, skipped, "skipped products write nothing")

	assert.Equal(t, []int64{9}, cacheFake.invalidated)
	assert.Zero(t, cacheFake.entryCount(), "stale forecasts for the store are dropped")
}

func TestLearnParametersNothingToDo(t *testing.T) {
	cacheFake := newFakeCache()
	svc := newLearningFixture(newFakeSnapshots(), &fakeAccuracy{}, &fakeSales{}, &fakeCatalog{}, cacheFake)

	report, err := svc.LearnParameters(context.Background(), evalAsOf)
	require.NoError(t, err)

	assert.Zero(t, report.Products)
	assert.Zero(t, report.Updated)
	assert.Empty(t, cacheFake.invalidated)
}

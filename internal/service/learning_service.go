// internal/service/learning_service.go
package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/learning"
	"github.com/ordercast/ordercast/internal/repository"
)

// EvaluationReport summarizes one accuracy-evaluation batch.
type EvaluationReport struct {
	AsOf      time.Time `json:"as_of"`
	Eligible  int       `json:"eligible"`
	Evaluated int       `json:"evaluated"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// LearningReport summarizes one parameter-learning batch.
type LearningReport struct {
	AsOf     time.Time `json:"as_of"`
	Products int       `json:"products"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

// LearningService runs the feedback loop: scoring elapsed forecast
// snapshots against realized sales and adjusting per-product parameters
// from the accumulated accuracy history.
type LearningService struct {
	snapshots repository.SnapshotRepository
	accuracy  repository.AccuracyRepository
	params    repository.ParamsRepository
	sales     repository.SalesRepository
	catalog   repository.CatalogRepository
	cache     cache.ForecastCache

	parallelism int
}

func NewLearningService(
	snapshots repository.SnapshotRepository,
	accuracy repository.AccuracyRepository,
	params repository.ParamsRepository,
	sales repository.SalesRepository,
	catalog repository.CatalogRepository,
	cacheImpl cache.ForecastCache,
	parallelism int,
) *LearningService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopForecastCache()
	}
	if parallelism <= 0 {
		parallelism = 4
	}

	return &LearningService{
		snapshots:   snapshots,
		accuracy:    accuracy,
		params:      params,
		sales:       sales,
		catalog:     catalog,
		cache:       cacheImpl,
		parallelism: parallelism,
	}
}

// EvaluateForecasts scores every unevaluated snapshot whose period has
// elapsed by asOf. Each snapshot is handled independently, so one bad
// row is logged and counted but never aborts the batch. Marking the
// snapshot evaluated is the last step per row, which keeps a retried
// batch from scoring the same snapshot twice.
func (s *LearningService) EvaluateForecasts(ctx context.Context, asOf time.Time) (*EvaluationReport, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	snaps, err := s.snapshots.GetUnevaluated(ctx, truncateDay(asOf))
	if err != nil {
		return nil, err
	}

	report := &EvaluationReport{AsOf: asOf, Eligible: len(snaps)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, snap := range snaps {
		snap := snap
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if !learning.PeriodElapsed(snap, asOf) {
				mu.Lock()
				report.Skipped++
				mu.Unlock()

				return nil
			}

			if err := s.evaluateOne(gctx, snap); err != nil {
				log.Warn().Err(err).
					Int64("store_id", snap.StoreID).
					Str("product_id", snap.ProductID).
					Msg("failed to evaluate forecast snapshot")
				mu.Lock()
				report.Failed++
				mu.Unlock()

				return nil
			}

			mu.Lock()
			report.Evaluated++
			mu.Unlock()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	log.Info().
		Int("eligible", report.Eligible).
		Int("evaluated", report.Evaluated).
		Int("failed", report.Failed).
		Msg("forecast evaluation batch finished")

	return report, nil
}

func (s *LearningService) evaluateOne(ctx context.Context, snap domain.ForecastSnapshot) error {
	actual, err := s.sales.SumSales(ctx, snap.StoreID, snap.ProductID, snap.PeriodStart, snap.PeriodEnd)
	if err != nil {
		return err
	}

	record := learning.Evaluate(snap, actual)
	if err := s.accuracy.SaveRecord(ctx, &record); err != nil {
		return err
	}

	return s.snapshots.MarkEvaluated(ctx, snap.ID)
}

// LearnParameters runs one learning cycle for every product with recent
// accuracy history. Updated stores get their cached forecasts
// invalidated so the next request reflects the new parameters.
func (s *LearningService) LearnParameters(ctx context.Context, asOf time.Time) (*LearningReport, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	cutoff := learning.HistoryCutoff(asOf)

	keys, err := s.accuracy.GetActiveKeys(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &LearningReport{AsOf: asOf, Products: len(keys)}
	touched := make(map[int64]struct{})
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			updated, err := s.learnOne(gctx, key, cutoff, asOf)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				log.Warn().Err(err).
					Int64("store_id", key.StoreID).
					Str("product_id", key.ProductID).
					Msg("failed to learn forecast params")
				report.Failed++
			case updated:
				report.Updated++
				touched[key.StoreID] = struct{}{}
			default:
				report.Skipped++
			}

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	for storeID := range touched {
		if err := s.cache.InvalidateStore(ctx, storeID); err != nil {
			log.Warn().Err(err).Int64("store_id", storeID).Msg("failed to invalidate forecast cache")
		}
	}

	log.Info().
		Int("products", report.Products).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("parameter learning batch finished")

	return report, nil
}

func (s *LearningService) learnOne(ctx context.Context, key domain.ProductKey, cutoff, asOf time.Time) (bool, error) {
	params, err := s.params.Get(ctx, key.StoreID, key.ProductID)
	if err != nil {
		return false, err
	}

	records, err := s.accuracy.GetRecords(ctx, key.StoreID, key.ProductID, cutoff)
	if err != nil {
		return false, err
	}

	product, err := s.catalog.GetProduct(ctx, key.StoreID, key.ProductID)
	if err != nil {
		return false, err
	}

	outcome := learning.Learn(learning.Input{
		StoreID:      key.StoreID,
		ProductID:    key.ProductID,
		Params:       params,
		Records:      records,
		CurrentStock: product.CurrentStock,
		AsOf:         asOf,
	})
	if !outcome.Updated {
		return false, nil
	}

	return true, s.params.Upsert(ctx, outcome.Params)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// internal/service/forecast_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/config"
	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/forecast"
	"github.com/ordercast/ordercast/internal/repository"
)

// CalculateRequest is the service-level input for a forecast run. An
// empty order date means today; zero day counts fall back to the
// configured defaults.
type CalculateRequest struct {
	StoreID       int64    `json:"store_id" binding:"required"`
	OrderDate     string   `json:"order_date"`
	ForecastDays  int      `json:"forecast_days"`
	LookbackDays  int      `json:"lookback_days"`
	SupplierNames []string `json:"supplier_names"`
}

// ProductDetail is the single-product view behind the detail endpoint:
// live statistics, the sales history series and the learned parameters
// that will shape the next forecast.
type ProductDetail struct {
	Product       domain.Product         `json:"product"`
	AvgDailySales float64                `json:"avg_daily_sales"`
	StdDev        float64                `json:"std_dev"`
	CV            float64                `json:"cv"`
	BaseRate      float64                `json:"base_rate"`
	TrendFactor   float64                `json:"trend_factor"`
	DataPoints    int                    `json:"data_points"`
	LookbackDays  int                    `json:"lookback_days"`
	Seasonality   map[string]float64     `json:"seasonality"`
	PastSales     []forecast.SeriesPoint `json:"past_sales"`
	PastSalesUnit string                 `json:"past_sales_unit"`
	Params        *domain.ForecastParams `json:"params,omitempty"`
}

// ForecastService orchestrates a forecast run: it assembles engine
// inputs from the repositories, runs the engine and persists the
// resulting snapshots for later evaluation.
type ForecastService struct {
	engine    *forecast.Engine
	catalog   repository.CatalogRepository
	sales     repository.SalesRepository
	snapshots repository.SnapshotRepository
	params    repository.ParamsRepository
	accuracy  repository.AccuracyRepository
	cache     cache.ForecastCache

	cfg             config.ForecastConfig
	snapshotTimeout time.Duration
}

func NewForecastService(
	catalog repository.CatalogRepository,
	sales repository.SalesRepository,
	snapshots repository.SnapshotRepository,
	params repository.ParamsRepository,
	accuracy repository.AccuracyRepository,
	cacheImpl cache.ForecastCache,
	cfg config.ForecastConfig,
) *ForecastService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopForecastCache()
	}
	timeout := time.Duration(cfg.SnapshotTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ForecastService{
		engine: forecast.NewEngine(forecast.Defaults{
			ForecastDays: cfg.ForecastDays,
			LookbackDays: cfg.LookbackDays,
			LeadTimeDays: cfg.LeadTimeDays,
			LotSize:      cfg.DefaultLotSize,
		}),
		catalog:         catalog,
		sales:           sales,
		snapshots:       snapshots,
		params:          params,
		accuracy:        accuracy,
		cache:           cacheImpl,
		cfg:             cfg,
		snapshotTimeout: timeout,
	}
}

// Calculate runs the forecast for one store scope and returns order
// recommendations grouped by supplier. Snapshots are persisted in the
// background so a slow insert cannot block the response.
func (s *ForecastService) Calculate(ctx context.Context, req CalculateRequest) (*forecast.Result, error) {
	run, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	scope := cache.ForecastScope{
		StoreID:       run.StoreID,
		SupplierNames: req.SupplierNames,
		OrderDate:     run.OrderDate.Format("2006-01-02"),
		ForecastDays:  run.ForecastDays,
		LookbackDays:  run.LookbackDays,
	}
	if cached, ok, err := s.cache.GetResult(ctx, scope); err == nil && ok {
		return cached, nil
	} else if err != nil {
		log.Warn().Err(err).Msg("failed to read forecast result from cache")
	}

	inputs, err := s.assembleInputs(ctx, run, req.SupplierNames)
	if err != nil {
		return nil, err
	}

	result := s.engine.Run(run, inputs)

	if snaps := result.Snapshots(); len(snaps) > 0 {
		go s.persistSnapshots(snaps)
	}

	if err := s.cache.SetResult(ctx, scope, result); err != nil {
		log.Warn().Err(err).Msg("failed to cache forecast result")
	}

	return result, nil
}

// ProductDetail builds the diagnostic view for one product. An explicit
// lookback wins; otherwise the learned window is used when one exists.
func (s *ForecastService) ProductDetail(ctx context.Context, storeID int64, productID string, lookbackDays int) (*ProductDetail, error) {
	product, err := s.catalog.GetProduct(ctx, storeID, productID)
	if err != nil {
		return nil, err
	}

	params, err := s.params.Get(ctx, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast params: %w", err)
	}

	if lookbackDays <= 0 {
		lookbackDays = s.cfg.LookbackDays
		if params != nil && params.BestLookbackDays > 0 {
			lookbackDays = params.BestLookbackDays
		}
	}

	orderDate := time.Now()
	from, to := forecast.HistoryWindow(orderDate, lookbackDays)
	sales, err := s.sales.GetDailySales(ctx, storeID, productID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	stats := forecast.BuildStats(sales, orderDate, lookbackDays)
	series, unit := forecast.PastSalesSeries(sales, orderDate, lookbackDays)

	return &ProductDetail{
		Product:       *product,
		AvgDailySales: stats.AvgDailyRate,
		StdDev:        stats.StdDev,
		CV:            stats.CV,
		BaseRate:      stats.BaseRate,
		TrendFactor:   stats.TrendFactor,
		DataPoints:    stats.DataPoints,
		LookbackDays:  lookbackDays,
		Seasonality:   stats.Seasonality.Named(),
		PastSales:     series,
		PastSalesUnit: unit,
		Params:        params,
	}, nil
}

// Accuracy returns recent evaluation records for a store, newest first,
// optionally narrowed to one product.
func (s *ForecastService) Accuracy(ctx context.Context, storeID int64, productID string, limit int) ([]domain.AccuracyRecord, error) {
	return s.accuracy.GetRecentForStore(ctx, storeID, productID, limit)
}

// Params lists the learned parameter rows for a store.
func (s *ForecastService) Params(ctx context.Context, storeID int64) ([]domain.ForecastParams, error) {
	return s.params.GetForStore(ctx, storeID)
}

// Stores lists all stores known to the catalog.
func (s *ForecastService) Stores(ctx context.Context) ([]*domain.Store, error) {
	return s.catalog.GetStores(ctx)
}

func (s *ForecastService) normalize(req CalculateRequest) (forecast.Request, error) {
	run := forecast.Request{
		StoreID:      req.StoreID,
		OrderDate:    time.Now(),
		ForecastDays: req.ForecastDays,
		LookbackDays: req.LookbackDays,
	}
	if req.OrderDate != "" {
		parsed, err := time.Parse("2006-01-02", req.OrderDate)
		if err != nil {
			return forecast.Request{}, fmt.Errorf("invalid order_date %q: %w", req.OrderDate, err)
		}
		run.OrderDate = parsed
	}
	run.OrderDate = truncateDay(run.OrderDate)
	if run.ForecastDays <= 0 {
		run.ForecastDays = s.cfg.ForecastDays
	}
	if run.LookbackDays <= 0 {
		run.LookbackDays = s.cfg.LookbackDays
	}

	return run, nil
}

func (s *ForecastService) assembleInputs(ctx context.Context, run forecast.Request, supplierNames []string) ([]forecast.ProductInput, error) {
	products, err := s.catalog.GetStoreProducts(ctx, run.StoreID, supplierNames)
	if err != nil {
		return nil, fmt.Errorf("failed to load store products: %w", err)
	}
	if len(products) == 0 {
		return nil, nil
	}

	suppliers, err := s.catalog.GetSuppliers(ctx, supplierNames)
	if err != nil {
		return nil, fmt.Errorf("failed to load suppliers: %w", err)
	}
	supplierByName := make(map[string]domain.Supplier, len(suppliers))
	for _, sup := range suppliers {
		supplierByName[sup.Name] = sup
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	from, to := forecast.HistoryWindow(run.OrderDate, run.LookbackDays)
	salesByProduct, err := s.sales.GetDailySalesBulk(ctx, run.StoreID, ids, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load sales history: %w", err)
	}

	paramsByProduct, err := s.params.GetBulk(ctx, run.StoreID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecast params: %w", err)
	}

	inputs := make([]forecast.ProductInput, 0, len(products))
	for _, p := range products {
		sup := supplierByName[p.SupplierName]
		inputs = append(inputs, forecast.ProductInput{
			Product:           p,
			Sales:             salesByProduct[p.ID],
			Params:            paramsByProduct[p.ID],
			LeadTimeDays:      sup.LeadTimeDays,
			OrderIntervalDays: sup.OrderInterval,
		})
	}

	return inputs, nil
}

// persistSnapshots runs detached from the request context so the write
// survives the response. Failures are logged, never surfaced.
func (s *ForecastService) persistSnapshots(snaps []domain.ForecastSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), s.snapshotTimeout)
	defer cancel()

	if err := s.snapshots.SaveSnapshots(ctx, snaps); err != nil {
		log.Error().Err(err).Int("snapshots", len(snaps)).Msg("failed to persist forecast snapshots")
	}
}

package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ordercast/ordercast/internal/cache"
	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/forecast"
	"github.com/ordercast/ordercast/internal/repository"
)

// In-memory fakes backing the service tests.

var (
	_ repository.CatalogRepository  = (*fakeCatalog)(nil)
	_ repository.SalesRepository    = (*fakeSales)(nil)
	_ repository.SnapshotRepository = (*fakeSnapshots)(nil)
	_ repository.AccuracyRepository = (*fakeAccuracy)(nil)
	_ repository.ParamsRepository   = (*fakeParams)(nil)
	_ cache.ForecastCache           = (*fakeCache)(nil)
)

type fakeCatalog struct {
	stores    []*domain.Store
	products  map[int64][]domain.Product
	suppliers []domain.Supplier
}

func (f *fakeCatalog) GetStores(ctx context.Context) ([]*domain.Store, error) {
	return f.stores, nil
}

func (f *fakeCatalog) GetStoreProducts(ctx context.Context, storeID int64, supplierNames []string) ([]domain.Product, error) {
	all := f.products[storeID]
	if len(supplierNames) == 0 {
		return all, nil
	}

	allowed := make(map[string]bool, len(supplierNames))
	for _, n := range supplierNames {
		allowed[n] = true
	}
	var out []domain.Product
	for _, p := range all {
		if allowed[p.SupplierName] {
			out = append(out, p)
		}
	}

	return out, nil
}

func (f *fakeCatalog) GetProduct(ctx context.Context, storeID int64, productID string) (*domain.Product, error) {
	for _, p := range f.products[storeID] {
		if p.ID == productID {
			cp := p
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("product %s: %w", productID, domain.ErrNotFound)
}

func (f *fakeCatalog) GetSuppliers(ctx context.Context, names []string) ([]domain.Supplier, error) {
	if len(names) == 0 {
		return f.suppliers, nil
	}

	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	var out []domain.Supplier
	for _, s := range f.suppliers {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}

	return out, nil
}

type fakeSales struct {
	series  map[string][]domain.SalesPoint
	sumErrs map[string]error
}

func (f *fakeSales) GetDailySales(ctx context.Context, storeID int64, productID string, from, to time.Time) ([]domain.SalesPoint, error) {
	return salesInRange(f.series[productID], from, to), nil
}

func (f *fakeSales) GetDailySalesBulk(ctx context.Context, storeID int64, productIDs []string, from, to time.Time) (map[string][]domain.SalesPoint, error) {
	out := make(map[string][]domain.SalesPoint, len(productIDs))
	for _, id := range productIDs {
		if pts := salesInRange(f.series[id], from, to); len(pts) > 0 {
			out[id] = pts
		}
	}

	return out, nil
}

func (f *fakeSales) SumSales(ctx context.Context, storeID int64, productID string, from, to time.Time) (float64, error) {
	if err := f.sumErrs[productID]; err != nil {
		return 0, err
	}

	sum := 0.0
	for _, p := range salesInRange(f.series[productID], from, to) {
		sum += p.Quantity
	}

	return sum, nil
}

func salesInRange(pts []domain.SalesPoint, from, to time.Time) []domain.SalesPoint {
	var out []domain.SalesPoint
	for _, p := range pts {
		if !p.Date.Before(from) && !p.Date.After(to) {
			out = append(out, p)
		}
	}

	return out
}

type fakeSnapshots struct {
	mu     sync.Mutex
	rows   []domain.ForecastSnapshot
	nextID int64
	saves  int
	saved  chan struct{}
}

func newFakeSnapshots(rows ...domain.ForecastSnapshot) *fakeSnapshots {
	f := &fakeSnapshots{saved: make(chan struct{}, 16), nextID: 1}
	for _, r := range rows {
		r.ID = f.nextID
		f.nextID++
		f.rows = append(f.rows, r)
	}

	return f
}

func (f *fakeSnapshots) SaveSnapshots(ctx context.Context, snapshots []domain.ForecastSnapshot) error {
	f.mu.Lock()
	for _, s := range snapshots {
		s.ID = f.nextID
		f.nextID++
		f.rows = append(f.rows, s)
	}
	f.saves++
	f.mu.Unlock()

	select {
	case f.saved <- struct{}{}:
	default:
	}

	return nil
}

func (f *fakeSnapshots) GetUnevaluated(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ForecastSnapshot
	for _, r := range f.rows {
		if !r.Evaluated && r.PeriodEnd.Before(before) {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeSnapshots) MarkEvaluated(ctx context.Context, snapshotID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.rows {
		if f.rows[i].ID == snapshotID {
			f.rows[i].Evaluated = true
		}
	}

	return nil
}

func (f *fakeSnapshots) GetEvaluatedBefore(ctx context.Context, before time.Time) ([]domain.ForecastSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ForecastSnapshot
	for _, r := range f.rows {
		if r.Evaluated && r.PeriodEnd.Before(before) {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeSnapshots) DeleteEvaluatedBefore(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var kept []domain.ForecastSnapshot
	var pruned int64
	for _, r := range f.rows {
		if r.Evaluated && r.PeriodEnd.Before(before) {
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept

	return pruned, nil
}

func (f *fakeSnapshots) all() []domain.ForecastSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]domain.ForecastSnapshot(nil), f.rows...)
}

func (f *fakeSnapshots) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.saves
}

type fakeAccuracy struct {
	mu      sync.Mutex
	records []domain.AccuracyRecord
}

func (f *fakeAccuracy) SaveRecord(ctx context.Context, record *domain.AccuracyRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, r := range f.records {
		if r.StoreID == record.StoreID && r.ProductID == record.ProductID && r.PeriodStart.Equal(record.PeriodStart) {
			f.records[i] = *record
			return nil
		}
	}
	f.records = append(f.records, *record)

	return nil
}

func (f *fakeAccuracy) GetRecords(ctx context.Context, storeID int64, productID string, since time.Time) ([]domain.AccuracyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.AccuracyRecord
	for _, r := range f.records {
		if r.StoreID == storeID && r.ProductID == productID && !r.PeriodStart.Before(since) {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeAccuracy) GetRecentForStore(ctx context.Context, storeID int64, productID string, limit int) ([]domain.AccuracyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.AccuracyRecord
	for _, r := range f.records {
		if r.StoreID != storeID {
			continue
		}
		if productID != "" && r.ProductID != productID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (f *fakeAccuracy) GetActiveKeys(ctx context.Context, since time.Time) ([]domain.ProductKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := make(map[domain.ProductKey]bool)
	for _, r := range f.records {
		if !r.PeriodStart.Before(since) {
			seen[domain.ProductKey{StoreID: r.StoreID, ProductID: r.ProductID}] = true
		}
	}
	keys := make([]domain.ProductKey, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StoreID != keys[j].StoreID {
			return keys[i].StoreID < keys[j].StoreID
		}
		return keys[i].ProductID < keys[j].ProductID
	})

	return keys, nil
}

func (f *fakeAccuracy) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.records)
}

type fakeParams struct {
	mu   sync.Mutex
	rows map[domain.ProductKey]*domain.ForecastParams
}

func newFakeParams() *fakeParams {
	return &fakeParams{rows: make(map[domain.ProductKey]*domain.ForecastParams)}
}

func (f *fakeParams) Get(ctx context.Context, storeID int64, productID string) (*domain.ForecastParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.rows[domain.ProductKey{StoreID: storeID, ProductID: productID}]
	if !ok {
		return nil, nil
	}
	cp := *p

	return &cp, nil
}

func (f *fakeParams) GetBulk(ctx context.Context, storeID int64, productIDs []string) (map[string]*domain.ForecastParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*domain.ForecastParams, len(productIDs))
	for _, id := range productIDs {
		if p, ok := f.rows[domain.ProductKey{StoreID: storeID, ProductID: id}]; ok {
			cp := *p
			out[id] = &cp
		}
	}

	return out, nil
}

func (f *fakeParams) GetForStore(ctx context.Context, storeID int64) ([]domain.ForecastParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ForecastParams
	for k, p := range f.rows {
		if k.StoreID == storeID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	return out, nil
}

func (f *fakeParams) Upsert(ctx context.Context, params *domain.ForecastParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *params
	f.rows[domain.ProductKey{StoreID: params.StoreID, ProductID: params.ProductID}] = &cp

	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*forecast.Result
	getErr      error
	sets        int
	invalidated []int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*forecast.Result)}
}

func scopeKey(scope cache.ForecastScope) string {
	names := append([]string(nil), scope.SupplierNames...)
	sort.Strings(names)

	return fmt.Sprintf("%d|%s|%d|%d|%s", scope.StoreID, scope.OrderDate, scope.ForecastDays, scope.LookbackDays, strings.Join(names, ","))
}

func (f *fakeCache) GetResult(ctx context.Context, scope cache.ForecastScope) (*forecast.Result, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, false, f.getErr
	}
	if r, ok := f.entries[scopeKey(scope)]; ok {
		return r, true, nil
	}

	return nil, false, nil
}

func (f *fakeCache) SetResult(ctx context.Context, scope cache.ForecastScope, result *forecast.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries[scopeKey(scope)] = result
	f.sets++

	return nil
}

func (f *fakeCache) InvalidateStore(ctx context.Context, storeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.invalidated = append(f.invalidated, storeID)
	prefix := fmt.Sprintf("%d|", storeID)
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
		}
	}

	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = make(map[string]*forecast.Result)

	return nil
}

func (f *fakeCache) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.sets
}

func (f *fakeCache) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.entries)
}

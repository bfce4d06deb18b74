// internal/storage/archiver.go
package storage

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ordercast/ordercast/internal/domain"
	"github.com/ordercast/ordercast/internal/repository"
)

// ArchiveReport summarizes one archive run.
type ArchiveReport struct {
	Cutoff    time.Time `json:"cutoff"`
	Snapshots int       `json:"snapshots"`
	Objects   int       `json:"objects"`
	Failed    int       `json:"failed"`
	Pruned    int64     `json:"pruned"`
}

// Archiver exports evaluated forecast snapshots past the retention
// window to object storage, one CSV per store and month.
type Archiver struct {
	snapshots repository.SnapshotRepository
	store     ObjectStorage
	afterDays int
}

func NewArchiver(snapshots repository.SnapshotRepository, store ObjectStorage, afterDays int) *Archiver {
	if afterDays <= 0 {
		afterDays = 90
	}

	return &Archiver{snapshots: snapshots, store: store, afterDays: afterDays}
}

// Run archives every evaluated snapshot whose period ended more than
// the retention window before asOf. One store's upload failure is
// logged and counted but does not stop the others. With prune set, the
// archived rows are deleted afterwards, but only when every upload
// succeeded.
func (a *Archiver) Run(ctx context.Context, asOf time.Time, prune bool) (*ArchiveReport, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	cutoff := asOf.AddDate(0, 0, -a.afterDays)
	report := &ArchiveReport{Cutoff: cutoff}

	snaps, err := a.snapshots.GetEvaluatedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report.Snapshots = len(snaps)
	if len(snaps) == 0 {
		return report, nil
	}

	if err := a.store.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	type groupKey struct {
		storeID int64
		month   string
	}
	groups := make(map[groupKey][]domain.ForecastSnapshot)
	for _, s := range snaps {
		key := groupKey{storeID: s.StoreID, month: s.ForecastDate.Format("2006-01")}
		groups[key] = append(groups[key], s)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].storeID != keys[j].storeID {
			return keys[i].storeID < keys[j].storeID
		}

		return keys[i].month < keys[j].month
	})

	for _, key := range keys {
		objectKey := fmt.Sprintf("snapshots/store_%d/%s.csv", key.storeID, key.month)

		data, err := snapshotCSV(groups[key])
		if err == nil {
			err = a.store.UploadObject(ctx, objectKey, data, "text/csv")
		}
		if err != nil {
			log.Error().Err(err).
				Str("object", objectKey).
				Msg("failed to archive forecast snapshots")
			report.Failed++
			continue
		}

		report.Objects++
		log.Info().
			Str("object", objectKey).
			Int("rows", len(groups[key])).
			Msg("archived forecast snapshots")
	}

	if prune && report.Failed == 0 {
		pruned, err := a.snapshots.DeleteEvaluatedBefore(ctx, cutoff)
		if err != nil {
			return report, err
		}
		report.Pruned = pruned
	}

	return report, nil
}

func snapshotCSV(snaps []domain.ForecastSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"store_id", "product_id", "forecast_date", "period_start", "period_end",
		"predicted_qty", "algorithm", "rank", "safety_stock", "recommended_order",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, s := range snaps {
		record := []string{
			strconv.FormatInt(s.StoreID, 10),
			s.ProductID,
			s.ForecastDate.Format("2006-01-02"),
			s.PeriodStart.Format("2006-01-02"),
			s.PeriodEnd.Format("2006-01-02"),
			strconv.FormatFloat(s.PredictedQty, 'f', 2, 64),
			s.Algorithm,
			string(s.Rank),
			strconv.FormatFloat(s.SafetyStock, 'f', 2, 64),
			strconv.Itoa(s.RecommendedOrder),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

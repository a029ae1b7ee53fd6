package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	"HistPull/pkg/cache"
)

const latestReportKey = "latest"

// ErrReportNotFound is returned for unknown run ids.
var ErrReportNotFound = errors.New("report not found")

// CacheReportStore keeps reports in a cache.Service under report:<run_id>,
// and mirrors the most recently saved one under report:latest.
type CacheReportStore struct {
	cache cache.Service
	ttl   time.Duration
}

// NewCacheReportStore creates a report store. A zero ttl keeps reports until evicted.
func NewCacheReportStore(c cache.Service, ttl time.Duration) repository.ReportStore {
	return &CacheReportStore{cache: c, ttl: ttl}
}

func reportKey(id string) string {
	return cache.GenerateKey("report", id)
}

func (s *CacheReportStore) Save(ctx context.Context, report *models.BatchReport) error {
	if report.RunID == "" {
		return fmt.Errorf("save report: empty run id")
	}
	if err := s.cache.Set(ctx, reportKey(report.RunID), report, s.ttl); err != nil {
		return fmt.Errorf("save report %s: %w", report.RunID, err)
	}
	if err := s.cache.Set(ctx, reportKey(latestReportKey), report, s.ttl); err != nil {
		return fmt.Errorf("save latest report: %w", err)
	}
	return nil
}

func (s *CacheReportStore) Get(ctx context.Context, runID string) (*models.BatchReport, error) {
	return s.load(ctx, reportKey(runID))
}

func (s *CacheReportStore) Latest(ctx context.Context) (*models.BatchReport, error) {
	return s.load(ctx, reportKey(latestReportKey))
}

func (s *CacheReportStore) load(ctx context.Context, key string) (*models.BatchReport, error) {
	var report models.BatchReport
	if err := s.cache.Get(ctx, key, &report); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return &report, nil
}

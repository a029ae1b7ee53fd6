package repository

import (
	"context"
	"time"

	"HistPull/internal/domain/models"
)

// DataSource fetches one day of raw rows for one instrument.
// Implementations passed to the batch downloader must be safe for concurrent use.
type DataSource interface {
	Fetch(ctx context.Context, instrument string, date time.Time) ([]models.RawRow, error)
}

// Session is a DataSource that must authenticate before fetching.
type Session interface {
	DataSource
	Login(ctx context.Context) error
}

// PathPlanner resolves and creates the per-leg target directories.
type PathPlanner interface {
	Resolve(date time.Time, instrument string) (models.DirectorySet, error)
}

// Persister writes classified groups to their directories.
// It returns the written file path per non-empty leg.
type Persister interface {
	Persist(ctx context.Context, groups *models.ClassifiedGroups, dirs models.DirectorySet, task models.Task) (map[models.Leg]string, error)
}

// RowSink receives classified rows after files are written.
type RowSink interface {
	Name() string
	Write(ctx context.Context, task models.Task, groups *models.ClassifiedGroups) error
	Close() error
}

// EventPublisher announces task results and finished reports.
type EventPublisher interface {
	PublishResult(ctx context.Context, runID string, res models.TaskResult) error
	PublishReport(ctx context.Context, report *models.BatchReport) error
	Close() error
}

// ReportStore keeps batch reports by run id.
type ReportStore interface {
	Save(ctx context.Context, report *models.BatchReport) error
	Get(ctx context.Context, runID string) (*models.BatchReport, error)
	Latest(ctx context.Context) (*models.BatchReport, error)
}

type Metrics interface {
	RecordTask(result string)
	RecordRows(leg string, n int)
	RecordFile(leg string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

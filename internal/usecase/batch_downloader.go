package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	drepo "HistPull/internal/domain/repository"
	"HistPull/pkg/logger"
	"HistPull/pkg/util"
)

const DefaultMaxWorkers = 4

// DownloaderOption configures BatchDownloader.
type DownloaderOption func(*BatchDownloader)

// WithMaxWorkers caps the number of tasks running at once. Values below 1 are ignored.
func WithMaxWorkers(n int) DownloaderOption {
	return func(d *BatchDownloader) {
		if n > 0 {
			d.maxWorkers = n
		}
	}
}

// WithSinks adds row sinks that run after files are written.
func WithSinks(sinks ...drepo.RowSink) DownloaderOption {
	return func(d *BatchDownloader) { d.sinks = append(d.sinks, sinks...) }
}

// WithPublisher announces every task result.
func WithPublisher(p drepo.EventPublisher) DownloaderOption {
	return func(d *BatchDownloader) {
		if p != nil {
			d.publisher = p
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m drepo.Metrics) DownloaderOption {
	return func(d *BatchDownloader) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithLogger sets the downloader logger.
func WithLogger(log *logger.Logger) DownloaderOption {
	return func(d *BatchDownloader) {
		if log != nil {
			d.log = log
		}
	}
}

// BatchDownloader fans (date, instrument) tasks out to a bounded worker pool.
// The source must be safe for concurrent use; wrap it with Serialize otherwise.
type BatchDownloader struct {
	source     drepo.DataSource
	planner    drepo.PathPlanner
	persister  drepo.Persister
	sinks      []drepo.RowSink
	publisher  drepo.EventPublisher
	metrics    drepo.Metrics
	log        *logger.Logger
	maxWorkers int
}

// NewBatchDownloader wires the per-task pipeline.
func NewBatchDownloader(source drepo.DataSource, planner drepo.PathPlanner, persister drepo.Persister, opts ...DownloaderOption) *BatchDownloader {
	d := &BatchDownloader{
		source:     source,
		planner:    planner,
		persister:  persister,
		publisher:  NopPublisher{},
		metrics:    nopMetrics{},
		log:        logger.Nop(),
		maxWorkers: DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxWorkers returns the configured pool size.
func (d *BatchDownloader) MaxWorkers() int { return d.maxWorkers }

// WithWorkers returns a copy of d using n workers, or d itself when n < 1.
func (d *BatchDownloader) WithWorkers(n int) *BatchDownloader {
	if n < 1 || n == d.maxWorkers {
		return d
	}
	cp := *d
	cp.maxWorkers = n
	return &cp
}

// PlanTasks expands [start, end) x instruments, skipping Saturdays and Sundays.
func PlanTasks(start, end time.Time, instruments []string) []models.Task {
	return planTasks(start, end, instruments, nil)
}

// planTasks calls skipped, when set, once per weekend day left out.
func planTasks(start, end time.Time, instruments []string, skipped func(time.Time)) []models.Task {
	days := util.DaysBetween(start, end)
	tasks := make([]models.Task, 0, len(days)*len(instruments))
	for _, day := range days {
		if util.IsWeekend(day) {
			if skipped != nil {
				skipped(day)
			}
			continue
		}
		for _, inst := range instruments {
			tasks = append(tasks, models.Task{Date: day, Instrument: inst})
		}
	}
	return tasks
}

// Run executes every task of the range and returns once the pool has drained.
// Individual task failures never stop the batch. If ctx is cancelled, tasks not
// yet started are reported as failures carrying the context error.
func (d *BatchDownloader) Run(ctx context.Context, runID string, start, end time.Time, instruments []string) *models.BatchReport {
	report := models.NewBatchReport()
	report.RunID = runID
	report.StartDate = start
	report.EndDate = end
	report.Instruments = append([]string(nil), instruments...)
	report.StartedAt = time.Now().UTC()

	tasks := planTasks(start, end, instruments, func(day time.Time) {
		d.log.Debug("weekend skipped", logger.Date("date", day))
	})
	d.log.Info("batch planned",
		logger.String("run_id", runID),
		logger.Int("tasks", len(tasks)),
		logger.Int("workers", d.maxWorkers))

	if len(tasks) > 0 {
		for res := range d.dispatch(ctx, tasks) {
			report.Add(res)
			if err := d.publisher.PublishResult(ctx, runID, res); err != nil {
				d.log.Warn("publish task result failed", logger.String("task", res.Task.String()), logger.Error(err))
			}
		}
	}

	report.Status = models.RunCompleted
	report.FinishedAt = time.Now().UTC()
	return report
}

// dispatch starts the worker pool and returns the channel results arrive on.
// The channel is closed after every task produced exactly one result.
func (d *BatchDownloader) dispatch(ctx context.Context, tasks []models.Task) <-chan models.TaskResult {
	workers := d.maxWorkers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan models.Task)
	results := make(chan models.TaskResult, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range taskCh {
				results <- d.Process(ctx, t)
			}
		}()
	}

	go func() {
		defer close(taskCh)
		for _, t := range tasks {
			taskCh <- t
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Process runs fetch, classify, resolve, persist and sinks for one task.
// It always returns a result, including when a stage panics.
func (d *BatchDownloader) Process(ctx context.Context, task models.Task) (res models.TaskResult) {
	start := time.Now()
	res.Task = task
	log := d.log.With(logger.String("instrument", task.Instrument), logger.Date("date", task.Date))

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			log.Error("task panicked", logger.Any("panic", r), logger.String("stack", string(debug.Stack())))
		}
		res.Duration = time.Since(start)
		d.metrics.RecordLatency("task", res.Duration.Seconds())
		if res.OK() {
			d.metrics.RecordTask("success")
			log.Info("task completed", logger.Int("rows", sumRows(res.Rows)), logger.Duration("took", res.Duration))
			return
		}
		d.metrics.RecordTask("failure")
		d.metrics.RecordError(errorKind(res.Err))
		log.Error("task failed", logger.Error(res.Err))
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	log.Info("task started")

	fetchStart := time.Now()
	rows, err := d.source.Fetch(ctx, task.Instrument, task.Date)
	d.metrics.RecordLatency("fetch", time.Since(fetchStart).Seconds())
	if err != nil {
		var fe *models.FetchError
		if !errors.As(err, &fe) {
			err = &models.FetchError{Instrument: task.Instrument, Date: task.Date, Err: err}
		}
		res.Err = err
		return res
	}

	classifyStart := time.Now()
	groups, err := Classify(rows, task.Instrument)
	d.metrics.RecordLatency("classify", time.Since(classifyStart).Seconds())
	if err != nil {
		res.Err = err
		return res
	}

	dirs, err := d.planner.Resolve(task.Date, task.Instrument)
	if err != nil {
		res.Err = err
		return res
	}

	persistStart := time.Now()
	files, err := d.persister.Persist(ctx, groups, dirs, task)
	d.metrics.RecordLatency("persist", time.Since(persistStart).Seconds())
	res.Files = files
	if err != nil {
		res.Err = err
		return res
	}

	res.Rows = make(map[models.Leg]int, len(models.Legs))
	for _, leg := range models.Legs {
		n := groups.Group(leg).Len()
		res.Rows[leg] = n
		d.metrics.RecordRows(string(leg), n)
		if _, ok := files[leg]; ok {
			d.metrics.RecordFile(string(leg))
		}
	}

	for _, sink := range d.sinks {
		if err := sink.Write(ctx, task, groups); err != nil {
			var pe *models.PersistError
			if !errors.As(err, &pe) {
				err = &models.PersistError{Path: sink.Name(), Err: err}
			}
			res.Err = err
			return res
		}
	}
	return res
}

func sumRows(rows map[models.Leg]int) int {
	total := 0
	for _, n := range rows {
		total += n
	}
	return total
}

func errorKind(err error) string {
	var (
		fe *models.FetchError
		me *models.MalformedRowError
		pe *models.PersistError
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &fe):
		return "fetch"
	case errors.As(err, &me):
		return "malformed"
	case errors.As(err, &pe):
		return "persist"
	default:
		return "other"
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordTask(string)             {}
func (nopMetrics) RecordRows(string, int)        {}
func (nopMetrics) RecordFile(string)             {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, string, models.TaskResult) error { return nil }
func (NopPublisher) PublishReport(context.Context, *models.BatchReport) error       { return nil }
func (NopPublisher) Close() error                                                   { return nil }

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	drepo "HistPull/internal/domain/repository"
	"HistPull/pkg/logger"
	"HistPull/pkg/util"

	"github.com/google/uuid"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid download request")

// RunMetrics is the run-level part of the metrics recorder.
type RunMetrics interface {
	RecordRun(succeeded, failed int)
	Push(ctx context.Context, url, job string) error
}

// PushTarget names the Pushgateway a finished run reports to.
type PushTarget struct {
	URL string
	Job string
}

// DownloadService owns runs: it assigns ids, stores and announces reports.
type DownloadService struct {
	session     drepo.Session
	downloader  *BatchDownloader
	store       drepo.ReportStore
	publisher   drepo.EventPublisher
	metrics     RunMetrics
	push        PushTarget
	instruments []string
	log         *logger.Logger

	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDownloadService creates the service. defaultInstruments is used for
// requests that name none. metrics may be nil.
func NewDownloadService(
	session drepo.Session,
	downloader *BatchDownloader,
	store drepo.ReportStore,
	publisher drepo.EventPublisher,
	metrics RunMetrics,
	push PushTarget,
	defaultInstruments []string,
	log *logger.Logger,
) *DownloadService {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	bg, cancel := context.WithCancel(context.Background())
	return &DownloadService{
		session:     session,
		downloader:  downloader,
		store:       store,
		publisher:   publisher,
		metrics:     metrics,
		push:        push,
		instruments: defaultInstruments,
		log:         log,
		bg:          bg,
		cancel:      cancel,
	}
}

// Connect authenticates the vendor session. A failure is a *ConnectionError
// and no task may be scheduled after it.
func (s *DownloadService) Connect(ctx context.Context) error {
	if err := s.session.Login(ctx); err != nil {
		var ce *models.ConnectionError
		if !errors.As(err, &ce) {
			err = &models.ConnectionError{Err: err}
		}
		s.log.Error("vendor connection failed", logger.Error(err))
		return err
	}
	s.log.Info("connected to vendor")
	return nil
}

// Run executes req synchronously and returns the finished report.
func (s *DownloadService) Run(ctx context.Context, req models.DownloadRequest) (*models.BatchReport, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}
	return s.execute(ctx, uuid.NewString(), req), nil
}

// Start validates req, stores a running report and executes it in the
// background. It returns the run id.
func (s *DownloadService) Start(ctx context.Context, req models.DownloadRequest) (string, error) {
	req, err := s.normalize(req)
	if err != nil {
		return "", err
	}
	runID := uuid.NewString()

	pending := models.NewBatchReport()
	pending.RunID = runID
	pending.StartDate = req.StartDate
	pending.EndDate = req.EndDate
	pending.Instruments = req.Instruments
	pending.StartedAt = time.Now().UTC()
	if err := s.store.Save(ctx, pending); err != nil {
		return "", fmt.Errorf("store pending report: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(s.bg, runID, req)
	}()
	return runID, nil
}

// Get returns the stored report of runID.
func (s *DownloadService) Get(ctx context.Context, runID string) (*models.BatchReport, error) {
	return s.store.Get(ctx, runID)
}

// Latest returns the most recently stored report.
func (s *DownloadService) Latest(ctx context.Context) (*models.BatchReport, error) {
	return s.store.Latest(ctx)
}

// Close cancels background runs and waits for them to record their reports.
func (s *DownloadService) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.publisher.Close()
}

func (s *DownloadService) normalize(req models.DownloadRequest) (models.DownloadRequest, error) {
	if len(req.Instruments) == 0 {
		req.Instruments = s.instruments
	}
	switch {
	case req.StartDate.IsZero() || req.EndDate.IsZero():
		return req, fmt.Errorf("%w: start and end dates are required", ErrInvalidRequest)
	case req.EndDate.Before(req.StartDate):
		return req, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest,
			req.EndDate.Format(util.DateLayout), req.StartDate.Format(util.DateLayout))
	case len(req.Instruments) == 0:
		return req, fmt.Errorf("%w: no instruments", ErrInvalidRequest)
	case req.MaxWorkers < 0:
		return req, fmt.Errorf("%w: max workers must be positive", ErrInvalidRequest)
	}
	req.StartDate = util.TruncateDay(req.StartDate)
	req.EndDate = util.TruncateDay(req.EndDate)
	return req, nil
}

func (s *DownloadService) execute(ctx context.Context, runID string, req models.DownloadRequest) *models.BatchReport {
	log := s.log.With(logger.String("run_id", runID))
	log.Info("download started",
		logger.Date("start_date", req.StartDate),
		logger.Date("end_date", req.EndDate),
		logger.Strings("instruments", req.Instruments))

	report := s.downloader.WithWorkers(req.MaxWorkers).Run(ctx, runID, req.StartDate, req.EndDate, req.Instruments)
	s.summarize(log, report)

	// the run is over even if ctx was cancelled; record it regardless
	done := context.WithoutCancel(ctx)
	if err := s.store.Save(done, report); err != nil {
		log.Error("store report failed", logger.Error(err))
	}
	if err := s.publisher.PublishReport(done, report); err != nil {
		log.Warn("publish report failed", logger.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordRun(report.Succeeded, len(report.Failures))
		if err := s.metrics.Push(done, s.push.URL, s.push.Job); err != nil {
			log.Warn("metrics push failed", logger.Error(err))
		}
	}
	return report
}

func (s *DownloadService) summarize(log *logger.Logger, report *models.BatchReport) {
	took := report.FinishedAt.Sub(report.StartedAt)
	if report.Clean() {
		log.Info("download completed successfully",
			logger.Int("tasks", report.Tasks),
			logger.Duration("took", took))
		return
	}
	log.Warn("download completed with errors",
		logger.Int("tasks", report.Tasks),
		logger.Int("errors", len(report.Failures)),
		logger.Duration("took", took))
	for _, f := range report.Failures {
		log.Error("task error",
			logger.Date("date", f.Date),
			logger.String("instrument", f.Instrument),
			logger.String("message", f.Message))
	}
}

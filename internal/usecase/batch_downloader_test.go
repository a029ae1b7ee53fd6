package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/repository"
	"HistPull/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func vendorRow(date, symbol string) models.RawRow {
	return models.RawRow{
		"date": date, "time": "09:15:00", "symbol": symbol,
		"open": "100", "high": "101", "low": "99", "close": "100.5",
		"oi": "1000", "volume": "50",
	}
}

// stubSource answers Fetch from fn and counts calls.
type stubSource struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	fn       func(instrument string, date time.Time) ([]models.RawRow, error)
}

func (s *stubSource) Fetch(ctx context.Context, instrument string, date time.Time) ([]models.RawRow, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.fn(instrument, date)
}

func allLegs(instrument string, date time.Time) ([]models.RawRow, error) {
	d := date.Format("2006-01-02")
	return []models.RawRow{
		vendorRow(d, instrument),
		vendorRow(d, instrument+"-I"),
		vendorRow(d, instrument+"24JANCE"),
	}, nil
}

func newDownloader(t *testing.T, src *stubSource, opts ...DownloaderOption) (*BatchDownloader, string) {
	t.Helper()
	root := t.TempDir()
	d := NewBatchDownloader(src, repository.NewDirPlanner(root), repository.NewFilePersister(repository.CSVEncoder{}), opts...)
	return d, root
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, filepath.Base(path))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestPlanTasksSkipsWeekends(t *testing.T) {
	tasks := PlanTasks(day(2024, 1, 1), day(2024, 1, 15), []string{"NIFTY", "BANKNIFTY"})
	assert.Len(t, tasks, 20)

	seen := make(map[string]bool)
	for _, task := range tasks {
		assert.False(t, task.Date.Weekday() == time.Saturday || task.Date.Weekday() == time.Sunday, task.String())
		assert.False(t, seen[task.String()], "duplicate %s", task)
		seen[task.String()] = true
	}
}

func TestPlanTasksEmptyRange(t *testing.T) {
	assert.Empty(t, PlanTasks(day(2024, 1, 2), day(2024, 1, 2), []string{"NIFTY"}))
	assert.Empty(t, PlanTasks(day(2024, 1, 3), day(2024, 1, 2), []string{"NIFTY"}))
	assert.Empty(t, PlanTasks(day(2024, 1, 1), day(2024, 1, 5), nil))
}

func TestRunWritesAllLegs(t *testing.T) {
	src := &stubSource{fn: allLegs}
	d, root := newDownloader(t, src)

	report := d.Run(context.Background(), "run-1", day(2024, 1, 1), day(2024, 1, 2), []string{"NIFTY"})

	assert.True(t, report.Clean())
	assert.Equal(t, 1, report.Tasks)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, models.RunCompleted, report.Status)
	assert.ElementsMatch(t, []string{
		"nifty_spot_01_01_2024.csv",
		"nifty_fut_01_01_2024.csv",
		"nifty_options_01_01_2024.csv",
	}, listFiles(t, root))

	spot, err := os.ReadFile(filepath.Join(root, "nifty_spot", "2024", "1", "nifty_spot_01_01_2024.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(spot)), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(lines[1], ","), 7)

	fut, err := os.ReadFile(filepath.Join(root, "nifty_fut", "2024", "1", "nifty_fut_01_01_2024.csv"))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(fut)), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(lines[1], ","), 9)
}

// latencyMetrics records which operations were timed.
type latencyMetrics struct {
	nopMetrics
	mu  sync.Mutex
	ops map[string]int
}

func (m *latencyMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ops == nil {
		m.ops = make(map[string]int)
	}
	m.ops[op]++
}

func TestProcessTimesEveryStage(t *testing.T) {
	m := &latencyMetrics{}
	d, _ := newDownloader(t, &stubSource{fn: allLegs}, WithMetrics(m))

	res := d.Process(context.Background(), models.Task{Date: day(2024, 1, 1), Instrument: "NIFTY"})

	require.True(t, res.OK())
	for _, op := range []string{"fetch", "classify", "persist", "task"} {
		assert.Equal(t, 1, m.ops[op], op)
	}
}

func TestRunLogsEachWeekendSkipOnce(t *testing.T) {
	var buf syncBuffer
	d, _ := newDownloader(t, &stubSource{fn: allLegs}, WithLogger(logger.NewWithWriter(&buf, "debug")))

	report := d.Run(context.Background(), "run-w", day(2024, 1, 1), day(2024, 1, 15), []string{"NIFTY", "BANKNIFTY"})

	assert.Equal(t, 20, report.Tasks)
	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, `"weekend skipped"`))
	for _, date := range []string{"2024-01-06", "2024-01-07", "2024-01-13", "2024-01-14"} {
		assert.Contains(t, out, date)
	}
}

func TestRunRecordsFetchFailure(t *testing.T) {
	src := &stubSource{fn: func(string, time.Time) ([]models.RawRow, error) {
		return nil, errors.New("connection reset")
	}}
	d, root := newDownloader(t, src)

	report := d.Run(context.Background(), "run-2", day(2024, 1, 1), day(2024, 1, 2), []string{"NIFTY"})

	require.Len(t, report.Failures, 1)
	f := report.Failures[0]
	assert.Equal(t, day(2024, 1, 1), f.Date)
	assert.Equal(t, "NIFTY", f.Instrument)
	assert.Contains(t, f.Message, "connection reset")
	assert.Empty(t, listFiles(t, root))
}

func TestRunWeekendOnlyRange(t *testing.T) {
	src := &stubSource{fn: allLegs}
	d, root := newDownloader(t, src)

	report := d.Run(context.Background(), "run-3", day(2024, 1, 6), day(2024, 1, 8), []string{"NIFTY"})

	assert.Zero(t, report.Tasks)
	assert.Empty(t, report.Failures)
	assert.Zero(t, src.calls.Load())
	assert.Empty(t, listFiles(t, root))
}

func TestRunIsolatesFailures(t *testing.T) {
	src := &stubSource{fn: func(instrument string, date time.Time) ([]models.RawRow, error) {
		if instrument == "BANKNIFTY" && date.Day() == 3 {
			return nil, &models.FetchError{Instrument: instrument, Date: date, Err: models.ErrNoData}
		}
		if instrument == "FINNIFTY" {
			return []models.RawRow{{"symbol": "FINNIFTY"}}, nil
		}
		return allLegs(instrument, date)
	}}
	d, _ := newDownloader(t, src, WithMaxWorkers(3))

	report := d.Run(context.Background(), "run-4", day(2024, 1, 1), day(2024, 1, 6), []string{"NIFTY", "BANKNIFTY", "FINNIFTY"})

	assert.Equal(t, 15, report.Tasks)
	assert.Equal(t, 9, report.Succeeded)
	assert.Len(t, report.Failures, 6)
	assert.EqualValues(t, 15, src.calls.Load())

	var fetchFailures, malformed int
	for _, f := range report.Failures {
		switch f.Instrument {
		case "BANKNIFTY":
			fetchFailures++
			assert.Contains(t, f.Message, models.ErrNoData.Error())
		case "FINNIFTY":
			malformed++
			assert.Contains(t, f.Message, "malformed row")
		}
	}
	assert.Equal(t, 1, fetchFailures)
	assert.Equal(t, 5, malformed)
}

func TestRunRespectsWorkerCap(t *testing.T) {
	src := &stubSource{fn: allLegs, delay: 20 * time.Millisecond}
	d, _ := newDownloader(t, src, WithMaxWorkers(2))

	report := d.Run(context.Background(), "run-5", day(2024, 1, 1), day(2024, 1, 13), []string{"NIFTY", "BANKNIFTY"})

	assert.Equal(t, 20, report.Tasks)
	assert.True(t, report.Clean())
	assert.LessOrEqual(t, src.peak.Load(), int32(2))
}

func TestWithMaxWorkersIgnoresNonPositive(t *testing.T) {
	d, _ := newDownloader(t, &stubSource{fn: allLegs}, WithMaxWorkers(0))
	assert.Equal(t, DefaultMaxWorkers, d.MaxWorkers())
}

func TestRunRecoversFromPanic(t *testing.T) {
	src := &stubSource{fn: func(instrument string, date time.Time) ([]models.RawRow, error) {
		if instrument == "NIFTY" {
			panic("vendor sdk exploded")
		}
		return allLegs(instrument, date)
	}}
	d, _ := newDownloader(t, src, WithMaxWorkers(2))

	report := d.Run(context.Background(), "run-6", day(2024, 1, 1), day(2024, 1, 3), []string{"NIFTY", "BANKNIFTY"})

	assert.Equal(t, 4, report.Tasks)
	assert.Equal(t, 2, report.Succeeded)
	require.Len(t, report.Failures, 2)
	for _, f := range report.Failures {
		assert.Equal(t, "NIFTY", f.Instrument)
		assert.Contains(t, f.Message, "vendor sdk exploded")
	}
}

func TestRunCancelledContext(t *testing.T) {
	src := &stubSource{fn: allLegs}
	d, _ := newDownloader(t, src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.Run(ctx, "run-7", day(2024, 1, 1), day(2024, 1, 3), []string{"NIFTY"})

	assert.Equal(t, 2, report.Tasks)
	require.Len(t, report.Failures, 2)
	assert.Contains(t, report.Failures[0].Message, context.Canceled.Error())
	assert.Zero(t, src.calls.Load())
}

type failingSink struct{ writes atomic.Int32 }

func (s *failingSink) Name() string { return "failing" }
func (s *failingSink) Write(context.Context, models.Task, *models.ClassifiedGroups) error {
	s.writes.Add(1)
	return errors.New("table missing")
}
func (s *failingSink) Close() error { return nil }

func TestRunSinkFailure(t *testing.T) {
	sink := &failingSink{}
	d, root := newDownloader(t, &stubSource{fn: allLegs}, WithSinks(sink))

	report := d.Run(context.Background(), "run-8", day(2024, 1, 1), day(2024, 1, 2), []string{"NIFTY"})

	require.Len(t, report.Failures, 1)
	assert.Equal(t, "persist to failing: table missing", report.Failures[0].Message)
	assert.EqualValues(t, 1, sink.writes.Load())
	assert.Len(t, listFiles(t, root), 3)
}

type recordingPublisher struct {
	NopPublisher
	mu      sync.Mutex
	results []models.TaskResult
}

func (p *recordingPublisher) PublishResult(_ context.Context, runID string, res models.TaskResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	return errors.New("broker down")
}

func TestRunPublishesEveryResult(t *testing.T) {
	pub := &recordingPublisher{}
	d, _ := newDownloader(t, &stubSource{fn: allLegs}, WithPublisher(pub), WithMaxWorkers(4))

	report := d.Run(context.Background(), "run-9", day(2024, 1, 1), day(2024, 1, 6), []string{"NIFTY", "BANKNIFTY"})

	assert.True(t, report.Clean())
	assert.Len(t, pub.results, report.Tasks)
	for _, res := range pub.results {
		assert.Equal(t, 1, res.Rows[models.LegSpot])
		assert.Len(t, res.Files, 3)
	}
}

func TestSerializeAllowsOneFetchAtATime(t *testing.T) {
	src := &stubSource{fn: allLegs, delay: 5 * time.Millisecond}
	serial := Serialize(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := serial.Fetch(context.Background(), "NIFTY", day(2024, 1, 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 8, src.calls.Load())
	assert.EqualValues(t, 1, src.peak.Load())
}

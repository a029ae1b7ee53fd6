package models

import "time"

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
)

// BatchReport aggregates per-task outcomes of one run.
// Failures are kept in arrival order.
type BatchReport struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	Instruments []string  `json:"instruments"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	Tasks       int       `json:"tasks"`
	Succeeded   int       `json:"succeeded"`
	Failures    []Failure `json:"failures"`
}

// NewBatchReport returns an empty report.
func NewBatchReport() *BatchReport {
	return &BatchReport{Status: RunRunning, Failures: []Failure{}}
}

// Add records one task result.
func (r *BatchReport) Add(res TaskResult) {
	r.Tasks++
	if res.OK() {
		r.Succeeded++
		return
	}
	r.Failures = append(r.Failures, res.Failure())
}

// Clean reports whether no task failed.
func (r *BatchReport) Clean() bool { return len(r.Failures) == 0 }

// DownloadRequest describes one batch run.
type DownloadRequest struct {
	StartDate   time.Time
	EndDate     time.Time
	Instruments []string
	MaxWorkers  int
}

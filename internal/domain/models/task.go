package models

import (
	"fmt"
	"time"
)

// Task is one (date, instrument) unit of work.
type Task struct {
	Date       time.Time
	Instrument string
}

func (t Task) String() string {
	return fmt.Sprintf("%s@%s", t.Instrument, t.Date.Format("2006-01-02"))
}

// TaskResult is produced exactly once per Task.
type TaskResult struct {
	Task     Task
	Err      error
	Rows     map[Leg]int
	Files    map[Leg]string
	Duration time.Duration
}

// OK reports whether the task succeeded.
func (r TaskResult) OK() bool { return r.Err == nil }

// Failure converts a failed result into its report entry.
func (r TaskResult) Failure() Failure {
	msg := ""
	if r.Err != nil {
		msg = r.Err.Error()
	}
	return Failure{Date: r.Task.Date, Instrument: r.Task.Instrument, Message: msg}
}

// Failure is a (date, instrument, error) tuple in the batch report.
type Failure struct {
	Date       time.Time `json:"date"`
	Instrument string    `json:"instrument"`
	Message    string    `json:"message"`
}

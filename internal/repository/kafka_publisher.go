package repository

import (
	"context"
	"time"

	"HistPull/internal/domain/models"
	"HistPull/internal/domain/repository"
	pkgkafka "HistPull/pkg/kafka"
)

// TaskEvent is the message published for every finished task.
type TaskEvent struct {
	RunID      string         `json:"run_id"`
	Date       string         `json:"date"`
	Instrument string         `json:"instrument"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Rows       map[string]int `json:"rows,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// NewTaskEvent converts a result into its wire form.
func NewTaskEvent(runID string, res models.TaskResult) TaskEvent {
	ev := TaskEvent{
		RunID:      runID,
		Date:       res.Task.Date.Format("2006-01-02"),
		Instrument: res.Task.Instrument,
		Status:     "success",
		DurationMs: res.Duration.Milliseconds(),
	}
	if !res.OK() {
		ev.Status = "failure"
		ev.Error = res.Err.Error()
	}
	if len(res.Rows) > 0 {
		ev.Rows = make(map[string]int, len(res.Rows))
		for leg, n := range res.Rows {
			ev.Rows[string(leg)] = n
		}
	}
	return ev
}

type publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements EventPublisher for Kafka.
type KafkaPublisher struct {
	producer publisher
	topic    string
	timeout  time.Duration
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.EventPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, timeout: 5 * time.Second}
}

func (p *KafkaPublisher) PublishResult(ctx context.Context, runID string, res models.TaskResult) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return p.producer.Publish(ctx, p.topic, []byte(res.Task.Instrument), NewTaskEvent(runID, res))
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, report *models.BatchReport) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()
	return p.producer.Publish(ctx, p.topic, []byte(report.RunID), report)
}

// bound detaches from cancellation of the run so results of a cancelled
// batch are still announced, but never waits longer than timeout.
func (p *KafkaPublisher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

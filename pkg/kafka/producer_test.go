package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestPublishEncodesValues(t *testing.T) {
	w := &captureWriter{}
	p := newProducer(w, "gzip", nil)

	require.NoError(t, p.Publish(context.Background(), "t", []byte("k"), map[string]int{"rows": 3}))
	require.NoError(t, p.Publish(context.Background(), "t", nil, "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "t", w.msgs[0].Topic)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	assert.JSONEq(t, `{"rows":3}`, string(w.msgs[0].Value))
	assert.Equal(t, "raw", string(w.msgs[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishBatchRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &captureWriter{}
	p := newProducer(w, "gzip", reg)

	require.NoError(t, p.PublishBatch(context.Background(), "t", []Message{{Value: "a"}, {Value: "b"}}))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.msgs.WithLabelValues("t", "gzip", "ok")))

	w.err = errors.New("leader not available")
	err := p.PublishBatch(context.Background(), "t", []Message{{Value: "c"}})
	assert.ErrorContains(t, err, "leader not available")
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.errs.WithLabelValues("t")))
}

func TestPublishBatchEmpty(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, newProducer(w, "gzip", nil).PublishBatch(context.Background(), "t", nil))
	assert.Empty(t, w.msgs)
}

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestLoggerWritesTypedFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf).Component("monitor")

	log.Info("analysis finished",
		String("fragility_level", "HIGH"),
		Int("score", 70),
		Float("zscore", 1.75),
		Date("date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Duration("took", 1500*time.Millisecond),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "monitor", got["component"])
	assert.Equal(t, "info", got["level"])
	assert.Equal(t, "HIGH", got["fragility_level"])
	assert.Equal(t, float64(70), got["score"])
	assert.Equal(t, 1.75, got["zscore"])
	assert.Equal(t, "2024-03-01", got["date"])
	assert.Equal(t, float64(1500), got["took"])
}

func TestCollectorDeduplicatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	log := NewWriter(&bytes.Buffer{})
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Error("fetch failed", String("source", "fred"), Error(errors.New("timeout")))
	}
	log.Warn("macro missing", String("indicator", "vix"))
	assert.Equal(t, 2, log.collector.Load().Pending())

	log.RemoveCollector()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Equal(t, "logs", pub.topic)
	require.Len(t, pub.batches[0], 2)
	assert.Equal(t, 3, pub.batches[0][0].Count)
	assert.Equal(t, "timeout", pub.batches[0][0].Fields["error"])
}

func TestChildSeesCollectorAttachedLater(t *testing.T) {
	pub := &capturePublisher{}
	root := NewWriter(&bytes.Buffer{})
	child := root.Component("fred")

	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})
	child.Warn("series empty")
	assert.Equal(t, 1, root.collector.Load().Pending())
	root.RemoveCollector()

	child.Warn("series empty")
	assert.Nil(t, child.collector.Load())
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Info("ignored")
	log.Error("ignored", Error(nil))
}

package repository

import (
	"context"
	"fmt"

	"MetalPulse/internal/domain/models"
	domrepo "MetalPulse/internal/domain/repository"
	pkgkafka "MetalPulse/pkg/kafka"
	"MetalPulse/pkg/util"
)

// batchPublisher is the part of pkg/kafka.Producer the alert publisher needs.
type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaAlertPublisher publishes one message per composite signal plus a run summary,
// all keyed by the analysis date so a day's alerts land on one partition.
type KafkaAlertPublisher struct {
	producer batchPublisher
	topic    string
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)

func NewKafkaAlertPublisher(producer batchPublisher, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	msgs := AlertMessages(rec)
	batch := make([]pkgkafka.Message, len(msgs))
	key := []byte(util.FormatDate(rec.Date))
	for i, m := range msgs {
		batch[i] = pkgkafka.Message{Key: key, Value: m}
	}
	if err := p.producer.PublishBatch(ctx, p.topic, batch); err != nil {
		return fmt.Errorf("publish alerts for %s: %w", rec.RunID, err)
	}
	return nil
}

func (p *KafkaAlertPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// AlertMessages builds the signal messages followed by the summary.
func AlertMessages(rec *models.AnalysisRecord) []models.AlertMessage {
	a := rec.Analysis
	base := models.AlertMessage{
		RunID:          rec.RunID,
		Date:           util.FormatDate(rec.Date),
		Ratio:          a.GoldSilverRatio.CurrentValue,
		FragilityLevel: a.RatioFragility,
		FragilityScore: a.FragilityScore,
	}

	out := make([]models.AlertMessage, 0, len(a.CompositeSignals)+1)
	for _, sig := range a.CompositeSignals {
		m := base
		m.Type = string(sig.Type)
		m.Severity = sig.Severity
		m.Message = sig.Message
		out = append(out, m)
	}

	summary := base
	summary.Type = models.SummaryType
	summary.Severity = a.RatioFragility
	summary.Message = a.GoldSilverRatio.Interpretation
	return append(out, summary)
}

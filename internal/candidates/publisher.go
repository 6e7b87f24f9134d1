package candidates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

// CandidateEvent is published once per candidate of a run.
type CandidateEvent struct {
	RunID     string `json:"run_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Valid     bool   `json:"valid"`
	Checked   int    `json:"checked"`
	Positions int    `json:"positions"`
	// Complete is set when the candidate covers every position.
	Complete    bool      `json:"complete"`
	PublishedAt time.Time `json:"published_at"`
}

// Publisher sends a run's candidates to Kafka, each re-checked by the
// verifier.
type Publisher struct {
	producer  *kafka.Producer
	batchSize int
	wildcards string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPublisher creates a Publisher writing batchSize events per call and
// verifying with wildcards (DefaultWildcards when empty). m may be nil.
func NewPublisher(producer *kafka.Producer, batchSize int, wildcards string, m *metrics.Metrics) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if wildcards == "" {
		wildcards = reconstruct.DefaultWildcards
	}
	return &Publisher{
		producer:  producer,
		batchSize: batchSize,
		wildcards: wildcards,
		metrics:   m,
		logger:    slog.Default().With("component", "candidate-publisher"),
	}
}

// Events builds the events of one run in candidate order.
func Events(runID string, constraints reconstruct.Constraints, texts []string, wildcards string, now time.Time) []CandidateEvent {
	events := make([]CandidateEvent, len(texts))
	for i, text := range texts {
		v := reconstruct.VerifyWith(constraints, text, wildcards)
		events[i] = CandidateEvent{
			RunID:       runID,
			Index:       i,
			Text:        text,
			Valid:       v.Valid,
			Checked:     v.Checked,
			Positions:   len(constraints),
			Complete:    v.Valid && v.Checked == len(constraints),
			PublishedAt: now,
		}
	}
	return events
}

// Publish sends every candidate of the run keyed by runID, so a run stays
// on one partition in order.
func (p *Publisher) Publish(ctx context.Context, runID string, constraints reconstruct.Constraints, texts []string) error {
	events := Events(runID, constraints, texts, p.wildcards, time.Now().UTC())
	for start := 0; start < len(events); start += p.batchSize {
		end := min(start+p.batchSize, len(events))
		batch := make([]kafka.Event, 0, end-start)
		for _, ev := range events[start:end] {
			batch = append(batch, kafka.Event{Key: runID, Value: ev})
		}
		if err := p.producer.PublishBatch(ctx, batch); err != nil {
			return fmt.Errorf("publishing candidates %d-%d of run %s: %w", start, end, runID, err)
		}
		if p.metrics != nil {
			p.metrics.CandidatesPublished.Add(float64(len(batch)))
		}
	}
	p.logger.Info("candidates published", "run_id", runID, "count", len(events))
	return nil
}

// Close closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// Handler adapts fn into a consumer handler for published candidates.
func Handler(fn func(ctx context.Context, ev CandidateEvent) error) kafka.MessageHandler {
	return func(ctx context.Context, _, value []byte) error {
		ev, err := kafka.DecodeJSON[CandidateEvent](value)
		if err != nil {
			return err
		}
		return fn(ctx, ev)
	}
}

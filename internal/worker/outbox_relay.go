package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"storefront/internal/service"
)

type OutboxStore interface {
	FetchPending(ctx context.Context, limit int) ([]service.OutboxRecord, error)
	MarkSent(ctx context.Context, id int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, eventType string, version int) error
}

// OutboxRelay forwards committed outbox records to the event broker.
type OutboxRelay struct {
	outbox    OutboxStore
	publisher EventPublisher
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(outbox OutboxStore, publisher EventPublisher) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		interval:  5 * time.Second,
		batchSize: 20,
	}
}

func (w *OutboxRelay) Start(ctx context.Context) {
	slog.Info("starting outbox relay", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := w.processBatch(ctx); err != nil {
				slog.Error("outbox batch failed", "error", err)
			}
		}
	}
}

// processBatch stops at the first publish failure so records of one order are
// never delivered out of order.
func (w *OutboxRelay) processBatch(ctx context.Context) (int, error) {
	records, err := w.outbox.FetchPending(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	for _, rec := range records {
		if err := w.publisher.Publish(ctx, rec.Topic, rec.Key, rec.Payload, rec.EventType, rec.EventVersion); err != nil {
			return sent, fmt.Errorf("publish event %s: %w", rec.EventID, err)
		}
		if err := w.outbox.MarkSent(ctx, rec.ID); err != nil {
			return sent, fmt.Errorf("mark event %s: %w", rec.EventID, err)
		}
		slog.Info("event published", "event_id", rec.EventID, "topic", rec.Topic, "key", rec.Key)
		sent++
	}
	return sent, nil
}

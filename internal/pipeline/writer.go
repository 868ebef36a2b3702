package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"aggregator/internal/dict"
	"aggregator/internal/metrics"
	"aggregator/internal/model"

	"github.com/rs/zerolog/log"
)

// Sink streams one batch of rows into a destination table as a single bulk
// insert. The write succeeds or fails as a whole, never partially.
type Sink interface {
	Insert(ctx context.Context, table string, rows []any) error
}

// Writer drains one event-type batch into the analytics store and, only on
// a confirmed write, acknowledges every delivery in the batch. Flushes of
// distinct event types are independent: disjoint buffers, disjoint tables.
type Writer struct {
	sink     Sink
	enricher *Enricher
	metrics  *metrics.Metrics
	retries  int
}

func NewWriter(sink Sink, enricher *Enricher, m *metrics.Metrics, retries int) *Writer {
	if retries < 1 {
		retries = 1
	}
	return &Writer{sink: sink, enricher: enricher, metrics: m, retries: retries}
}

// Flush enriches and writes one drained batch. An empty batch opens no
// write against the store. On failure no delivery is acknowledged; the
// broker's redelivery policy owns the messages from there.
func (w *Writer) Flush(ctx context.Context, t model.Type, items []Item, cache *dict.Cache) error {
	if len(items) == 0 {
		return nil
	}

	rows := make([]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, w.enricher.Enrich(it.Event, cache))
	}

	if err := w.insertWithRetry(ctx, t.Table(), rows); err != nil {
		atomic.AddInt64(&w.metrics.BatchesAbandonedTotal, 1)
		log.Error().Err(err).
			Str("type", string(t)).
			Int("batch", len(items)).
			Msg("batch write failed, leaving batch for redelivery")
		return err
	}

	atomic.AddInt64(&w.metrics.RowsWrittenTotal, int64(len(rows)))
	for _, it := range items {
		if err := it.Ack.Ack(false); err != nil {
			log.Warn().Err(err).Str("type", string(t)).Msg("ack failed after write")
			continue
		}
		atomic.AddInt64(&w.metrics.AcksTotal, 1)
	}
	return nil
}

// insertWithRetry attempts the bulk insert up to the configured number of
// times with doubling backoff, capped at 2s. Store hiccups within a cycle
// recover here; anything longer falls back to broker redelivery.
func (w *Writer) insertWithRetry(ctx context.Context, table string, rows []any) error {
	var lastErr error
	backoff := 200 * time.Millisecond

	for attempt := 1; attempt <= w.retries; attempt++ {
		if err := w.sink.Insert(ctx, table, rows); err == nil {
			return nil
		} else {
			lastErr = err
			atomic.AddInt64(&w.metrics.WriteFailuresTotal, 1)
		}

		if attempt == w.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Second {
				backoff = 2 * time.Second
			}
		}
	}
	return lastErr
}

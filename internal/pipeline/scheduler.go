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

// Replayer re-publishes locally spooled dead-letter messages and expires
// stale spool files. Implemented by the spool package; nil disables it.
type Replayer interface {
	Replay(ctx context.Context, max int)
	Expire()
}

// spoolReplayPerCycle bounds how many spooled messages one cycle retries so
// a deep spool backlog cannot starve the flush loop.
const spoolReplayPerCycle = 3

// Scheduler drives the pipeline's only control loop: refresh the dictionary
// cache, flush each event-type buffer once in fixed order, then sleep for
// the flush interval measured from the end of the cycle. It runs for the
// lifetime of the process; only process shutdown stops it.
type Scheduler struct {
	interval time.Duration
	fields   []string
	dicts    dict.Reader
	buffers  map[model.Type]*Buffer
	writer   *Writer
	spool    Replayer
	metrics  *metrics.Metrics

	cache *dict.Cache
}

func NewScheduler(
	interval time.Duration,
	fields []string,
	dicts dict.Reader,
	buffers map[model.Type]*Buffer,
	writer *Writer,
	spool Replayer,
	m *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		interval: interval,
		fields:   fields,
		dicts:    dicts,
		buffers:  buffers,
		writer:   writer,
		spool:    spool,
		metrics:  m,
		cache:    dict.NewCache(),
	}
}

// Run loops cycles until ctx is cancelled. A final cycle runs on shutdown
// so everything already buffered gets one last flush attempt.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		s.RunCycle(ctx)

		select {
		case <-ctx.Done():
			s.RunCycle(context.Background())
			return
		case <-time.After(s.interval):
		}
	}
}

// RunCycle executes one cycle: cache refresh, then one flush per event type
// in the order model.Types gives them. A refresh failure keeps the previous
// cache in effect; encodings are stale but valid and the cycle proceeds.
func (s *Scheduler) RunCycle(ctx context.Context) {
	atomic.AddInt64(&s.metrics.DictRefreshTotal, 1)
	if fresh, err := dict.Refresh(ctx, s.dicts, s.fields); err != nil {
		atomic.AddInt64(&s.metrics.DictRefreshFailuresTotal, 1)
		log.Error().Err(err).Msg("dictionary refresh failed, keeping previous cache")
	} else {
		s.cache = fresh
	}

	for _, t := range model.Types() {
		items := s.buffers[t].DrainAll()
		_ = s.writer.Flush(ctx, t, items, s.cache)
	}

	if s.spool != nil {
		s.spool.Replay(ctx, spoolReplayPerCycle)
		s.spool.Expire()
	}
}

// Cache returns the mapping currently in effect. Used by tests and the
// registration endpoint's sanity checks; flushes receive the cache as an
// argument instead.
func (s *Scheduler) Cache() *dict.Cache {
	return s.cache
}

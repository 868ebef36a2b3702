package spool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"aggregator/internal/metrics"
	"aggregator/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// Spool is the local-disk fallback for dead-letter publishes. When the
// error queue is unreachable, the raw message and its timestamp are written
// to a gzip file here; each scheduler cycle replays a few of the oldest
// files back to the broker and expires anything past the TTL.
//
// Filenames are "<unix>_<instance>_<counter>.json.gz", so a lexical sort is
// a time sort and the timestamp prefix carries the TTL decision.
type Spool struct {
	dir      string
	instance string
	maxAge   time.Duration
	publish  Publish
	metrics  *metrics.Metrics

	counter atomic.Uint64
}

// Publish re-delivers one spooled message to the dead-letter queue.
type Publish func(ctx context.Context, body []byte, ts int64) error

// message is the on-disk shape. Body round-trips through base64 so the
// original bytes survive even when they are not valid JSON, which for a
// dead-lettered message is the common case.
type message struct {
	Ts   int64  `json:"ts"`
	Body []byte `json:"body"`
}

func New(dir, instance string, maxAge time.Duration, publish Publish, m *metrics.Metrics) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool dir: %w", err)
	}
	return &Spool{dir: dir, instance: instance, maxAge: maxAge, publish: publish, metrics: m}, nil
}

// Save writes one message to the spool.
func (s *Spool) Save(body []byte, ts int64) error {
	data, err := s.encode(message{Ts: ts, Body: body})
	if err != nil {
		return fmt.Errorf("spool encode: %w", err)
	}

	name := fmt.Sprintf("%d_%s_%06d.json.gz", time.Now().Unix(), s.instance, s.counter.Add(1)%1_000_000)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("spool write: %w", err)
	}
	atomic.AddInt64(&s.metrics.SpoolSavedTotal, 1)
	return nil
}

// Replay re-publishes up to max of the oldest spooled messages. A file that
// publishes successfully is removed; the first failure stops the pass, the
// broker is evidently still down.
func (s *Spool) Replay(ctx context.Context, max int) {
	for i := 0; i < max; i++ {
		name := s.oldest()
		if name == "" {
			return
		}
		path := filepath.Join(s.dir, name)

		msg, err := s.load(path)
		if err != nil {
			log.Warn().Err(err).Str("file", name).Msg("unreadable spool file, dropping")
			_ = os.Remove(path)
			continue
		}

		if err := s.publish(ctx, msg.Body, msg.Ts); err != nil {
			return
		}
		_ = os.Remove(path)
		atomic.AddInt64(&s.metrics.SpoolReplayedTotal, 1)
	}
}

// Expire removes spool files older than the TTL, judged by the filename's
// unix prefix.
func (s *Spool) Expire() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.maxAge).Unix()
	for _, e := range entries {
		sec, ok := unixFromFilename(e.Name())
		if !ok || sec >= cutoff {
			continue
		}
		if os.Remove(filepath.Join(s.dir, e.Name())) == nil {
			atomic.AddInt64(&s.metrics.SpoolExpiredTotal, 1)
			log.Info().Str("file", e.Name()).Msg("expired spool file removed")
		}
	}
}

func (s *Spool) encode(msg message) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer pool.PutBuffer(buf)

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	if err := json.NewEncoder(gz).Encode(msg); err != nil {
		_ = gz.Close()
		pool.GzipPool.Put(gz)
		return nil, err
	}
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	// The pool buffer is reused; hand the caller its own copy.
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	return data, nil
}

func (s *Spool) load(path string) (message, error) {
	f, err := os.Open(path)
	if err != nil {
		return message{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return message{}, err
	}
	defer gz.Close()

	var msg message
	if err := json.NewDecoder(gz).Decode(&msg); err != nil {
		return message{}, err
	}
	return msg, nil
}

// oldest returns the lexically smallest spool filename, which by the naming
// scheme is the oldest message.
func (s *Spool) oldest() string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if n := e.Name(); n != "" && n[0] != '.' && strings.HasSuffix(n, ".json.gz") {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return names[0]
}

func unixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}

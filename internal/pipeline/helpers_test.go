package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"aggregator/internal/dict"
)

var (
	errAck  = errors.New("ack failed")
	errSink = errors.New("sink unavailable")
	errDead = errors.New("dead-letter queue unavailable")
)

// chromeUA is the fixture user agent used across enrichment tests.
const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/63.0.3239.108 Safari/537.36"

type fakeReader struct {
	entries map[string][]dict.Entry
	err     error
}

func (f *fakeReader) ReadAll(_ context.Context, field string) ([]dict.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[field], nil
}

// buildCache turns a literal field->name->code table into a *dict.Cache.
func buildCache(t *testing.T, fields map[string]map[string]int32) *dict.Cache {
	t.Helper()

	entries := make(map[string][]dict.Entry, len(fields))
	names := make([]string, 0, len(fields))
	for field, m := range fields {
		names = append(names, field)
		for name, code := range m {
			entries[field] = append(entries[field], dict.Entry{Name: name, Code: code})
		}
	}

	c, err := dict.Refresh(context.Background(), &fakeReader{entries: entries}, names)
	if err != nil {
		t.Fatalf("build cache: %v", err)
	}
	return c
}

type sinkCall struct {
	table string
	rows  []any
}

type fakeSink struct {
	mu       sync.Mutex
	calls    []sinkCall
	failures int // first n Insert calls fail
}

func (f *fakeSink) Insert(_ context.Context, table string, rows []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sinkCall{table: table, rows: rows})
	if f.failures > 0 {
		f.failures--
		return errSink
	}
	return nil
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type deadLetterCall struct {
	body []byte
	ts   int64
}

type fakeDead struct {
	calls []deadLetterCall
	err   error
}

func (f *fakeDead) DeadLetter(_ context.Context, body []byte, ts int64) error {
	f.calls = append(f.calls, deadLetterCall{body: body, ts: ts})
	return f.err
}

type fakeSaver struct {
	calls []deadLetterCall
	err   error
}

func (f *fakeSaver) Save(body []byte, ts int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, deadLetterCall{body: body, ts: ts})
	return nil
}

type fakeGeo struct {
	lat, lon float64
	known    map[string]bool
}

func (f *fakeGeo) Lookup(ip string) (float64, float64, bool) {
	if !f.known[ip] {
		return 0, 0, false
	}
	return f.lat, f.lon, true
}

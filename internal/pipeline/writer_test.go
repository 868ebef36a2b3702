package pipeline

import (
	"context"
	"testing"

	"aggregator/internal/dict"
	"aggregator/internal/metrics"
	"aggregator/internal/model"
)

func eventItems(acks ...*fakeAck) []Item {
	items := make([]Item, 0, len(acks))
	for i, a := range acks {
		items = append(items, Item{
			Ack: a,
			Event: model.Validated{
				Type:      model.TypeEvents,
				Timestamp: int64(i + 1),
				Event:     &model.AppEvent{UserID: uint32(i), App: "theanswer", Event: "e"},
			},
		})
	}
	return items
}

func newTestWriter(sink Sink, retries int) *Writer {
	return NewWriter(sink, NewEnricher(&fakeGeo{}), metrics.New(), retries)
}

func TestFlushEmptyOpensNoWrite(t *testing.T) {
	sink := &fakeSink{}
	w := newTestWriter(sink, 1)

	if err := w.Flush(context.Background(), model.TypeEvents, nil, dict.NewCache()); err != nil {
		t.Fatalf("empty flush errored: %v", err)
	}
	if sink.callCount() != 0 {
		t.Errorf("empty flush opened %d writes, want 0", sink.callCount())
	}
}

func TestFlushSuccessAcksExactlyOnce(t *testing.T) {
	sink := &fakeSink{}
	w := newTestWriter(sink, 1)

	acks := []*fakeAck{{}, {}, {}}
	items := eventItems(acks...)
	if err := w.Flush(context.Background(), model.TypeEvents, items, dict.NewCache()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if sink.callCount() != 1 {
		t.Fatalf("flush opened %d writes, want 1 bulk insert", sink.callCount())
	}
	call := sink.calls[0]
	if call.table != "aggregator_events" {
		t.Errorf("table = %q, want aggregator_events", call.table)
	}
	if len(call.rows) != len(items) {
		t.Errorf("wrote %d rows, want %d", len(call.rows), len(items))
	}
	for i, a := range acks {
		if a.acks() != 1 {
			t.Errorf("item %d acked %d times, want exactly 1", i, a.acks())
		}
	}
}

func TestFlushFailureAcksNothing(t *testing.T) {
	sink := &fakeSink{failures: 1 << 30} // always fail
	w := newTestWriter(sink, 2)

	acks := []*fakeAck{{}, {}}
	if err := w.Flush(context.Background(), model.TypeEvents, eventItems(acks...), dict.NewCache()); err == nil {
		t.Fatal("expected flush error when every insert attempt fails")
	}

	if sink.callCount() != 2 {
		t.Errorf("insert attempted %d times, want 2 (configured retries)", sink.callCount())
	}
	for i, a := range acks {
		if a.acks() != 0 {
			t.Errorf("item %d acked after failed write (%d times)", i, a.acks())
		}
	}
}

func TestFlushRetriesThenSucceeds(t *testing.T) {
	sink := &fakeSink{failures: 1}
	w := newTestWriter(sink, 3)

	a := &fakeAck{}
	if err := w.Flush(context.Background(), model.TypeEvents, eventItems(a), dict.NewCache()); err != nil {
		t.Fatalf("flush should recover on retry: %v", err)
	}
	if sink.callCount() != 2 {
		t.Errorf("insert attempted %d times, want 2", sink.callCount())
	}
	if a.acks() != 1 {
		t.Errorf("acked %d times after recovered write, want 1", a.acks())
	}
}

// A failed ack on one delivery must not stop acknowledgment of the rest.
func TestFlushAckFailureIsIsolated(t *testing.T) {
	sink := &fakeSink{}
	w := newTestWriter(sink, 1)

	bad := &fakeAck{fail: true}
	good := &fakeAck{}
	if err := w.Flush(context.Background(), model.TypeEvents, eventItems(bad, good), dict.NewCache()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if good.acks() != 1 {
		t.Errorf("good delivery acked %d times, want 1", good.acks())
	}
}

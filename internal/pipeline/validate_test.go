package pipeline

import (
	"testing"
	"time"

	"aggregator/internal/model"
)

const fixtureTS = int64(1513865966)

func validVisitBody() []byte {
	return []byte(`{"userId":1,"app":"theanswer","ua":"` + chromeUA + `","ip":"176.59.77.204","referer":"https://t.me","pageUrl":"https://x.com/a?utm_source=fb&utm_medium=cpc"}`)
}

func TestValidateVisitOK(t *testing.T) {
	v := NewValidator()

	ev, err := v.Validate(model.TypeVisits, validVisitBody(), fixtureTS)
	if err != nil {
		t.Fatalf("valid visit rejected: %v", err)
	}
	if ev.Visit == nil {
		t.Fatal("visit payload not set")
	}
	if ev.Visit.App != "theanswer" || ev.Visit.IP != "176.59.77.204" {
		t.Errorf("payload fields mangled: %+v", ev.Visit)
	}

	wantTime := time.Unix(fixtureTS, 0).UTC()
	if !ev.EventTime.Equal(wantTime) {
		t.Errorf("EventTime = %v, want %v", ev.EventTime, wantTime)
	}
	wantDate := time.Date(2017, 12, 21, 0, 0, 0, 0, time.UTC)
	if !ev.EventDate.Equal(wantDate) {
		t.Errorf("EventDate = %v, want %v", ev.EventDate, wantDate)
	}
}

func TestValidateVisitRejections(t *testing.T) {
	v := NewValidator()

	cases := []struct {
		name string
		body string
	}{
		{"missing app", `{"userId":1,"ua":"x","ip":"176.59.77.204","referer":"https://t.me","pageUrl":"https://x.com/a"}`},
		{"unknown app", `{"userId":1,"app":"other","ua":"x","ip":"176.59.77.204","referer":"https://t.me","pageUrl":"https://x.com/a"}`},
		{"bad ip", `{"userId":1,"app":"theanswer","ua":"x","ip":"not-an-ip","referer":"https://t.me","pageUrl":"https://x.com/a"}`},
		{"missing pageUrl", `{"userId":1,"app":"theanswer","ua":"x","ip":"176.59.77.204","referer":"https://t.me"}`},
		{"malformed json", `{"userId":`},
	}
	for _, tc := range cases {
		if _, err := v.Validate(model.TypeVisits, []byte(tc.body), fixtureTS); err == nil {
			t.Errorf("%s: expected rejection", tc.name)
		}
	}
}

// The timestamp check is independent: an otherwise valid body fails with a
// bad timestamp, and no partial credit is given.
func TestValidateTimestamp(t *testing.T) {
	v := NewValidator()

	for _, ts := range []int64{0, -1, 1513865966000} {
		if _, err := v.Validate(model.TypeVisits, validVisitBody(), ts); err == nil {
			t.Errorf("timestamp %d: expected rejection", ts)
		}
	}
}

func TestValidateEvent(t *testing.T) {
	v := NewValidator()

	ev, err := v.Validate(model.TypeEvents,
		[]byte(`{"userId":7,"app":"thesalt","event":"answer_shown","questionId":41,"answerId":2}`), fixtureTS)
	if err != nil {
		t.Fatalf("valid event rejected: %v", err)
	}
	if ev.Event.Event != "answer_shown" || ev.Event.QuestionID != 41 || ev.Event.AnswerID != 2 {
		t.Errorf("payload fields mangled: %+v", ev.Event)
	}

	if _, err := v.Validate(model.TypeEvents, []byte(`{"userId":7,"app":"thesalt"}`), fixtureTS); err == nil {
		t.Error("event without a name: expected rejection")
	}
}

func TestValidateRecommendation(t *testing.T) {
	v := NewValidator()

	ev, err := v.Validate(model.TypeRecommendations,
		[]byte(`{"userId":7,"app":"theanswer","fromUrl":"https://x.com/a","toUrl":"https://x.com/b"}`), fixtureTS)
	if err != nil {
		t.Fatalf("valid recommendation rejected: %v", err)
	}
	if ev.Recommendation.FromURL != "https://x.com/a" {
		t.Errorf("fromUrl mangled: %q", ev.Recommendation.FromURL)
	}

	if _, err := v.Validate(model.TypeRecommendations,
		[]byte(`{"userId":7,"app":"theanswer","fromUrl":"https://x.com/a"}`), fixtureTS); err == nil {
		t.Error("recommendation without toUrl: expected rejection")
	}
}

func TestValidateUnknownType(t *testing.T) {
	v := NewValidator()
	if _, err := v.Validate(model.Type("clicks"), []byte(`{}`), fixtureTS); err == nil {
		t.Error("unknown type: expected rejection")
	}
}

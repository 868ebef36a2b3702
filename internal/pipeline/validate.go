package pipeline

import (
	"fmt"
	"time"

	"aggregator/internal/model"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
)

// maxTimestamp bounds the broker timestamp well past any plausible event
// time; anything above it is a unit mistake (milliseconds where seconds
// belong) rather than a real date.
const maxTimestamp = int64(1) << 33

// Validator applies the fixed per-event-type schema to raw message bodies.
// Validation is pure: it never touches the network and has no side effects,
// so it is safe on the broker's delivery path.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// Validate decodes and checks one raw message. The body schema and the
// timestamp are independent checks; either failure rejects the message as a
// whole. On success the returned event carries the derived wall-clock event
// time and calendar date.
func (va *Validator) Validate(t model.Type, body []byte, ts int64) (model.Validated, error) {
	if ts <= 0 || ts >= maxTimestamp {
		return model.Validated{}, fmt.Errorf("invalid timestamp %d", ts)
	}

	ev := model.Validated{Type: t, Timestamp: ts}

	switch t {
	case model.TypeVisits:
		var v model.Visit
		if err := decodeAndCheck(va.v, body, &v); err != nil {
			return model.Validated{}, err
		}
		ev.Visit = &v
	case model.TypeEvents:
		var v model.AppEvent
		if err := decodeAndCheck(va.v, body, &v); err != nil {
			return model.Validated{}, err
		}
		ev.Event = &v
	case model.TypeRecommendations:
		var v model.Recommendation
		if err := decodeAndCheck(va.v, body, &v); err != nil {
			return model.Validated{}, err
		}
		ev.Recommendation = &v
	default:
		return model.Validated{}, fmt.Errorf("unknown event type %q", t)
	}

	when := time.Unix(ts, 0).UTC()
	ev.EventTime = when
	ev.EventDate = when.Truncate(24 * time.Hour)
	return ev, nil
}

func decodeAndCheck(v *validator.Validate, body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := v.Struct(dst); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

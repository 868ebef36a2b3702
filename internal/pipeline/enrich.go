package pipeline

import (
	"net/url"

	"aggregator/internal/dict"
	"aggregator/internal/geo"
	"aggregator/internal/model"

	"github.com/mileusna/useragent"
)

// Enricher turns a validated event into the storage-ready record for its
// type, using the dictionary cache for categorical-to-integer encoding.
// Enrichment never fails: absent or unresolvable attributes degrade to the
// field's default (code 0, empty string, zero coordinates).
type Enricher struct {
	geo geo.Resolver
}

func NewEnricher(g geo.Resolver) *Enricher {
	return &Enricher{geo: g}
}

// Enrich dispatches on the event-type tag and returns a pointer to the
// row struct destined for that type's table.
func (e *Enricher) Enrich(ev model.Validated, c *dict.Cache) any {
	switch ev.Type {
	case model.TypeVisits:
		return e.enrichVisit(ev, c)
	case model.TypeEvents:
		v := ev.Event
		return &model.EventRow{
			UserID:     v.UserID,
			AppID:      v.App,
			EventID:    c.Lookup("event", v.Event),
			QuestionID: v.QuestionID,
			AnswerID:   v.AnswerID,
			EventTime:  ev.EventTime,
			EventDate:  ev.EventDate,
		}
	case model.TypeRecommendations:
		v := ev.Recommendation
		return &model.RecommendationRow{
			UserID:    v.UserID,
			AppID:     v.App,
			FromURL:   v.FromURL,
			ToURL:     v.ToURL,
			EventTime: ev.EventTime,
			EventDate: ev.EventDate,
		}
	}
	return nil
}

func (e *Enricher) enrichVisit(ev model.Validated, c *dict.Cache) *model.VisitRow {
	v := ev.Visit
	row := &model.VisitRow{
		UserID:    v.UserID,
		AppID:     v.App,
		IP:        v.IP,
		UA:        v.UA,
		Referer:   v.Referer,
		EventTime: ev.EventTime,
		EventDate: ev.EventDate,
	}

	browser, devType, devVendor, osName, major := UAParts(v.UA)
	row.BrowserName = c.Lookup("browser", browser)
	row.BrowserMajorVersion = major
	row.DeviceType = c.Lookup("deviceType", devType)
	row.DeviceVendor = c.Lookup("deviceVendor", devVendor)
	row.OperationSystem = c.Lookup("operationSystem", osName)

	// Unknown IPs leave the coordinates at zero rather than failing the row.
	if lat, lon, ok := e.geo.Lookup(v.IP); ok {
		row.Latitude = lat
		row.Longitude = lon
	}

	// A parse failure leaves path and UTM fields at their defaults.
	if u, err := url.Parse(v.PageURL); err == nil {
		q := u.Query()
		row.PagePath = u.Path
		row.UTMSource = c.Lookup("UTMSource", q.Get("utm_source"))
		row.UTMMedium = c.Lookup("UTMMedium", q.Get("utm_medium"))
		row.UTMCampaign = q.Get("utm_campaign")
		row.UTMContent = q.Get("utm_content")
		row.UTMTerm = q.Get("utm_term")
	}
	return row
}

// UAParts decomposes a user-agent string into the categorical labels the
// dictionaries track. The registration endpoint uses the same decomposition
// so stored names and encoded lookups agree. Missing parts come back empty;
// a missing browser version yields major 0.
func UAParts(raw string) (browser, deviceType, deviceVendor, osName string, major int32) {
	ua := useragent.Parse(raw)

	browser = ua.Name
	osName = ua.OS
	deviceVendor = ua.Device
	major = int32(ua.VersionNo.Major)

	switch {
	case ua.Bot:
		deviceType = "bot"
	case ua.Mobile:
		deviceType = "mobile"
	case ua.Tablet:
		deviceType = "tablet"
	case ua.Desktop:
		deviceType = "desktop"
	}
	return browser, deviceType, deviceVendor, osName, major
}

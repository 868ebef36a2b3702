package model

import "time"

// Type identifies one of the tracked analytics categories. Each type has its
// own broker queue, in-memory buffer and destination table.
type Type string

const (
	TypeVisits          Type = "visits"
	TypeEvents          Type = "events"
	TypeRecommendations Type = "recommendations"
)

// Types lists every tracked event type in the fixed order the scheduler
// flushes them. The Type string is also the queue name.
func Types() []Type {
	return []Type{TypeVisits, TypeEvents, TypeRecommendations}
}

// Table returns the analytics-store table the type's records are written to.
func (t Type) Table() string {
	return "aggregator_" + string(t)
}

// Visit is the raw body of a page-visit message.
type Visit struct {
	UserID  uint32 `json:"userId"`
	App     string `json:"app" validate:"required,oneof=theanswer thesalt"`
	UA      string `json:"ua" validate:"required"`
	IP      string `json:"ip" validate:"required,ip4_addr"`
	Referer string `json:"referer" validate:"required,url"`
	PageURL string `json:"pageUrl" validate:"required,url"`
}

// AppEvent is the raw body of an interaction-event message. Question and
// answer identifiers pass through to the store unchanged.
type AppEvent struct {
	UserID     uint32 `json:"userId"`
	App        string `json:"app" validate:"required,oneof=theanswer thesalt"`
	Event      string `json:"event" validate:"required"`
	QuestionID int64  `json:"questionId"`
	AnswerID   int64  `json:"answerId"`
}

// Recommendation is the raw body of a recommendation-click message.
type Recommendation struct {
	UserID  uint32 `json:"userId"`
	App     string `json:"app" validate:"required,oneof=theanswer thesalt"`
	FromURL string `json:"fromUrl" validate:"required,url"`
	ToURL   string `json:"toUrl" validate:"required,url"`
}

// Validated is a schema-approved event. Exactly one payload pointer is set,
// matching Type. Timestamp is the broker message timestamp in epoch seconds;
// EventTime and EventDate are derived from it once, at validation time.
type Validated struct {
	Type      Type
	Timestamp int64
	EventTime time.Time
	EventDate time.Time

	Visit          *Visit
	Event          *AppEvent
	Recommendation *Recommendation
}

// VisitRow is the flattened record written to aggregator_visits.
// Categorical fields carry dictionary codes, 0 when unknown.
type VisitRow struct {
	UserID              uint32    `json:"userId" ch:"userId"`
	AppID               string    `json:"appId" ch:"appId"`
	IP                  string    `json:"ip" ch:"ip"`
	UA                  string    `json:"ua" ch:"ua"`
	Referer             string    `json:"referer" ch:"referer"`
	PagePath            string    `json:"pagePath" ch:"pagePath"`
	UTMSource           int32     `json:"UTMSource" ch:"UTMSource"`
	UTMMedium           int32     `json:"UTMMedium" ch:"UTMMedium"`
	UTMCampaign         string    `json:"UTMCampaign" ch:"UTMCampaign"`
	UTMContent          string    `json:"UTMContent" ch:"UTMContent"`
	UTMTerm             string    `json:"UTMTerm" ch:"UTMTerm"`
	BrowserName         int32     `json:"browserName" ch:"browserName"`
	BrowserMajorVersion int32     `json:"browserMajorVersion" ch:"browserMajorVersion"`
	DeviceType          int32     `json:"deviceType" ch:"deviceType"`
	DeviceVendor        int32     `json:"deviceVendor" ch:"deviceVendor"`
	OperationSystem     int32     `json:"operationSystem" ch:"operationSystem"`
	EventTime           time.Time `json:"eventTime" ch:"eventTime"`
	EventDate           time.Time `json:"eventDate" ch:"eventDate"`
	Latitude            float64   `json:"latitude" ch:"latitude"`
	Longitude           float64   `json:"longitude" ch:"longitude"`
}

// EventRow is the flattened record written to aggregator_events.
type EventRow struct {
	UserID     uint32    `json:"userId" ch:"userId"`
	AppID      string    `json:"appId" ch:"appId"`
	EventID    int32     `json:"eventId" ch:"eventId"`
	QuestionID int64     `json:"questionId" ch:"questionId"`
	AnswerID   int64     `json:"answerId" ch:"answerId"`
	EventTime  time.Time `json:"eventTime" ch:"eventTime"`
	EventDate  time.Time `json:"eventDate" ch:"eventDate"`
}

// RecommendationRow is the flattened record written to
// aggregator_recommendations.
type RecommendationRow struct {
	UserID    uint32    `json:"userId" ch:"userId"`
	AppID     string    `json:"appId" ch:"appId"`
	FromURL   string    `json:"fromUrl" ch:"fromUrl"`
	ToURL     string    `json:"toUrl" ch:"toUrl"`
	EventTime time.Time `json:"eventTime" ch:"eventTime"`
	EventDate time.Time `json:"eventDate" ch:"eventDate"`
}

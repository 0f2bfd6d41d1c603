package model

import (
	"encoding/json"
	"time"
)

// OccurrenceMessage carries one raw error event to the processing pipeline.
// The payload is opaque to the dispatch engine; only ProjectID is inspected
// for logging context.
type OccurrenceMessage struct {
	ProjectID string          `json:"project_id"`
	Event     json.RawMessage `json:"event"`
}

// NotificationMessage represents one candidate notification-worthy event.
type NotificationMessage struct {
	ProjectID    string `json:"project_id"`
	ErrorID      string `json:"error_id"`
	ErrorStackID string `json:"error_stack_id"`
	Code         string `json:"code"`
	UserAgent    string `json:"user_agent,omitempty"`
	IsNew        bool   `json:"is_new"`
	IsRegression bool   `json:"is_regression"`
	IsCritical   bool   `json:"is_critical"`
}

// SummaryRequest triggers digest construction for one project over a UTC
// time range.
type SummaryRequest struct {
	ProjectID    string    `json:"project_id"`
	UTCStartTime time.Time `json:"utc_start_time"`
	UTCEndTime   time.Time `json:"utc_end_time"`
}

// WebhookMessage is one outbound delivery attempt.
type WebhookMessage struct {
	ProjectID string          `json:"project_id"`
	URL       string          `json:"url"`
	Data      json.RawMessage `json:"data"`
}

// Notice is the mail model for a single error notification.
type Notice struct {
	NotificationMessage
	ProjectName      string `json:"project_name"`
	TotalOccurrences int64  `json:"total_occurrences"`
}

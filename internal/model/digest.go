package model

import "time"

// StackFrequency is one "most frequent" digest entry. StackID and Total
// come from the stats engine; the rest is enriched from the resolved
// stack's signature.
type StackFrequency struct {
	StackID string `json:"stack_id"`
	Total   int64  `json:"total"`

	Title  string    `json:"title,omitempty"`
	Type   string    `json:"type,omitempty"`
	Method string    `json:"method,omitempty"`
	Path   string    `json:"path,omitempty"`
	Is404  bool      `json:"is_404,omitempty"`
	First  time.Time `json:"first,omitempty"`
	Last   time.Time `json:"last,omitempty"`
}

// ProjectErrorStats is the raw aggregate returned by the stats engine for
// one project and time range. MostFrequent entries carry only StackID and
// Total until enriched.
type ProjectErrorStats struct {
	Total          int64            `json:"total"`
	PerHourAverage float64          `json:"per_hour_average"`
	NewTotal       int64            `json:"new_total"`
	UniqueTotal    int64            `json:"unique_total"`
	MostFrequent   []StackFrequency `json:"most_frequent"`
}

// Digest is the per-project daily summary mailed to opted-in users.
// Newest and MostFrequent never exceed five entries.
type Digest struct {
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`

	Total          int64   `json:"total"`
	PerHourAverage float64 `json:"per_hour_average"`
	NewTotal       int64   `json:"new_total"`
	UniqueTotal    int64   `json:"unique_total"`

	Newest       []ErrorStack     `json:"newest"`
	MostFrequent []StackFrequency `json:"most_frequent"`

	HasSubmittedErrors bool `json:"has_submitted_errors"`
	IsFreePlan         bool `json:"is_free_plan"`
}

package model

import (
	"slices"
	"time"
)

// NotificationMode controls which occurrences a user wants to hear about.
type NotificationMode string

const (
	ModeNone NotificationMode = "none"
	ModeNew  NotificationMode = "new"
	ModeAll  NotificationMode = "all"
)

// NotificationSetting is one user's per-project notification preferences.
// Settings are keyed by user ID in Project.NotificationSettings; keys are
// unique per user and insertion order is irrelevant.
type NotificationSetting struct {
	Mode                 NotificationMode `json:"mode"`
	ReportCriticalErrors bool             `json:"report_critical_errors"`
	ReportRegressions    bool             `json:"report_regressions"`
	Report404Errors      bool             `json:"report_404_errors"`
	ReportKnownBotErrors bool             `json:"report_known_bot_errors"`
	SendDailySummary     bool             `json:"send_daily_summary"`
}

// FreePlanID is the billing plan that marks an organization as free tier.
const FreePlanID = "free"

type Organization struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	PlanID             string `json:"plan_id"`
	HasPremiumFeatures bool   `json:"has_premium_features"`
}

type Project struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`

	// TimeZone is the project's IANA zone name used for digest display
	// times. Empty means UTC.
	TimeZone string `json:"time_zone,omitempty"`

	// TotalErrorCount is the lifetime number of submitted occurrences.
	TotalErrorCount int64 `json:"total_error_count"`

	// NotificationSettings maps user ID to that user's preferences.
	NotificationSettings map[string]NotificationSetting `json:"notification_settings"`
}

type User struct {
	ID                        string   `json:"id"`
	EmailAddress              string   `json:"email_address"`
	IsEmailAddressVerified    bool     `json:"is_email_address_verified"`
	EmailNotificationsEnabled bool     `json:"email_notifications_enabled"`
	OrganizationIDs           []string `json:"organization_ids"`
}

// MemberOf reports whether the user belongs to the given organization.
func (u *User) MemberOf(orgID string) bool {
	return slices.Contains(u.OrganizationIDs, orgID)
}

// SignatureInfo is the typed view of a stack's signature. The original
// store keeps these as string-keyed pairs; fields here are pointers so
// "key absent" stays distinguishable from an empty value, which matters
// for 404 detection.
type SignatureInfo struct {
	ExceptionType *string `json:"exception_type,omitempty"`
	Method        *string `json:"method,omitempty"`
	Path          *string `json:"path,omitempty"`
}

// Is404 reports whether the stack was grouped by request path, which is
// how 404 stacks are signed.
func (s SignatureInfo) Is404() bool { return s.Path != nil }

// ErrorStack is a deduplicated group of error occurrences sharing a
// signature.
type ErrorStack struct {
	ID                   string        `json:"id"`
	ProjectID            string        `json:"project_id"`
	Title                string        `json:"title"`
	TotalOccurrences     int64         `json:"total_occurrences"`
	DisableNotifications bool          `json:"disable_notifications"`
	IsHidden             bool          `json:"is_hidden"`
	FirstOccurrence      time.Time     `json:"first_occurrence"`
	LastOccurrence       time.Time     `json:"last_occurrence"`
	SignatureInfo        SignatureInfo `json:"signature_info"`
}

package notify

import (
	"strings"

	"notifyd/internal/model"
)

// EventFacts are the per-event inputs to the pure decision. IsBot is only
// meaningful when HasUserAgent is true and classification ran; a failed
// classification leaves it false (fail open).
type EventFacts struct {
	IsNew        bool
	IsRegression bool
	IsCritical   bool
	Code         string
	HasUserAgent bool
	IsBot        bool
}

// Delivery is the outbound safety valve. Outside production, mail only
// goes to addresses matching the allow-list (case-insensitive substring
// match), so non-production environments never email real users.
type Delivery struct {
	Production      bool
	AllowedOutbound []string
}

func (d Delivery) allows(email string) bool {
	if d.Production {
		return true
	}
	low := strings.ToLower(email)
	for _, allowed := range d.AllowedOutbound {
		if allowed != "" && strings.Contains(low, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// Reason explains a Decision.
type Reason string

const (
	// Send reasons, in precedence order.
	ReasonOccurrence Reason = "occurrence"
	ReasonCritical   Reason = "critical"
	ReasonRegression Reason = "regression"

	// Skip reasons.
	ReasonNoOptIn         Reason = "no_opt_in"
	ReasonOutboundBlocked Reason = "outbound_blocked"
)

type Decision struct {
	Send   bool
	Reason Reason
}

// Decide evaluates one user's settings against the event facts.
//
// Three independent flags are computed: occurrence-based (on unless mode
// is none, and forced off for not-new events in "new" mode, opted-out
// 404s, and opted-out bot traffic), critical-based, and regression-based.
// Any surviving flag sends, subject to the outbound allow-list.
func Decide(facts EventFacts, setting model.NotificationSetting, email string, delivery Delivery) Decision {
	occurrence := setting.Mode != model.ModeNone
	critical := setting.ReportCriticalErrors && facts.IsCritical
	regression := setting.ReportRegressions && facts.IsRegression

	if setting.Mode == model.ModeNew && !facts.IsNew {
		occurrence = false
	}
	if occurrence && !setting.Report404Errors && facts.Code == "404" {
		occurrence = false
	}
	if occurrence && !setting.ReportKnownBotErrors && facts.HasUserAgent && facts.IsBot {
		occurrence = false
	}

	if !occurrence && !critical && !regression {
		return Decision{Send: false, Reason: ReasonNoOptIn}
	}
	if !delivery.allows(email) {
		return Decision{Send: false, Reason: ReasonOutboundBlocked}
	}

	switch {
	case occurrence:
		return Decision{Send: true, Reason: ReasonOccurrence}
	case critical:
		return Decision{Send: true, Reason: ReasonCritical}
	default:
		return Decision{Send: true, Reason: ReasonRegression}
	}
}

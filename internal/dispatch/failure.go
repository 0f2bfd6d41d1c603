package dispatch

import (
	"context"
	"encoding/json"

	"notifyd/internal/alerting"
	logx "notifyd/pkg/logx"
)

// projectIDOf pulls project context out of a message body when the
// payload carries one. Best effort; an empty string means none found.
func projectIDOf(msg Message) string {
	var probe struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(msg.Body, &probe); err != nil {
		return ""
	}
	return probe.ProjectID
}

// ReportFailure builds the standard failure function: submit the error
// and offending payload to the error-reporting sink under the given tag,
// and log with project context when derivable.
func ReportFailure(reporter alerting.Reporter, log logx.Logger, tag, message string) FailureFunc {
	return func(ctx context.Context, msg Message, err error) {
		reporter.Submit(ctx, alerting.Report{
			Err:      err,
			Payload:  json.RawMessage(msg.Body),
			Tags:     []string{tag},
			Severity: alerting.SeverityCritical,
		})
		fields := []logx.Field{logx.String("id", msg.ID), logx.Err(err)}
		if projectID := projectIDOf(msg); projectID != "" {
			fields = append(fields, logx.String("project", projectID))
		}
		log.Error(message, fields...)
	}
}

// LogFailure builds a failure function that only logs; webhook delivery
// failures are not worth an error-tracking submission.
func LogFailure(log logx.Logger, message string) FailureFunc {
	return func(ctx context.Context, msg Message, err error) {
		fields := []logx.Field{logx.String("id", msg.ID), logx.Err(err)}
		if projectID := projectIDOf(msg); projectID != "" {
			fields = append(fields, logx.String("project", projectID))
		}
		log.Error(message, fields...)
	}
}

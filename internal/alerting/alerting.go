// Package alerting is the error-reporting sink for handler failures.
// Every failed message is submitted here with its payload and a
// kind-specific tag; operators consume the reports via logs or a
// Telegram channel. Submission is best-effort and must never fail the
// message being reported.
package alerting

import (
	"context"

	logx "notifyd/pkg/logx"
)

type Severity string

const (
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Report is one structured failure submission.
type Report struct {
	Err      error
	Payload  any
	Tags     []string
	Severity Severity
}

type Reporter interface {
	Submit(ctx context.Context, r Report)
}

// NewLog returns a reporter that writes structured error logs.
func NewLog(log logx.Logger) Reporter {
	return &logReporter{log: log}
}

type logReporter struct {
	log logx.Logger
}

func (r *logReporter) Submit(ctx context.Context, rep Report) {
	fields := []logx.Field{
		logx.Err(rep.Err),
		logx.String("severity", string(rep.Severity)),
		logx.Any("payload", rep.Payload),
	}
	for _, t := range rep.Tags {
		fields = append(fields, logx.String("tag", t))
	}
	r.log.Error("handler failure reported", fields...)
}

// Fanout submits to every reporter in order.
func Fanout(reporters ...Reporter) Reporter {
	return fanout(reporters)
}

type fanout []Reporter

func (f fanout) Submit(ctx context.Context, r Report) {
	for _, rep := range f {
		if rep != nil {
			rep.Submit(ctx, r)
		}
	}
}

package app

import (
	"context"
	"time"

	"notifyd/internal/model"
	logx "notifyd/pkg/logx"
)

// noStats returns empty aggregates; digests built without a stats engine
// still list the newest stacks.
type noStats struct{}

func (noStats) ProjectErrorStats(ctx context.Context, projectID string, offset time.Duration, start, end time.Time) (model.ProjectErrorStats, error) {
	return model.ProjectErrorStats{}, nil
}

// logMailer records what would have been sent. Used when no real mail
// transport is wired in, so a standalone daemon is observable end to end.
type logMailer struct {
	log logx.Logger
}

func (m logMailer) SendNotice(ctx context.Context, email string, n model.Notice) error {
	m.log.Info("notice",
		logx.String("email", email),
		logx.String("project", n.ProjectName),
		logx.String("stack", n.ErrorStackID),
		logx.Int64("occurrences", n.TotalOccurrences))
	return nil
}

func (m logMailer) SendSummary(ctx context.Context, email string, d model.Digest) error {
	m.log.Info("summary",
		logx.String("email", email),
		logx.String("project", d.ProjectName),
		logx.Int64("total", d.Total),
		logx.Time("start", d.StartDate),
		logx.Time("end", d.EndDate))
	return nil
}

// logPipeline acknowledges occurrences without processing them.
type logPipeline struct {
	log logx.Logger
}

func (p logPipeline) Run(ctx context.Context, occ model.OccurrenceMessage) error {
	p.log.Debug("occurrence received", logx.String("project", occ.ProjectID), logx.Int("bytes", len(occ.Event)))
	return nil
}

// Package digest builds the per-project daily summary and mails it to
// users who opted in.
package digest

import (
	"context"
	"time"

	"notifyd/internal/model"
	"notifyd/internal/store"
	logx "notifyd/pkg/logx"
)

// Newest/most-frequent lists are capped for email layout.
const maxListedStacks = 5

// Deps are the collaborators the aggregator consumes.
type Deps struct {
	Projects store.ProjectRepo
	Orgs     store.OrganizationRepo
	Users    store.UserRepo
	Stacks   store.StackRepo
	Stats    store.StatsProvider
	Mailer   store.Mailer
	Log      logx.Logger
}

type Aggregator struct {
	deps Deps
}

func NewAggregator(deps Deps) *Aggregator {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	return &Aggregator{deps: deps}
}

// HandleSummary builds one project's digest over the requested UTC range
// and emails every eligible user. No eligible users is a no-op, not an
// error; unresolvable references abort gracefully.
func (a *Aggregator) HandleSummary(ctx context.Context, req model.SummaryRequest) error {
	log := a.deps.Log.With(logx.String("project", req.ProjectID))

	project, err := a.deps.Projects.ByIDCached(ctx, req.ProjectID)
	if err != nil {
		log.Error("could not load project for summary", logx.Err(err))
		return nil
	}
	organization, err := a.deps.Orgs.ByIDCached(ctx, project.OrganizationID)
	if err != nil {
		log.Error("could not load organization for summary", logx.Err(err))
		return nil
	}

	var userIDs []string
	for id, setting := range project.NotificationSettings {
		if setting.SendDailySummary {
			userIDs = append(userIDs, id)
		}
	}
	if len(userIDs) == 0 {
		return nil
	}

	users, err := a.deps.Users.ByIDs(ctx, userIDs)
	if err != nil {
		log.Error("could not load summary users", logx.Err(err))
		return nil
	}
	verified := users[:0]
	for _, u := range users {
		if u.IsEmailAddressVerified {
			verified = append(verified, u)
		}
	}
	if len(verified) == 0 {
		return nil
	}

	d, err := a.build(ctx, project, organization, req.UTCStartTime, req.UTCEndTime)
	if err != nil {
		log.Error("digest construction failed", logx.Err(err))
		return nil
	}

	sent := 0
	for _, u := range verified {
		if !u.EmailNotificationsEnabled {
			continue
		}
		if err := a.deps.Mailer.SendSummary(ctx, u.EmailAddress, *d); err != nil {
			log.Warn("send summary failed", logx.String("email", u.EmailAddress), logx.Err(err))
			continue
		}
		sent++
	}
	log.Debug("daily summary processed", logx.Int("sent", sent),
		logx.Time("start", d.StartDate), logx.Time("end", d.EndDate))
	return nil
}

func (a *Aggregator) build(ctx context.Context, project *model.Project, organization *model.Organization, utcStart, utcEnd time.Time) (*model.Digest, error) {
	newest, _, err := a.deps.Stacks.NewSince(ctx, project.ID, utcStart, utcEnd, maxListedStacks)
	if err != nil {
		return nil, err
	}

	// Display times are project-local.
	start, err := a.deps.Projects.UTCToLocalTime(ctx, project.ID, utcStart)
	if err != nil {
		return nil, err
	}
	end, err := a.deps.Projects.UTCToLocalTime(ctx, project.ID, utcEnd)
	if err != nil {
		return nil, err
	}
	offset, err := a.deps.Projects.UTCOffset(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	stats, err := a.deps.Stats.ProjectErrorStats(ctx, project.ID, offset, start, end)
	if err != nil {
		return nil, err
	}

	mostFrequent := stats.MostFrequent
	if len(mostFrequent) > maxListedStacks {
		mostFrequent = mostFrequent[:maxListedStacks]
	}
	mostFrequent = a.enrich(ctx, mostFrequent)

	return &model.Digest{
		ProjectID:          project.ID,
		ProjectName:        project.Name,
		StartDate:          start,
		EndDate:            end,
		Total:              stats.Total,
		PerHourAverage:     stats.PerHourAverage,
		NewTotal:           stats.NewTotal,
		UniqueTotal:        stats.UniqueTotal,
		Newest:             newest,
		MostFrequent:       mostFrequent,
		HasSubmittedErrors: project.TotalErrorCount > 0,
		IsFreePlan:         organization.PlanID == model.FreePlanID,
	}, nil
}

// enrich fills each frequency entry with the stack's signature metadata.
// Stacks the stats engine still references but storage no longer resolves
// are dropped rather than failing the digest.
func (a *Aggregator) enrich(ctx context.Context, frequent []model.StackFrequency) []model.StackFrequency {
	if len(frequent) == 0 {
		return frequent
	}
	ids := make([]string, 0, len(frequent))
	for _, f := range frequent {
		ids = append(ids, f.StackID)
	}
	stacks, err := a.deps.Stacks.ByIDs(ctx, ids)
	if err != nil {
		a.deps.Log.Warn("most-frequent stack lookup failed", logx.Err(err))
		return nil
	}
	byID := make(map[string]*model.ErrorStack, len(stacks))
	for _, s := range stacks {
		byID[s.ID] = s
	}

	out := frequent[:0]
	for _, f := range frequent {
		stack, ok := byID[f.StackID]
		if !ok {
			a.deps.Log.Debug("dropping unresolvable stack from digest", logx.String("stack", f.StackID))
			continue
		}
		f.Title = stack.Title
		f.First = stack.FirstOccurrence
		f.Last = stack.LastOccurrence
		f.Is404 = stack.SignatureInfo.Is404()
		if v := stack.SignatureInfo.ExceptionType; v != nil {
			f.Type = *v
		}
		if v := stack.SignatureInfo.Method; v != nil {
			f.Method = *v
		}
		if v := stack.SignatureInfo.Path; v != nil {
			f.Path = *v
		}
		out = append(out, f)
	}
	return out
}

package notify

import (
	"context"
	"errors"
	"sort"
	"time"

	"notifyd/internal/eventbus"
	"notifyd/internal/metrics"
	"notifyd/internal/model"
	"notifyd/internal/store"
	"notifyd/internal/throttle"
	logx "notifyd/pkg/logx"
)

// Stack throttling only kicks in after the first couple of occurrences;
// early occurrences of a stack always notify.
const stackThrottleFloor = 2

// Config tunes the gate.
type Config struct {
	Delivery Delivery
	// ProjectLimit caps non-regression notifications per project per
	// throttle window. 0 means 10.
	ProjectLimit int64
}

func (c Config) withDefaults() Config {
	if c.ProjectLimit <= 0 {
		c.ProjectLimit = 10
	}
	return c
}

// Deps are the collaborators the gate consumes.
type Deps struct {
	Projects   store.ProjectRepo
	Orgs       store.OrganizationRepo
	Users      store.UserRepo
	Stacks     store.StackRepo
	Limiter    *throttle.Limiter
	Mailer     store.Mailer
	Classifier BotClassifier
	Metrics    metrics.Sink
	Bus        eventbus.Bus
	Log        logx.Logger
}

type Handler struct {
	cfg  Config
	deps Deps
}

func NewHandler(cfg Config, deps Deps) *Handler {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.Classifier == nil {
		deps.Classifier = ClassifyBot
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	return &Handler{cfg: cfg.withDefaults(), deps: deps}
}

// HandleNotification runs the full gate for one event. It returns nil on
// every disqualifying condition: a suppressed or unresolvable event is a
// handled message, not a failure.
func (h *Handler) HandleNotification(ctx context.Context, msg model.NotificationMessage) error {
	log := h.deps.Log.With(logx.String("project", msg.ProjectID), logx.String("stack", msg.ErrorStackID))
	log.Trace("processing notification", logx.String("error", msg.ErrorID))

	project, err := h.deps.Projects.ByIDCached(ctx, msg.ProjectID)
	if err != nil {
		log.Error("could not load project", logx.Err(err))
		return nil
	}
	organization, err := h.deps.Orgs.ByIDCached(ctx, project.OrganizationID)
	if err != nil {
		log.Error("could not load organization", logx.String("organization", project.OrganizationID), logx.Err(err))
		return nil
	}
	stack, err := h.deps.Stacks.ByID(ctx, msg.ErrorStackID)
	if err != nil {
		log.Error("could not load stack", logx.Err(err))
		return nil
	}

	if !organization.HasPremiumFeatures {
		log.Trace("skipping because organization does not have premium features")
		return nil
	}
	if stack.DisableNotifications || stack.IsHidden {
		log.Trace("skipping because stack notifications are disabled or it is hidden")
		return nil
	}

	totalOccurrences := stack.TotalOccurrences

	// After the first couple of occurrences, don't notify for the same
	// stack more than once per window.
	if lastSent, ok := h.deps.Limiter.LastSent(ctx, msg.ErrorStackID); ok {
		if totalOccurrences > stackThrottleFloor && !msg.IsRegression && h.withinWindow(lastSent) {
			log.Info("skipping because of stack throttling",
				logx.Time("last_sent", lastSent), logx.Int64("occurrences", totalOccurrences))
			h.deps.Metrics.Counter(metrics.NotificationsThrottle, 1)
			h.publish("notification.throttled", msg, "stack")
			return nil
		}
	}

	// Every evaluated event consumes project budget, including ones that
	// end up notifying nobody.
	count, err := h.deps.Limiter.Bump(ctx, msg.ProjectID)
	if err != nil {
		log.Warn("project throttle increment failed; allowing", logx.Err(err))
	} else if count > h.cfg.ProjectLimit && !msg.IsRegression {
		log.Info("skipping because of project throttling", logx.Int64("count", count))
		h.deps.Metrics.Counter(metrics.NotificationsThrottle, 1)
		h.publish("notification.throttled", msg, "project")
		return nil
	}

	facts := EventFacts{
		IsNew:        msg.IsNew,
		IsRegression: msg.IsRegression,
		IsCritical:   msg.IsCritical,
		Code:         msg.Code,
		HasUserAgent: msg.UserAgent != "",
	}
	if facts.HasUserAgent {
		// Classify once per event; classification failure fails open.
		isBot, cerr := h.deps.Classifier(msg.UserAgent)
		if cerr != nil {
			log.Warn("unable to classify user agent", logx.String("user_agent", msg.UserAgent), logx.Err(cerr))
		} else {
			facts.IsBot = isBot
		}
	}

	emailsSent := 0
	for _, userID := range sortedUserIDs(project.NotificationSettings) {
		setting := project.NotificationSettings[userID]
		ulog := log.With(logx.String("user", userID))
		ulog.Trace("processing notification setting")

		user, err := h.deps.Users.ByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				ulog.Error("could not load user")
			} else {
				ulog.Error("user lookup failed", logx.Err(err))
			}
			continue
		}
		if user.EmailAddress == "" {
			ulog.Error("user has a blank email address")
			continue
		}
		if !user.IsEmailAddressVerified {
			ulog.Info("user email address is not verified", logx.String("email", user.EmailAddress))
			continue
		}
		if !user.EmailNotificationsEnabled {
			ulog.Trace("user has email notifications disabled", logx.String("email", user.EmailAddress))
			continue
		}
		if !user.MemberOf(project.OrganizationID) {
			ulog.Error("unauthorized user",
				logx.String("organization", project.OrganizationID), logx.String("error", msg.ErrorID))
			continue
		}

		decision := Decide(facts, setting, user.EmailAddress, h.cfg.Delivery)
		if !decision.Send {
			ulog.Trace("skipping user", logx.String("reason", string(decision.Reason)))
			continue
		}

		notice := model.Notice{
			NotificationMessage: msg,
			ProjectName:         project.Name,
			TotalOccurrences:    totalOccurrences,
		}
		ulog.Trace("sending email", logx.String("email", user.EmailAddress), logx.String("reason", string(decision.Reason)))
		if err := h.deps.Mailer.SendNotice(ctx, user.EmailAddress, notice); err != nil {
			// Transport failures are the transport's concern.
			ulog.Warn("send notice failed", logx.Err(err))
			continue
		}
		emailsSent++
		h.deps.Metrics.Counter(metrics.NotificationsSent, 1)
	}

	// If any email went out, mark the stack so repeats are throttled.
	if emailsSent > 0 {
		h.deps.Limiter.MarkSent(ctx, msg.ErrorStackID)
		h.publish("notification.sent", msg, "")
	}
	return nil
}

func (h *Handler) withinWindow(lastSent time.Time) bool {
	return time.Since(lastSent) < h.deps.Limiter.Window()
}

func (h *Handler) publish(typ string, msg model.NotificationMessage, scope string) {
	if h.deps.Bus == nil {
		return
	}
	data := map[string]any{"project": msg.ProjectID, "stack": msg.ErrorStackID}
	if scope != "" {
		data["scope"] = scope
	}
	h.deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// sortedUserIDs gives the settings map a stable iteration order; send
// counts must not depend on map ordering when throttles refresh mid-loop.
func sortedUserIDs(settings map[string]model.NotificationSetting) []string {
	ids := make([]string, 0, len(settings))
	for id := range settings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

package alerting

import (
	"context"
	"errors"
	"strings"
	"testing"

	logx "notifyd/pkg/logx"
)

type capture struct {
	reports []Report
}

func (c *capture) Submit(ctx context.Context, r Report) {
	c.reports = append(c.reports, r)
}

func TestFanoutSubmitsToAll(t *testing.T) {
	t.Parallel()

	a, b := &capture{}, &capture{}
	r := Fanout(a, nil, b)
	r.Submit(context.Background(), Report{Err: errors.New("boom"), Severity: SeverityCritical})

	if len(a.reports) != 1 || len(b.reports) != 1 {
		t.Fatalf("reports = %d, %d; want 1 each", len(a.reports), len(b.reports))
	}
}

func TestLogReporterDoesNotPanic(t *testing.T) {
	t.Parallel()

	r := NewLog(logx.Nop())
	r.Submit(context.Background(), Report{
		Err:      errors.New("boom"),
		Payload:  map[string]string{"project_id": "p1"},
		Tags:     []string{"ErrorMQ"},
		Severity: SeverityCritical,
	})
	r.Submit(context.Background(), Report{})
}

func TestNewTelegramValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegram(TelegramConfig{ChatID: 1}, logx.Nop()); err == nil {
		t.Fatal("missing token accepted")
	}
	if _, err := NewTelegram(TelegramConfig{Token: "t"}, logx.Nop()); err == nil {
		t.Fatal("missing chat id accepted")
	}
}

func TestTelegramFormat(t *testing.T) {
	t.Parallel()

	r := &TelegramReporter{chatID: 1, log: logx.Nop()}
	msg := r.format(Report{
		Err:      errors.New("smtp unavailable"),
		Payload:  map[string]string{"project_id": "p1"},
		Tags:     []string{"NotificationMQ"},
		Severity: SeverityCritical,
	})
	for _, want := range []string{"smtp unavailable", "critical", "NotificationMQ", "project_id"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("formatted alert missing %q:\n%s", want, msg)
		}
	}

	// Oversized payloads are truncated for the transport.
	big := strings.Repeat("x", 4000)
	msg = r.format(Report{Payload: big})
	if len(msg) > 2200 {
		t.Fatalf("formatted alert too long: %d bytes", len(msg))
	}
}

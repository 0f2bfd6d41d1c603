package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"notifyd/internal/model"
	"notifyd/internal/store"
	logx "notifyd/pkg/logx"
)

func registerHook(t *testing.T, hooks store.HookStore, id, url string) {
	t.Helper()
	if err := hooks.Add(context.Background(), store.Hook{ID: id, ProjectID: "proj-1", URL: url}); err != nil {
		t.Fatalf("Add hook: %v", err)
	}
}

func TestHandleWebhookPostsPayload(t *testing.T) {
	t.Parallel()

	var gotBody atomic.Value
	var gotContentType atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody.Store(string(b))
		gotContentType.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hooks := store.NewMemoryHooks()
	registerHook(t, hooks, "h1", srv.URL)
	d := New(Config{}, hooks, logx.Nop(), nil)

	payload := json.RawMessage(`{"event":"stack promoted"}`)
	err := d.HandleWebhook(context.Background(), model.WebhookMessage{ProjectID: "proj-1", URL: srv.URL, Data: payload})
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if got := gotBody.Load(); got != `{"event":"stack promoted"}` {
		t.Fatalf("body = %v, want payload", got)
	}
	if got := gotContentType.Load(); got != "application/json" {
		t.Fatalf("content type = %v", got)
	}

	// Registration must survive a successful delivery.
	remaining, err := hooks.ByProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ByProject: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("hooks = %d after 200 response, want 1", len(remaining))
	}
}

func TestHandleWebhookEmptyBodyIsNull(t *testing.T) {
	t.Parallel()

	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody.Store(string(b))
	}))
	defer srv.Close()

	d := New(Config{}, store.NewMemoryHooks(), logx.Nop(), nil)
	err := d.HandleWebhook(context.Background(), model.WebhookMessage{ProjectID: "proj-1", URL: srv.URL})
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	if got := gotBody.Load(); got != "null" {
		t.Fatalf("body = %v, want null", got)
	}
}

func TestHandleWebhookGoneDeregisters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	hooks := store.NewMemoryHooks()
	registerHook(t, hooks, "h1", srv.URL)
	registerHook(t, hooks, "h2", srv.URL)
	registerHook(t, hooks, "h3", srv.URL+"/other")
	d := New(Config{}, hooks, logx.Nop(), nil)

	err := d.HandleWebhook(context.Background(), model.WebhookMessage{ProjectID: "proj-1", URL: srv.URL})
	if err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}

	remaining, err := hooks.ByProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("ByProject: %v", err)
	}
	if len(remaining) != 1 || remaining[0].URL != srv.URL+"/other" {
		t.Fatalf("remaining hooks = %+v, want only the other URL", remaining)
	}
}

func TestHandleWebhookFailureStatusKeepsHook(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusInternalServerError, http.StatusNotFound} {
		status := status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		hooks := store.NewMemoryHooks()
		registerHook(t, hooks, "h1", srv.URL)
		d := New(Config{}, hooks, logx.Nop(), nil)

		if err := d.HandleWebhook(context.Background(), model.WebhookMessage{ProjectID: "proj-1", URL: srv.URL}); err != nil {
			t.Fatalf("status %d: HandleWebhook error: %v", status, err)
		}
		remaining, _ := hooks.ByProject(context.Background(), "proj-1")
		if len(remaining) != 1 {
			t.Fatalf("status %d deregistered the hook", status)
		}
		srv.Close()
	}
}

func TestHandleWebhookUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	hooks := store.NewMemoryHooks()
	registerHook(t, hooks, "h1", url)
	d := New(Config{}, hooks, logx.Nop(), nil)

	// Connection failures never fail the message and never deregister.
	if err := d.HandleWebhook(context.Background(), model.WebhookMessage{ProjectID: "proj-1", URL: url}); err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}
	remaining, _ := hooks.ByProject(context.Background(), "proj-1")
	if len(remaining) != 1 {
		t.Fatal("unreachable endpoint deregistered the hook")
	}
}

package store

import (
	"context"
	"testing"

	logx "notifyd/pkg/logx"
)

func TestMemoryHooksLifecycle(t *testing.T) {
	t.Parallel()

	hooks := NewMemoryHooks()
	ctx := context.Background()

	add := func(id, project, url string) {
		t.Helper()
		if err := hooks.Add(ctx, Hook{ID: id, ProjectID: project, URL: url, EventTypes: []string{"error"}}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	add("h1", "p1", "https://a.test/hook")
	add("h2", "p1", "https://a.test/hook")
	add("h3", "p1", "https://b.test/hook")
	add("h4", "p2", "https://a.test/hook")

	byProject, err := hooks.ByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("ByProject: %v", err)
	}
	if len(byProject) != 3 {
		t.Fatalf("p1 hooks = %d, want 3", len(byProject))
	}
	if byProject[0].CreatedAt.IsZero() {
		t.Fatal("Add did not stamp CreatedAt")
	}

	// Deletion is by URL across projects.
	n, err := hooks.DeleteByURL(ctx, "https://a.test/hook")
	if err != nil {
		t.Fatalf("DeleteByURL: %v", err)
	}
	if n != 3 {
		t.Fatalf("removed = %d, want 3", n)
	}

	byProject, _ = hooks.ByProject(ctx, "p1")
	if len(byProject) != 1 || byProject[0].URL != "https://b.test/hook" {
		t.Fatalf("remaining p1 hooks = %+v", byProject)
	}

	// Deleting an unknown URL is a zero-count success.
	n, err = hooks.DeleteByURL(ctx, "https://gone.test")
	if err != nil || n != 0 {
		t.Fatalf("DeleteByURL unknown = %d, %v", n, err)
	}

	if err := hooks.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenHooksDrivers(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "memory", "Memory"} {
		s, err := OpenHooks(HookConfig{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("driver %q: %v", driver, err)
		}
		_ = s.Close()
	}

	if _, err := OpenHooks(HookConfig{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver accepted")
	}
}

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"notifyd/internal/model"
)

// Memory is an in-process implementation of every lookup contract. It is
// the default backend for tests and embedded runs; production deployments
// put the real repositories behind the same interfaces.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
	orgs     map[string]*model.Organization
	users    map[string]*model.User
	stacks   map[string]*model.ErrorStack
}

func NewMemory() *Memory {
	return &Memory{
		projects: map[string]*model.Project{},
		orgs:     map[string]*model.Organization{},
		users:    map[string]*model.User{},
		stacks:   map[string]*model.ErrorStack{},
	}
}

func (m *Memory) PutProject(p *model.Project) {
	m.mu.Lock()
	m.projects[p.ID] = p
	m.mu.Unlock()
}

func (m *Memory) PutOrganization(o *model.Organization) {
	m.mu.Lock()
	m.orgs[o.ID] = o
	m.mu.Unlock()
}

func (m *Memory) PutUser(u *model.User) {
	m.mu.Lock()
	m.users[u.ID] = u
	m.mu.Unlock()
}

func (m *Memory) PutStack(s *model.ErrorStack) {
	m.mu.Lock()
	m.stacks[s.ID] = s
	m.mu.Unlock()
}

func (m *Memory) ByID(ctx context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ByIDCached(ctx context.Context, id string) (*model.Project, error) {
	return m.ByID(ctx, id)
}

func (m *Memory) All(ctx context.Context) ([]*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) location(projectID string) (*time.Location, error) {
	m.mu.RLock()
	p, ok := m.projects[projectID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if p.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.TimeZone)
}

func (m *Memory) UTCToLocalTime(ctx context.Context, projectID string, t time.Time) (time.Time, error) {
	loc, err := m.location(projectID)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().In(loc), nil
}

func (m *Memory) UTCOffset(ctx context.Context, projectID string) (time.Duration, error) {
	loc, err := m.location(projectID)
	if err != nil {
		return 0, err
	}
	_, secs := time.Now().In(loc).Zone()
	return time.Duration(secs) * time.Second, nil
}

// OrganizationByID and friends are split out by name because Memory backs
// several single-method contracts at once.

func (m *Memory) Organizations() OrganizationRepo { return orgView{m} }
func (m *Memory) Users() UserRepo                 { return userView{m} }
func (m *Memory) Stacks() StackRepo               { return stackView{m} }

type orgView struct{ m *Memory }

func (v orgView) ByID(ctx context.Context, id string) (*model.Organization, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	o, ok := v.m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (v orgView) ByIDCached(ctx context.Context, id string) (*model.Organization, error) {
	return v.ByID(ctx, id)
}

type userView struct{ m *Memory }

func (v userView) ByID(ctx context.Context, id string) (*model.User, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	u, ok := v.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (v userView) ByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := v.m.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stackView struct{ m *Memory }

func (v stackView) ByID(ctx context.Context, id string) (*model.ErrorStack, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	s, ok := v.m.stacks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (v stackView) ByIDs(ctx context.Context, ids []string) ([]*model.ErrorStack, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	out := make([]*model.ErrorStack, 0, len(ids))
	for _, id := range ids {
		if s, ok := v.m.stacks[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (v stackView) NewSince(ctx context.Context, projectID string, start, end time.Time, limit int) ([]model.ErrorStack, int64, error) {
	v.m.mu.RLock()
	defer v.m.mu.RUnlock()
	var all []model.ErrorStack
	for _, s := range v.m.stacks {
		if s.ProjectID != projectID {
			continue
		}
		if s.FirstOccurrence.Before(start) || !s.FirstOccurrence.Before(end) {
			continue
		}
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].FirstOccurrence.After(all[j].FirstOccurrence) })
	total := int64(len(all))
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

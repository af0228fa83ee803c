package drafttracker

import (
	"context"
	"sync"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/drafttracker"
)

// Tracker is an in-memory implementation of drafttracker.Tracker.
// It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	clock clock.Clock
	m     map[domain.IdentityID]drafttracker.Marker
}

func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clock: clk,
		m:     make(map[domain.IdentityID]drafttracker.Marker),
	}
}

func (t *Tracker) RecordStep(ctx context.Context, id domain.IdentityID, step domain.Step, role domain.Role) error {
	_ = ctx
	if !step.Trackable() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.m[id]
	t.m[id] = drafttracker.Merge(prev, ok, id, step, role, t.clock.Now())
	return nil
}

func (t *Tracker) LastStep(ctx context.Context, id domain.IdentityID) (drafttracker.Marker, bool, error) {
	_ = ctx
	t.mu.RLock()
	defer t.mu.RUnlock()
	m, ok := t.m[id]
	return m, ok, nil
}

func (t *Tracker) Clear(ctx context.Context, id domain.IdentityID) error {
	_ = ctx
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, id)
	return nil
}

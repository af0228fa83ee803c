package onboarding

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// flights serializes transitions per identity. A second transition for an identity fails fast
// while one is running; identical Confirm calls share one execution.
type flights struct {
	mu   sync.Mutex
	busy map[domain.IdentityID]struct{}

	confirm singleflight.Group
}

func newFlights() *flights {
	return &flights{busy: make(map[domain.IdentityID]struct{})}
}

func (f *flights) acquire(id domain.IdentityID) (func(), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.busy[id]; ok {
		return nil, false
	}
	f.busy[id] = struct{}{}
	return func() {
		f.mu.Lock()
		delete(f.busy, id)
		f.mu.Unlock()
	}, true
}

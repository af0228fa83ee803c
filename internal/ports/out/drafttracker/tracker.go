package drafttracker

import (
	"context"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Marker is the advisory resume point for an identity.
type Marker struct {
	IdentityID domain.IdentityID
	// Step is the highest step validated for Role (1-4).
	Step      domain.Step
	Role      domain.Role
	UpdatedAt time.Time
}

// Tracker records the last validated onboarding step. It is never authoritative over the profile store.
type Tracker interface {
	// RecordStep keeps the higher of the stored and given step while the role is unchanged,
	// and resets to step when the role changes.
	RecordStep(ctx context.Context, id domain.IdentityID, step domain.Step, role domain.Role) error
	LastStep(ctx context.Context, id domain.IdentityID) (Marker, bool, error)
	Clear(ctx context.Context, id domain.IdentityID) error
}

// Merge applies the RecordStep rule to an existing marker.
func Merge(prev Marker, found bool, id domain.IdentityID, step domain.Step, role domain.Role, now time.Time) Marker {
	next := Marker{IdentityID: id, Step: step, Role: role, UpdatedAt: now}
	if found && prev.Role == role && prev.Step > step {
		next.Step = prev.Step
	}
	return next
}

package degradedstore

import (
	"context"
	"errors"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// ErrNotFound indicates no degraded record exists for the identity.
var ErrNotFound = errors.New("degraded record not found")

// Status is the reconciliation state of a degraded record.
type Status string

const (
	StatusPendingSync  Status = "pending_sync"
	StatusReconciled   Status = "reconciled"
	StatusNeedsSupport Status = "needs_support"
	// StatusSuperseded marks a payload the identity abandoned by retiring its role.
	StatusSuperseded Status = "superseded"
)

// Record is a full onboarding payload saved outside the primary store.
type Record struct {
	ID         string
	IdentityID domain.IdentityID
	Email      string

	Base      domain.BaseProfile
	Role      domain.Role
	Extension domain.Values

	Reason    string
	Status    Status
	Attempts  int
	LastError string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store keeps at most one record per identity; Put replaces any earlier record.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id domain.IdentityID) (Record, error)
	// ListPending returns pending_sync records ordered by UpdatedAt ascending.
	ListPending(ctx context.Context, limit int) ([]Record, error)
	MarkAttempt(ctx context.Context, id domain.IdentityID, lastErr string, status Status, at time.Time) error
	MarkReconciled(ctx context.Context, id domain.IdentityID, at time.Time) error
}

package profilestore

import (
	"context"
	"time"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// WriteOptions controls WriteExtensionDraft.
type WriteOptions struct {
	// ReplaceExisting retires an active extension of a different role before writing,
	// switches the base role and clears the completion flag.
	ReplaceExisting bool
}

// RetiredExtension is an archived extension kept after a role change.
type RetiredExtension struct {
	Extension domain.RoleExtension
	RetiredAt time.Time
}

// Store persists one base profile and at most one active role extension per identity.
//
// Writes are upserts keyed by identity ID. Only CommitCompletion may set BaseProfile.Completed.
type Store interface {
	ReadBase(ctx context.Context, id domain.IdentityID) (domain.BaseProfile, error)
	// ReadExtension returns ErrNotFound when no extension of role is active, including when a
	// different role's extension is.
	ReadExtension(ctx context.Context, id domain.IdentityID, role domain.Role) (domain.RoleExtension, error)
	ReadActiveExtension(ctx context.Context, id domain.IdentityID) (domain.RoleExtension, error)

	// WriteBaseDraft never modifies Completed. Changing the role while another role's
	// extension is active fails with ErrRoleConflict.
	WriteBaseDraft(ctx context.Context, base domain.BaseProfile) error
	// WriteExtensionDraft requires an existing base profile.
	WriteExtensionDraft(ctx context.Context, ext domain.RoleExtension, opts WriteOptions) error
	// RetireExtension archives the active extension of role and clears Completed.
	RetireExtension(ctx context.Context, id domain.IdentityID, role domain.Role) error
	ListRetired(ctx context.Context, id domain.IdentityID) ([]RetiredExtension, error)

	// CommitCompletion writes base and extension and sets Completed in one unit of work.
	// It re-checks base.Role == ext.Role() immediately before committing.
	CommitCompletion(ctx context.Context, base domain.BaseProfile, ext domain.RoleExtension) error
}

// PrivilegedCommitter is the secondary completion path used after an authorization failure.
// It re-asserts that owner owns the records before writing with elevated rights.
type PrivilegedCommitter interface {
	CommitCompletionPrivileged(ctx context.Context, owner domain.Identity, base domain.BaseProfile, ext domain.RoleExtension) error
}

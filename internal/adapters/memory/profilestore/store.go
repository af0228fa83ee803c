package profilestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

// Policy decides whether an unprivileged completion commit is allowed.
// Returning a non-nil error rejects the write; the store wraps it with ErrAuthorization.
type Policy func(ctx context.Context, base domain.BaseProfile) error

type Option func(*Store)

// WithCommitPolicy installs an access policy evaluated by CommitCompletion only.
func WithCommitPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// Store is an in-memory implementation of profilestore.Store and profilestore.PrivilegedCommitter.
// It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	clock clock.Clock

	policy Policy

	bases   map[domain.IdentityID]domain.BaseProfile
	exts    map[domain.IdentityID]domain.RoleExtension
	retired map[domain.IdentityID][]profilestore.RetiredExtension
}

func NewStore(clk clock.Clock, opts ...Option) *Store {
	s := &Store{
		clock:   clk,
		bases:   make(map[domain.IdentityID]domain.BaseProfile),
		exts:    make(map[domain.IdentityID]domain.RoleExtension),
		retired: make(map[domain.IdentityID][]profilestore.RetiredExtension),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ReadBase(ctx context.Context, id domain.IdentityID) (domain.BaseProfile, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bases[id]
	if !ok {
		return domain.BaseProfile{}, profilestore.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *Store) ReadExtension(ctx context.Context, id domain.IdentityID, role domain.Role) (domain.RoleExtension, error) {
	_ = ctx
	if !role.Valid() {
		return nil, domain.ErrUnknownRole
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ext, ok := s.exts[id]
	if !ok || ext.Role() != role {
		return nil, profilestore.ErrNotFound
	}
	return domain.CloneExtension(ext), nil
}

func (s *Store) ReadActiveExtension(ctx context.Context, id domain.IdentityID) (domain.RoleExtension, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	ext, ok := s.exts[id]
	if !ok {
		return nil, profilestore.ErrNotFound
	}
	return domain.CloneExtension(ext), nil
}

func (s *Store) WriteBaseDraft(ctx context.Context, base domain.BaseProfile) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if ext, ok := s.exts[base.IdentityID]; ok && ext.Role() != base.Role {
		return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, ext.Role())
	}

	now := s.clock.Now()
	next := base.Clone()
	next.Completed = false
	next.CompletedAt = nil
	next.CreatedAt = now
	if existing, ok := s.bases[base.IdentityID]; ok {
		next.Completed = existing.Completed
		next.CompletedAt = existing.CompletedAt
		next.CreatedAt = existing.CreatedAt
	}
	next.UpdatedAt = now
	s.bases[base.IdentityID] = next
	return nil
}

func (s *Store) WriteExtensionDraft(ctx context.Context, ext domain.RoleExtension, opts profilestore.WriteOptions) error {
	_ = ctx
	if ext == nil || !ext.Role().Valid() {
		return domain.ErrUnknownRole
	}
	id := ext.Owner()

	s.mu.Lock()
	defer s.mu.Unlock()

	base, ok := s.bases[id]
	if !ok {
		return profilestore.ErrNotFound
	}
	now := s.clock.Now()

	if cur, ok := s.exts[id]; ok && cur.Role() != ext.Role() {
		if !opts.ReplaceExisting {
			return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, cur.Role())
		}
		s.retireLocked(id, cur)
	}
	if base.Role != ext.Role() {
		base.Role = ext.Role()
		base.Completed = false
		base.CompletedAt = nil
	}
	base.UpdatedAt = now
	s.bases[id] = base
	s.exts[id] = domain.CloneExtension(ext)
	return nil
}

func (s *Store) RetireExtension(ctx context.Context, id domain.IdentityID, role domain.Role) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.exts[id]
	if !ok || cur.Role() != role {
		return profilestore.ErrNotFound
	}
	s.retireLocked(id, cur)
	if base, ok := s.bases[id]; ok {
		base.Completed = false
		base.CompletedAt = nil
		base.UpdatedAt = s.clock.Now()
		s.bases[id] = base
	}
	return nil
}

func (s *Store) ListRetired(ctx context.Context, id domain.IdentityID) ([]profilestore.RetiredExtension, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.retired[id]
	out := make([]profilestore.RetiredExtension, 0, len(src))
	for _, r := range src {
		out = append(out, profilestore.RetiredExtension{Extension: domain.CloneExtension(r.Extension), RetiredAt: r.RetiredAt})
	}
	return out, nil
}

func (s *Store) CommitCompletion(ctx context.Context, base domain.BaseProfile, ext domain.RoleExtension) error {
	if s.policy != nil {
		if err := s.policy(ctx, base); err != nil {
			return fmt.Errorf("%w: %v", profilestore.ErrAuthorization, err)
		}
	}
	return s.commit(base, ext)
}

// CommitCompletionPrivileged bypasses the commit policy after checking ownership.
func (s *Store) CommitCompletionPrivileged(ctx context.Context, owner domain.Identity, base domain.BaseProfile, ext domain.RoleExtension) error {
	_ = ctx
	if owner.ID == "" || owner.ID != base.IdentityID {
		return fmt.Errorf("%w: identity does not own profile", profilestore.ErrAuthorization)
	}
	return s.commit(base, ext)
}

func (s *Store) commit(base domain.BaseProfile, ext domain.RoleExtension) error {
	if ext == nil || base.Role != ext.Role() {
		return profilestore.ErrRoleMismatch
	}
	if ext.Owner() != base.IdentityID {
		return fmt.Errorf("%w: extension owner differs from base", profilestore.ErrRoleMismatch)
	}
	id := base.IdentityID

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.exts[id]; ok && cur.Role() != ext.Role() {
		return fmt.Errorf("%w: active extension is %s", profilestore.ErrRoleConflict, cur.Role())
	}

	now := s.clock.Now()
	next := base.Clone()
	next.CreatedAt = now
	next.CompletedAt = &now
	if existing, ok := s.bases[id]; ok {
		next.CreatedAt = existing.CreatedAt
		if existing.Completed && existing.CompletedAt != nil {
			at := *existing.CompletedAt
			next.CompletedAt = &at
		}
	}
	next.Completed = true
	next.UpdatedAt = now

	s.bases[id] = next
	s.exts[id] = domain.CloneExtension(ext)
	return nil
}

func (s *Store) retireLocked(id domain.IdentityID, cur domain.RoleExtension) {
	s.retired[id] = append(s.retired[id], profilestore.RetiredExtension{
		Extension: domain.CloneExtension(cur),
		RetiredAt: s.clock.Now(),
	})
	delete(s.exts, id)
}

package completion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/platform/logger"
	"github.com/directoryhub/onboarding-api/internal/platform/metrics"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

const defaultReconcileBatch = 50

type ReconcilerOptions struct {
	Privileged profilestore.PrivilegedCommitter
	// MaxAttempts flags a record needs_support once this many promotions have failed.
	MaxAttempts int
	BatchSize   int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Reconciler promotes pending_sync degraded records into the profile store.
type Reconciler struct {
	store       profilestore.Store
	privileged  profilestore.PrivilegedCommitter
	degraded    degradedstore.Store
	clock       clock.Clock
	log         *zap.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	batch       int
}

func NewReconciler(store profilestore.Store, degraded degradedstore.Store, clk clock.Clock, opts ReconcilerOptions) *Reconciler {
	r := &Reconciler{
		store:       store,
		privileged:  opts.Privileged,
		degraded:    degraded,
		clock:       clk,
		log:         logger.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		maxAttempts: opts.MaxAttempts,
		batch:       opts.BatchSize,
	}
	if r.maxAttempts < 1 {
		r.maxAttempts = 5
	}
	if r.batch < 1 {
		r.batch = defaultReconcileBatch
	}
	return r
}

// RetryIdentity attempts to promote the identity's pending record.
// It reports whether a record was promoted; no pending record is not an error.
func (r *Reconciler) RetryIdentity(ctx context.Context, id domain.IdentityID) (bool, error) {
	rec, err := r.degraded.Get(ctx, id)
	if err != nil {
		if errors.Is(err, degradedstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if rec.Status != degradedstore.StatusPendingSync {
		return false, nil
	}
	return r.promote(ctx, rec)
}

// Pending returns the identity's record when it is still waiting for sync.
func (r *Reconciler) Pending(ctx context.Context, id domain.IdentityID) (degradedstore.Record, bool, error) {
	rec, err := r.degraded.Get(ctx, id)
	if err != nil {
		if errors.Is(err, degradedstore.ErrNotFound) {
			return degradedstore.Record{}, false, nil
		}
		return degradedstore.Record{}, false, err
	}
	if rec.Status != degradedstore.StatusPendingSync {
		return degradedstore.Record{}, false, nil
	}
	return rec, true, nil
}

// Supersede withdraws the identity's pending record so it is never promoted.
// It reports whether a pending record existed.
func (r *Reconciler) Supersede(ctx context.Context, id domain.IdentityID, reason string) (bool, error) {
	rec, pending, err := r.Pending(ctx, id)
	if err != nil || !pending {
		return false, err
	}
	if err := r.degraded.MarkAttempt(ctx, id, reason, degradedstore.StatusSuperseded, r.clock.Now()); err != nil {
		return false, fmt.Errorf("mark superseded: %w", err)
	}
	r.log.Info("degraded record superseded",
		zap.String("identity_id", string(id)),
		zap.String("role", string(rec.Role)),
		zap.String("reason", reason))
	return true, nil
}

// RunOnce processes one batch of pending records, oldest first, and returns how many were promoted.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	recs, err := r.degraded.ListPending(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, rec := range recs {
		if ctx.Err() != nil {
			return promoted, ctx.Err()
		}
		ok, err := r.promote(ctx, rec)
		if err != nil {
			return promoted, err
		}
		if ok {
			promoted++
		}
	}
	if remaining, err := r.degraded.ListPending(ctx, r.batch); err == nil {
		r.metrics.SetDegradedPending(len(remaining))
	}
	return promoted, nil
}

// Run calls RunOnce every interval until ctx is done. A non-positive interval disables the loop.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := r.RunOnce(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("reconcile pass failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.log.Info("reconciled degraded profiles", zap.Int("promoted", n))
			}
		}
	}
}

func (r *Reconciler) promote(ctx context.Context, rec degradedstore.Record) (bool, error) {
	log := r.log.With(zap.String("identity_id", string(rec.IdentityID)), zap.String("role", string(rec.Role)))

	cur, err := r.store.ReadBase(ctx, rec.IdentityID)
	if err == nil {
		// A later completion through the primary store supersedes the saved payload.
		if cur.Completed && !cur.UpdatedAt.Before(rec.UpdatedAt) {
			log.Info("degraded record superseded by primary store")
			return false, r.degraded.MarkReconciled(ctx, rec.IdentityID, r.clock.Now())
		}
		// The identity moved to another role since the payload was saved.
		if cur.Role.Valid() && cur.Role != rec.Role {
			log.Info("degraded record superseded by role change", zap.String("current_role", string(cur.Role)))
			return false, r.degraded.MarkAttempt(ctx, rec.IdentityID, "role changed to "+string(cur.Role), degradedstore.StatusSuperseded, r.clock.Now())
		}
	}

	ext, err := domain.NewRoleExtension(rec.Role, rec.IdentityID, rec.Extension)
	if err != nil {
		return false, r.fail(ctx, log, rec, err, true)
	}
	base := rec.Base.Clone()
	base.Role = rec.Role

	err = r.store.CommitCompletion(ctx, base, ext)
	if errors.Is(err, profilestore.ErrAuthorization) && r.privileged != nil {
		err = r.privileged.CommitCompletionPrivileged(ctx, domain.Identity{ID: rec.IdentityID, Email: rec.Email}, base, ext)
	}
	if err != nil {
		permanent := errors.Is(err, profilestore.ErrRoleMismatch) || errors.Is(err, profilestore.ErrRoleConflict)
		return false, r.fail(ctx, log, rec, err, permanent)
	}

	if err := r.degraded.MarkReconciled(ctx, rec.IdentityID, r.clock.Now()); err != nil {
		return false, fmt.Errorf("mark reconciled: %w", err)
	}
	log.Info("degraded record promoted")
	return true, nil
}

func (r *Reconciler) fail(ctx context.Context, log *zap.Logger, rec degradedstore.Record, cause error, permanent bool) error {
	status := degradedstore.StatusPendingSync
	if permanent || rec.Attempts+1 >= r.maxAttempts {
		status = degradedstore.StatusNeedsSupport
	}
	if status == degradedstore.StatusNeedsSupport {
		log.Error("degraded record needs support", zap.Int("attempts", rec.Attempts+1), zap.Error(cause))
	} else {
		log.Warn("degraded record promotion failed", zap.Int("attempts", rec.Attempts+1), zap.Error(cause))
	}
	if err := r.degraded.MarkAttempt(ctx, rec.IdentityID, cause.Error(), status, r.clock.Now()); err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}
	return nil
}

package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/platform/logger"
	"github.com/directoryhub/onboarding-api/internal/platform/metrics"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

// Options configures the fallback tiers. A nil Privileged disables the secondary path;
// a nil Degraded store or DegradedEnabled=false disables degraded mode.
type Options struct {
	Privileged      profilestore.PrivilegedCommitter
	Degraded        degradedstore.Store
	DegradedEnabled bool

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Coordinator commits a validated onboarding payload through primary, privileged and degraded tiers.
type Coordinator struct {
	store      profilestore.Store
	privileged profilestore.PrivilegedCommitter
	degraded   degradedstore.Store
	clock      clock.Clock
	log        *zap.Logger
	metrics    *metrics.Metrics

	newRecordID func() string
}

func NewCoordinator(store profilestore.Store, clk clock.Clock, opts Options) *Coordinator {
	c := &Coordinator{
		store:       store,
		privileged:  opts.Privileged,
		clock:       clk,
		log:         logger.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		newRecordID: uuid.NewString,
	}
	if opts.DegradedEnabled {
		c.degraded = opts.Degraded
	}
	return c
}

// DegradedEnabled reports whether a degraded store is configured.
func (c *Coordinator) DegradedEnabled() bool { return c.degraded != nil }

// Complete runs the tiered commit:
//   - primary CommitCompletion; success ends here
//   - on an authorization failure only, the privileged path exactly once
//   - when both fail (or no privileged path exists) and degraded mode is on, a pending_sync record
//
// Anything else, including role mismatch or conflict, is a Failure.
func (c *Coordinator) Complete(ctx context.Context, owner domain.Identity, base domain.BaseProfile, ext domain.RoleExtension) Result {
	log := c.log.With(zap.String("identity_id", string(base.IdentityID)), zap.String("role", string(base.Role)))

	err := c.store.CommitCompletion(ctx, base, ext)
	if err == nil {
		return c.finish(log, Result{Outcome: OutcomeSuccess, Tier: TierPrimary})
	}
	if !errors.Is(err, profilestore.ErrAuthorization) {
		return c.finish(log, Result{Outcome: OutcomeFailure, Tier: TierPrimary, Reason: failureReason(err), Err: err})
	}
	log.Warn("primary completion rejected by access policy", zap.Error(err))

	reason := "primary write rejected by access policy"
	if c.privileged == nil {
		reason += "; privileged path unavailable"
	} else {
		c.metrics.ObserveFallback(string(TierPrivileged))
		perr := c.privileged.CommitCompletionPrivileged(ctx, owner, base, ext)
		if perr == nil {
			return c.finish(log, Result{Outcome: OutcomeSuccess, Tier: TierPrivileged, Reason: reason})
		}
		if !errors.Is(perr, profilestore.ErrAuthorization) && !errors.Is(perr, profilestore.ErrUnavailable) {
			return c.finish(log, Result{Outcome: OutcomeFailure, Tier: TierPrivileged, Reason: failureReason(perr), Err: perr})
		}
		log.Warn("privileged completion failed", zap.Error(perr))
		reason += "; privileged write failed"
		err = fmt.Errorf("%w; privileged: %w", err, perr)
	}

	if c.degraded == nil {
		return c.finish(log, Result{Outcome: OutcomeFailure, Tier: TierNone, Reason: reason, Err: fmt.Errorf("%w: %w", ErrDegradedDisabled, err)})
	}

	c.metrics.ObserveFallback(string(TierDegraded))
	now := c.clock.Now()
	rec := degradedstore.Record{
		ID:         c.newRecordID(),
		IdentityID: base.IdentityID,
		Email:      owner.Email,
		Base:       base.Clone(),
		Role:       ext.Role(),
		Extension:  ext.Values(),
		Reason:     reason,
		Status:     degradedstore.StatusPendingSync,
		LastError:  err.Error(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if derr := c.degraded.Put(ctx, rec); derr != nil {
		log.Error("degraded store write failed", zap.Error(derr))
		return c.finish(log, Result{Outcome: OutcomeFailure, Tier: TierDegraded, Reason: "degraded store write failed", Err: fmt.Errorf("%w; degraded: %w", err, derr)})
	}
	return c.finish(log, Result{Outcome: OutcomeDegraded, Tier: TierDegraded, Reason: reason, Err: err})
}

func (c *Coordinator) finish(log *zap.Logger, r Result) Result {
	c.metrics.ObserveCompletion(string(r.Outcome), string(r.Tier))
	fields := []zap.Field{zap.String("outcome", string(r.Outcome)), zap.String("tier", string(r.Tier))}
	switch r.Outcome {
	case OutcomeFailure:
		log.Warn("completion failed", append(fields, zap.String("reason", r.Reason), zap.Error(r.Err))...)
	case OutcomeDegraded:
		log.Warn("completion degraded", append(fields, zap.String("reason", r.Reason))...)
	default:
		log.Info("completion committed", fields...)
	}
	return r
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, profilestore.ErrRoleMismatch):
		return "role changed before completion"
	case errors.Is(err, profilestore.ErrRoleConflict):
		return "another role is already active"
	case errors.Is(err, profilestore.ErrUnavailable):
		return "profile store unavailable"
	case errors.Is(err, profilestore.ErrAuthorization):
		return "write rejected by access policy"
	default:
		return "profile store error"
	}
}

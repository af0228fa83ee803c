package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/platform/logger"
	"github.com/directoryhub/onboarding-api/internal/platform/metrics"
	"github.com/directoryhub/onboarding-api/internal/ports/out/clock"
	"github.com/directoryhub/onboarding-api/internal/ports/out/drafttracker"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
	"github.com/directoryhub/onboarding-api/internal/ports/out/routing"
)

// Options carries the optional collaborators. Nil values disable the feature.
type Options struct {
	Reconciler *completion.Reconciler
	Publisher  routing.Publisher
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Service is the onboarding step controller. It keeps no per-identity state of its own:
// every step is derived from the profile store, with the draft tracker as a hint.
type Service struct {
	registry    *schema.Registry
	store       profilestore.Store
	tracker     drafttracker.Tracker
	coordinator *completion.Coordinator
	projector   *Projector
	reconciler  *completion.Reconciler
	publisher   routing.Publisher
	clock       clock.Clock
	log         *zap.Logger
	metrics     *metrics.Metrics

	flights    *flights
	newEventID func() string
}

func NewService(registry *schema.Registry, store profilestore.Store, tracker drafttracker.Tracker, coordinator *completion.Coordinator, clk clock.Clock, opts Options) *Service {
	return &Service{
		registry:    registry,
		store:       store,
		tracker:     tracker,
		coordinator: coordinator,
		projector:   NewProjector(registry, store),
		reconciler:  opts.Reconciler,
		publisher:   opts.Publisher,
		clock:       clk,
		log:         logger.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		flights:     newFlights(),
		newEventID:  uuid.NewString,
	}
}

// Resume derives the identity's current step. Store contents always win over the tracker marker.
func (s *Service) Resume(ctx context.Context, who domain.Identity) (Session, error) {
	if s.reconciler != nil {
		if promoted, err := s.reconciler.RetryIdentity(ctx, who.ID); err != nil {
			s.log.Warn("retry degraded record on resume", zap.String("identity_id", string(who.ID)), zap.Error(err))
		} else if promoted {
			s.log.Info("degraded record promoted on resume", zap.String("identity_id", string(who.ID)))
		}
	}

	sess, err := s.derive(ctx, who.ID)
	if err != nil {
		return Session{}, err
	}
	s.syncTracker(ctx, sess)
	return sess, nil
}

// SelectRole is the RoleSelect → BasicInfo transition.
func (s *Service) SelectRole(ctx context.Context, who domain.Identity, rawRole string) (Session, error) {
	release, ok := s.flights.acquire(who.ID)
	if !ok {
		return Session{}, inProgress()
	}
	defer release()

	res, err := s.registry.ValidateStep(domain.StepRoleSelect, "", domain.Values{domain.FieldRole: rawRole})
	if err != nil {
		s.observe(domain.StepRoleSelect, "error")
		return Session{}, unknownRole(rawRole, err)
	}
	if !res.OK {
		s.observe(domain.StepRoleSelect, "invalid")
		return Session{IdentityID: who.ID, Step: domain.StepRoleSelect, FieldErrors: res.FieldErrors}, nil
	}
	role := domain.Role(res.Values.String(domain.FieldRole))

	base, err := s.store.ReadBase(ctx, who.ID)
	switch {
	case err == nil:
	case isNotFound(err):
		base = domain.BaseProfile{IdentityID: who.ID}
	default:
		return Session{}, storeError(err)
	}

	active, err := s.store.ReadActiveExtension(ctx, who.ID)
	if err != nil && !isNotFound(err) {
		return Session{}, storeError(err)
	}

	sess := Session{
		IdentityID: who.ID,
		Step:       domain.StepBasicInfo,
		Role:       role,
		Base:       base.Values(),
		Completed:  base.Completed,
	}
	marker := role
	if active != nil && active.Role() != role {
		// The stored role stays until the caller retires the old extension.
		sess.RoleChanged = &RoleChange{From: active.Role(), To: role}
		marker = active.Role()
	} else {
		base.Role = role
		if err := s.store.WriteBaseDraft(ctx, base); err != nil {
			s.observe(domain.StepRoleSelect, "error")
			return Session{}, storeError(err)
		}
		if active != nil {
			sess.Extension = active.Values()
		}
	}
	s.record(ctx, who.ID, domain.StepRoleSelect, marker)
	s.observe(domain.StepRoleSelect, "ok")
	return sess, nil
}

// SubmitBasicInfo is the BasicInfo → RoleDetails transition.
func (s *Service) SubmitBasicInfo(ctx context.Context, who domain.Identity, values domain.Values) (Session, error) {
	release, ok := s.flights.acquire(who.ID)
	if !ok {
		return Session{}, inProgress()
	}
	defer release()

	base, err := s.store.ReadBase(ctx, who.ID)
	if err != nil {
		if isNotFound(err) {
			return Session{}, outOfOrder(domain.StepRoleSelect, "select a role first")
		}
		return Session{}, storeError(err)
	}
	if !base.Role.Valid() {
		return Session{}, outOfOrder(domain.StepRoleSelect, "select a role first")
	}

	res, err := s.registry.ValidateStep(domain.StepBasicInfo, base.Role, values)
	if err != nil {
		return Session{}, storeError(err)
	}
	if !res.OK {
		s.observe(domain.StepBasicInfo, "invalid")
		return Session{
			IdentityID:  who.ID,
			Step:        domain.StepBasicInfo,
			Role:        base.Role,
			Base:        values.Clone(),
			Completed:   base.Completed,
			FieldErrors: res.FieldErrors,
		}, nil
	}

	base.ApplyValues(res.Values)
	if err := s.store.WriteBaseDraft(ctx, base); err != nil {
		s.observe(domain.StepBasicInfo, "error")
		return Session{}, storeError(err)
	}
	s.record(ctx, who.ID, domain.StepBasicInfo, base.Role)
	s.observe(domain.StepBasicInfo, "ok")

	sess := Session{
		IdentityID: who.ID,
		Step:       domain.StepRoleDetails,
		Role:       base.Role,
		Base:       base.Values(),
		Completed:  base.Completed,
	}
	if ext, err := s.store.ReadExtension(ctx, who.ID, base.Role); err == nil {
		sess.Extension = ext.Values()
	}
	return sess, nil
}

// SubmitRoleDetails is the RoleDetails → Review transition. It requires a valid stored base profile.
func (s *Service) SubmitRoleDetails(ctx context.Context, who domain.Identity, in RoleDetailsInput) (Session, error) {
	release, ok := s.flights.acquire(who.ID)
	if !ok {
		return Session{}, inProgress()
	}
	defer release()

	base, err := s.store.ReadBase(ctx, who.ID)
	if err != nil {
		if isNotFound(err) {
			return Session{}, outOfOrder(domain.StepBasicInfo, "basic info must be saved first")
		}
		return Session{}, storeError(err)
	}
	if check, err := s.registry.ValidateStep(domain.StepBasicInfo, base.Role, base.Values()); err != nil || !check.OK {
		return Session{}, outOfOrder(domain.StepBasicInfo, "basic info must be saved first")
	}

	role := in.Role
	if role == "" {
		role = base.Role
	}
	if !role.Valid() {
		return Session{}, unknownRole(string(role), domain.ErrUnknownRole)
	}

	res, err := s.registry.ValidateStep(domain.StepRoleDetails, role, in.Values)
	if err != nil {
		return Session{}, unknownRole(string(role), err)
	}
	if !res.OK {
		s.observe(domain.StepRoleDetails, "invalid")
		return Session{
			IdentityID:  who.ID,
			Step:        domain.StepRoleDetails,
			Role:        role,
			Base:        base.Values(),
			Extension:   in.Values.Clone(),
			Completed:   base.Completed,
			FieldErrors: res.FieldErrors,
		}, nil
	}

	ext, err := domain.NewRoleExtension(role, who.ID, res.Values)
	if err != nil {
		return Session{}, unknownRole(string(role), err)
	}
	if err := s.store.WriteExtensionDraft(ctx, ext, profilestore.WriteOptions{ReplaceExisting: in.RetirePrevious}); err != nil {
		s.observe(domain.StepRoleDetails, "error")
		return Session{}, storeError(err)
	}
	if in.RetirePrevious {
		s.supersedePending(ctx, who.ID, role)
	}
	s.record(ctx, who.ID, domain.StepRoleDetails, role)
	s.observe(domain.StepRoleDetails, "ok")

	// Re-read: a role switch clears the completion flag.
	if fresh, err := s.store.ReadBase(ctx, who.ID); err == nil {
		base = fresh
	}
	return Session{
		IdentityID: who.ID,
		Step:       domain.StepReview,
		Role:       role,
		Base:       base.Values(),
		Extension:  ext.Values(),
		Completed:  base.Completed,
	}, nil
}

// Back moves one step backwards without validating or touching stored drafts.
func (s *Service) Back(ctx context.Context, who domain.Identity, from domain.Step) (Session, error) {
	switch from {
	case domain.StepBasicInfo, domain.StepRoleDetails, domain.StepReview:
	default:
		return Session{}, outOfOrder(from, fmt.Sprintf("cannot go back from %s", from))
	}
	sess, err := s.derive(ctx, who.ID)
	if err != nil {
		return Session{}, err
	}
	// A completed profile may be revisited from any step; otherwise from cannot be ahead of the identity.
	if sess.Step != domain.StepComplete && from > sess.Step {
		return Session{}, outOfOrder(sess.Step, fmt.Sprintf("cannot go back from %s while at %s", from, sess.Step))
	}
	sess.Step = from.Prev()
	sess.EditMode = sess.Completed
	s.observe(from, "back")
	return sess, nil
}

// Review returns the review summary for the stored drafts.
func (s *Service) Review(ctx context.Context, who domain.Identity) (ReviewView, error) {
	sess, err := s.derive(ctx, who.ID)
	if err != nil {
		return ReviewView{}, err
	}
	if sess.Step < domain.StepReview {
		return ReviewView{}, outOfOrder(sess.Step, "complete the earlier steps before reviewing")
	}
	entries, err := s.projector.Project(ctx, who.ID)
	if err != nil {
		return ReviewView{}, storeError(err)
	}
	return ReviewView{Step: sess.Step, Role: sess.Role, Completed: sess.Completed, Entries: entries}, nil
}

// Confirm is the Review → Complete transition. Concurrent calls for the same identity share
// one execution and its result.
func (s *Service) Confirm(ctx context.Context, who domain.Identity) (CompletionResult, error) {
	v, err, _ := s.flights.confirm.Do(string(who.ID), func() (any, error) {
		release, ok := s.flights.acquire(who.ID)
		if !ok {
			return CompletionResult{}, inProgress()
		}
		defer release()
		return s.confirm(ctx, who)
	})
	if err != nil {
		return CompletionResult{}, err
	}
	return v.(CompletionResult), nil
}

func (s *Service) confirm(ctx context.Context, who domain.Identity) (CompletionResult, error) {
	base, err := s.store.ReadBase(ctx, who.ID)
	if err != nil {
		if isNotFound(err) {
			return CompletionResult{}, outOfOrder(domain.StepRoleSelect, "nothing to confirm yet")
		}
		return CompletionResult{}, storeError(err)
	}
	ext, err := s.store.ReadExtension(ctx, who.ID, base.Role)
	if err != nil {
		if isNotFound(err) {
			return CompletionResult{}, outOfOrder(domain.StepRoleDetails, "role details must be saved first")
		}
		return CompletionResult{}, storeError(err)
	}

	// Re-validate the stored drafts rather than trusting whatever was staged earlier.
	res, err := s.registry.ValidateStep(domain.StepReview, base.Role, base.Values().Merge(ext.Values()))
	if err != nil {
		return CompletionResult{}, storeError(err)
	}
	if !res.OK {
		s.observe(domain.StepReview, "invalid")
		return CompletionResult{
			Outcome:     completion.OutcomeFailure,
			Tier:        completion.TierNone,
			Step:        domain.StepReview,
			Role:        base.Role,
			Message:     completion.MessageFailure,
			Reason:      "saved details are incomplete",
			FieldErrors: res.FieldErrors,
		}, nil
	}

	final := base.Clone()
	final.ApplyValues(res.Values)
	finalExt, err := domain.NewRoleExtension(base.Role, who.ID, res.Values)
	if err != nil {
		return CompletionResult{}, storeError(err)
	}

	r := s.coordinator.Complete(ctx, who, final, finalExt)
	out := CompletionResult{
		Outcome: r.Outcome,
		Tier:    r.Tier,
		Step:    domain.StepReview,
		Role:    base.Role,
		Message: r.Message(),
		Reason:  r.Reason,
	}
	if !r.Succeeded() {
		out.Err = r.Err
		s.observe(domain.StepReview, "failed")
		return out, nil
	}

	out.Step = domain.StepComplete
	s.observe(domain.StepReview, "ok")
	if err := s.tracker.Clear(ctx, who.ID); err != nil {
		s.log.Warn("clear draft marker", zap.String("identity_id", string(who.ID)), zap.Error(err))
	}
	s.publish(ctx, who.ID, base.Role, r.Outcome)
	return out, nil
}

// BeginEdit re-enters a completed profile at BasicInfo. Edits keep the completion flag unless the role changes.
func (s *Service) BeginEdit(ctx context.Context, who domain.Identity) (Session, error) {
	sess, err := s.derive(ctx, who.ID)
	if err != nil {
		return Session{}, err
	}
	if !sess.Completed {
		if sess.Step == domain.StepRoleSelect {
			return Session{}, &Error{Status: 404, Code: CodeProfileNotFound, Message: "profile not found"}
		}
		return sess, nil
	}
	sess.Step = domain.StepBasicInfo
	sess.EditMode = true
	return sess, nil
}

// RetireRole archives the active extension of role. The identity returns to RoleDetails.
func (s *Service) RetireRole(ctx context.Context, who domain.Identity, rawRole string) (Session, error) {
	release, ok := s.flights.acquire(who.ID)
	if !ok {
		return Session{}, inProgress()
	}
	defer release()

	role, err := domain.ParseRole(rawRole)
	if err != nil {
		return Session{}, unknownRole(rawRole, err)
	}
	if err := s.store.RetireExtension(ctx, who.ID, role); err != nil {
		return Session{}, storeError(err)
	}
	s.supersedePending(ctx, who.ID, "")
	if err := s.tracker.Clear(ctx, who.ID); err != nil {
		s.log.Warn("clear draft marker", zap.String("identity_id", string(who.ID)), zap.Error(err))
	}
	s.log.Info("role extension retired", zap.String("identity_id", string(who.ID)), zap.String("role", string(role)))
	return s.derive(ctx, who.ID)
}

// Status reports whether the identity's profile is complete. A degraded completion counts,
// flagged as pending sync.
func (s *Service) Status(ctx context.Context, who domain.Identity) (ProfileStatus, error) {
	var st ProfileStatus
	base, err := s.store.ReadBase(ctx, who.ID)
	switch {
	case err == nil:
		st.IsProfileComplete = base.Completed
		st.Role = base.Role
	case !isNotFound(err):
		return ProfileStatus{}, storeError(err)
	}
	if !st.IsProfileComplete && s.reconciler != nil {
		rec, pending, err := s.reconciler.Pending(ctx, who.ID)
		if err != nil {
			return ProfileStatus{}, degradedError(err)
		}
		if pending {
			st.IsProfileComplete = true
			st.PendingSync = true
			st.Role = rec.Role
		}
	}
	return st, nil
}

// derive computes the authoritative step from the store.
func (s *Service) derive(ctx context.Context, id domain.IdentityID) (Session, error) {
	sess := Session{IdentityID: id, Step: domain.StepRoleSelect}

	base, err := s.store.ReadBase(ctx, id)
	if err != nil {
		if !isNotFound(err) {
			return Session{}, storeError(err)
		}
		if m, ok, terr := s.tracker.LastStep(ctx, id); terr == nil && ok {
			sess.Role = m.Role
		}
		return s.withPending(ctx, sess)
	}

	sess.Role = base.Role
	sess.Base = base.Values()
	sess.Completed = base.Completed

	var ext domain.RoleExtension
	if base.Role.Valid() {
		ext, err = s.store.ReadExtension(ctx, id, base.Role)
		switch {
		case err == nil:
			sess.Extension = ext.Values()
		case !isNotFound(err):
			return Session{}, storeError(err)
		}
	}

	switch {
	case base.Completed:
		sess.Step = domain.StepComplete
		return sess, nil
	case !base.Role.Valid():
		sess.Step = domain.StepRoleSelect
	case !s.valid(domain.StepBasicInfo, base.Role, sess.Base):
		sess.Step = domain.StepBasicInfo
	case ext == nil || !s.valid(domain.StepRoleDetails, base.Role, sess.Extension):
		sess.Step = domain.StepRoleDetails
	default:
		sess.Step = domain.StepReview
	}
	return s.withPending(ctx, sess)
}

// withPending reports a degraded completion still waiting for sync as Complete.
func (s *Service) withPending(ctx context.Context, sess Session) (Session, error) {
	if s.reconciler == nil {
		return sess, nil
	}
	rec, pending, err := s.reconciler.Pending(ctx, sess.IdentityID)
	if err != nil {
		s.log.Warn("read degraded record", zap.String("identity_id", string(sess.IdentityID)), zap.Error(err))
		return sess, nil
	}
	if pending {
		sess.Step = domain.StepComplete
		sess.PendingSync = true
		sess.Role = rec.Role
		if sess.Base == nil {
			sess.Base = rec.Base.Values()
		}
		if sess.Extension == nil {
			sess.Extension = rec.Extension.Clone()
		}
	}
	return sess, nil
}

// supersedePending withdraws a pending degraded record after a role retirement so it cannot
// reinstate the retired extension. keep names a role whose record stays pending.
func (s *Service) supersedePending(ctx context.Context, id domain.IdentityID, keep domain.Role) {
	if s.reconciler == nil {
		return
	}
	rec, pending, err := s.reconciler.Pending(ctx, id)
	if err != nil {
		s.log.Warn("read degraded record", zap.String("identity_id", string(id)), zap.Error(err))
		return
	}
	if !pending || (keep != "" && rec.Role == keep) {
		return
	}
	if _, err := s.reconciler.Supersede(ctx, id, "role "+string(rec.Role)+" retired"); err != nil {
		s.log.Warn("supersede degraded record", zap.String("identity_id", string(id)), zap.Error(err))
	}
}

func (s *Service) valid(step domain.Step, role domain.Role, v domain.Values) bool {
	res, err := s.registry.ValidateStep(step, role, v)
	return err == nil && res.OK
}

// syncTracker rewrites a marker that disagrees with the derived step.
func (s *Service) syncTracker(ctx context.Context, sess Session) {
	m, ok, err := s.tracker.LastStep(ctx, sess.IdentityID)
	if err != nil {
		s.log.Warn("read draft marker", zap.String("identity_id", string(sess.IdentityID)), zap.Error(err))
		return
	}
	if sess.Step == domain.StepComplete {
		if ok {
			_ = s.tracker.Clear(ctx, sess.IdentityID)
		}
		return
	}
	// The marker stores the highest validated step, one behind the step the identity is on.
	validated := sess.Step.Prev()
	if sess.Step == domain.StepRoleSelect || !validated.Trackable() {
		return
	}
	if ok && m.Step == validated && m.Role == sess.Role {
		return
	}
	if ok {
		s.log.Debug("resyncing stale draft marker",
			zap.String("identity_id", string(sess.IdentityID)),
			zap.String("step", m.Step.String()),
			zap.String("role", string(m.Role)))
		if err := s.tracker.Clear(ctx, sess.IdentityID); err != nil {
			return
		}
	}
	s.record(ctx, sess.IdentityID, validated, sess.Role)
}

func (s *Service) record(ctx context.Context, id domain.IdentityID, step domain.Step, role domain.Role) {
	if err := s.tracker.RecordStep(ctx, id, step, role); err != nil {
		s.log.Warn("record draft marker", zap.String("identity_id", string(id)), zap.String("step", step.String()), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, id domain.IdentityID, role domain.Role, outcome completion.Outcome) {
	if s.publisher == nil {
		return
	}
	evt := routing.CompletionEvent{
		EventID:    s.newEventID(),
		IdentityID: id,
		Role:       role,
		Outcome:    routing.OutcomeSuccess,
		OccurredAt: s.clock.Now(),
	}
	if outcome == completion.OutcomeDegraded {
		evt.Outcome = routing.OutcomeDegraded
	}
	if err := s.publisher.PublishCompletion(ctx, evt); err != nil {
		s.log.Error("publish completion event", zap.String("identity_id", string(id)), zap.String("role", string(role)), zap.Error(err))
	}
}

func (s *Service) observe(step domain.Step, result string) {
	s.metrics.ObserveTransition(step.String(), result)
}

func isNotFound(err error) bool {
	return errors.Is(err, profilestore.ErrNotFound)
}

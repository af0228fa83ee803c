package onboarding_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memclock "github.com/directoryhub/onboarding-api/internal/adapters/memory/clock"
	memdegraded "github.com/directoryhub/onboarding-api/internal/adapters/memory/degradedstore"
	memdrafttracker "github.com/directoryhub/onboarding-api/internal/adapters/memory/drafttracker"
	memprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/memory/profilestore"
	memrouting "github.com/directoryhub/onboarding-api/internal/adapters/memory/routing"
	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

var errPolicyGap = errors.New("policy evaluation gap")

type harnessConfig struct {
	policy          memprofilestore.Policy
	degradedEnabled bool
	wrap            func(*memprofilestore.Store) profilestore.Store
}

type harness struct {
	clk      *memclock.ManualClock
	mem      *memprofilestore.Store
	store    profilestore.Store
	tracker  *memdrafttracker.Tracker
	degraded *memdegraded.Store
	pub      *memrouting.Publisher
	svc      *onboarding.Service
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	clk := memclock.NewManualClock(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC))
	var opts []memprofilestore.Option
	if cfg.policy != nil {
		opts = append(opts, memprofilestore.WithCommitPolicy(cfg.policy))
	}
	mem := memprofilestore.NewStore(clk, opts...)
	var store profilestore.Store = mem
	if cfg.wrap != nil {
		store = cfg.wrap(mem)
	}
	tracker := memdrafttracker.NewTracker(clk)
	degraded := memdegraded.NewStore()
	pub := memrouting.NewPublisher()

	coord := completion.NewCoordinator(store, clk, completion.Options{
		Degraded:        degraded,
		DegradedEnabled: cfg.degradedEnabled,
	})
	rec := completion.NewReconciler(store, degraded, clk, completion.ReconcilerOptions{MaxAttempts: 3})
	svc := onboarding.NewService(schema.NewRegistry(), store, tracker, coord, clk, onboarding.Options{
		Reconciler: rec,
		Publisher:  pub,
	})
	return &harness{clk: clk, mem: mem, store: store, tracker: tracker, degraded: degraded, pub: pub, svc: svc}
}

func identity(id string) domain.Identity {
	return domain.Identity{ID: domain.IdentityID(id), Email: id + "@example.com"}
}

func basicInfo(name string) domain.Values {
	return domain.Values{
		domain.FieldFullName: name,
		domain.FieldCountry:  "Zambia",
		domain.FieldCity:     "Lusaka",
		domain.FieldBio:      "Building things that last.",
	}
}

func businessDetails() domain.Values {
	return domain.Values{
		domain.FieldBusinessName: "Jane Co",
		domain.FieldIndustry:     "Agriculture",
		domain.FieldStage:        "Early stage",
	}
}

func professionalDetails() domain.Values {
	return domain.Values{
		domain.FieldProfessionalTitle: "Agronomist",
		domain.FieldPrimarySkills:     []string{"soil analysis", "irrigation"},
		domain.FieldExperienceLevel:   "senior",
	}
}

func capitalDetails() domain.Values {
	return domain.Values{
		domain.FieldProviderType:    "impact_fund",
		domain.FieldTicketSizeRange: "$50k - $250k",
		domain.FieldStageFocus:      "seed, series a",
		domain.FieldSectorFocus:     []any{"agriculture"},
	}
}

// onboard drives an identity from RoleSelect to Review.
func onboard(t *testing.T, h *harness, who domain.Identity, role domain.Role, details domain.Values) {
	t.Helper()
	ctx := context.Background()

	sess, err := h.svc.SelectRole(ctx, who, string(role))
	require.NoError(t, err)
	require.Equal(t, domain.StepBasicInfo, sess.Step)

	sess, err = h.svc.SubmitBasicInfo(ctx, who, basicInfo("Jane Doe"))
	require.NoError(t, err)
	require.Empty(t, sess.FieldErrors)
	require.Equal(t, domain.StepRoleDetails, sess.Step)

	sess, err = h.svc.SubmitRoleDetails(ctx, who, onboarding.RoleDetailsInput{Values: details})
	require.NoError(t, err)
	require.Empty(t, sess.FieldErrors)
	require.Equal(t, domain.StepReview, sess.Step)
}

func requireAppError(t *testing.T, err error, code string) *onboarding.Error {
	t.Helper()
	var appErr *onboarding.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	return appErr
}

// blockingStore holds CommitCompletion until release is closed.
type blockingStore struct {
	*memprofilestore.Store
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingStore) CommitCompletion(ctx context.Context, base domain.BaseProfile, ext domain.RoleExtension) error {
	if b.calls.Add(1) == 1 {
		close(b.entered)
	}
	<-b.release
	return b.Store.CommitCompletion(ctx, base, ext)
}

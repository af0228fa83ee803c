package profilestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/directoryhub/onboarding-api/internal/adapters/contracttest"
	memclock "github.com/directoryhub/onboarding-api/internal/adapters/memory/clock"
	"github.com/directoryhub/onboarding-api/internal/adapters/postgres/testutil"
	"github.com/directoryhub/onboarding-api/internal/domain"
	profilestoreport "github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

func TestContract_PostgresProfileStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())

	contracttest.RunProfileStore(t, func(t *testing.T) (contracttest.ProfileStore, func()) {
		t.Helper()
		return NewStore(pool, clk, Options{PrimaryRole: "onboarding_app"}), nil
	})
}

func TestStore_RowSecurityRejectionMapsToAuthorization(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)
	ctx := context.Background()

	// A role with read-only grants makes every unprivileged write fail the access policy.
	if _, err := pool.Exec(ctx, `
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = 'onboarding_readonly') THEN
				CREATE ROLE onboarding_readonly NOLOGIN;
			END IF;
		END
		$$;
	`); err != nil {
		t.Fatalf("create role: %v", err)
	}
	if _, err := pool.Exec(ctx, `GRANT onboarding_readonly TO CURRENT_USER`); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	if _, err := pool.Exec(ctx, `GRANT SELECT ON base_profiles, role_claims, business_profiles TO onboarding_readonly`); err != nil {
		t.Fatalf("grant select: %v", err)
	}

	clk := memclock.NewManualClock(time.Unix(1000, 0).UTC())
	store := NewStore(pool, clk, Options{PrimaryRole: "onboarding_readonly"})

	id := domain.IdentityID("id-" + uuid.NewString())
	base := domain.BaseProfile{IdentityID: id, Role: domain.RoleBusiness, FullName: "Jane Doe", DisplayName: "Jane Doe"}
	ext := &domain.BusinessProfile{IdentityID: id, BusinessName: "Jane Co", Industry: "Agriculture", Stage: "early_stage"}

	err := store.CommitCompletion(ctx, base, ext)
	if !errors.Is(err, profilestoreport.ErrAuthorization) {
		t.Fatalf("CommitCompletion err=%v, want ErrAuthorization", err)
	}
	if _, err := store.ReadBase(ctx, id); !errors.Is(err, profilestoreport.ErrNotFound) {
		t.Fatalf("rejected commit left a row: err=%v", err)
	}

	if err := store.CommitCompletionPrivileged(ctx, domain.Identity{ID: id}, base, ext); err != nil {
		t.Fatalf("CommitCompletionPrivileged: %v", err)
	}
	got, err := store.ReadBase(ctx, id)
	if err != nil || !got.Completed {
		t.Fatalf("ReadBase=%+v err=%v, want completed", got, err)
	}
}

func TestStore_UnreachableDatabaseMapsToUnavailable(t *testing.T) {
	t.Parallel()

	err := classify(context.DeadlineExceeded)
	if !errors.Is(err, profilestoreport.ErrUnavailable) {
		t.Fatalf("classify(deadline)=%v, want ErrUnavailable", err)
	}
	if got := classify(profilestoreport.ErrRoleConflict); !errors.Is(got, profilestoreport.ErrRoleConflict) {
		t.Fatalf("classify passthrough=%v", got)
	}
}

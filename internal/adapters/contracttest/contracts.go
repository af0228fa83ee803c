package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/directoryhub/onboarding-api/internal/domain"
	degradedstoreport "github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
	drafttrackerport "github.com/directoryhub/onboarding-api/internal/ports/out/drafttracker"
	idempotencyport "github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
	profilestoreport "github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

type CleanupFunc = func()

// ProfileStore is the combined surface every profile store adapter provides.
type ProfileStore interface {
	profilestoreport.Store
	profilestoreport.PrivilegedCommitter
}

type ProfileStoreFactory func(t *testing.T) (ProfileStore, CleanupFunc)
type DraftTrackerFactory func(t *testing.T) (drafttrackerport.Tracker, CleanupFunc)
type DegradedStoreFactory func(t *testing.T) (degradedstoreport.Store, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Identity: domain.IdentityID("id-" + uuid.NewString()),
		Method:   "POST",
		Route:    "/onboarding/complete",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  200,
		ContentType: "application/json",
		Body:        []byte(`{"outcome":"success"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"outcome":"success"}` || got.ContentType != "application/json" || got.StatusCode != 200 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"outcome":"degraded"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"outcome":"degraded"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func newIdentity() domain.IdentityID {
	return domain.IdentityID("id-" + uuid.NewString())
}

func baseDraft(id domain.IdentityID, role domain.Role, fullName string) domain.BaseProfile {
	site := "https://example.com"
	return domain.BaseProfile{
		IdentityID:  id,
		Role:        role,
		DisplayName: fullName,
		FullName:    fullName,
		Country:     "Zambia",
		City:        "Lusaka",
		Bio:         "Builds things.",
		WebsiteURL:  &site,
	}
}

func RunProfileStore(t *testing.T, newStore ProfileStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t.Run("not found", func(t *testing.T) {
		id := newIdentity()
		if _, err := store.ReadBase(ctx, id); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("ReadBase err=%v, want ErrNotFound", err)
		}
		if _, err := store.ReadExtension(ctx, id, domain.RoleBusiness); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("ReadExtension err=%v, want ErrNotFound", err)
		}
		if _, err := store.ReadActiveExtension(ctx, id); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("ReadActiveExtension err=%v, want ErrNotFound", err)
		}
		ext := &domain.BusinessProfile{IdentityID: id, BusinessName: "Orphan"}
		if err := store.WriteExtensionDraft(ctx, ext, profilestoreport.WriteOptions{}); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("WriteExtensionDraft without base err=%v, want ErrNotFound", err)
		}
	})

	t.Run("base upsert is idempotent and keeps later values", func(t *testing.T) {
		id := newIdentity()
		if err := store.WriteBaseDraft(ctx, baseDraft(id, domain.RoleBusiness, "Jane Doe")); err != nil {
			t.Fatalf("WriteBaseDraft 1: %v", err)
		}
		if err := store.WriteBaseDraft(ctx, baseDraft(id, domain.RoleBusiness, "Jane Doe")); err != nil {
			t.Fatalf("WriteBaseDraft 2: %v", err)
		}
		later := baseDraft(id, domain.RoleBusiness, "Jane M. Doe")
		later.WebsiteURL = nil
		later.Completed = true
		if err := store.WriteBaseDraft(ctx, later); err != nil {
			t.Fatalf("WriteBaseDraft 3: %v", err)
		}
		got, err := store.ReadBase(ctx, id)
		if err != nil {
			t.Fatalf("ReadBase: %v", err)
		}
		if got.FullName != "Jane M. Doe" || got.WebsiteURL != nil || got.Country != "Zambia" {
			t.Fatalf("unexpected base: %+v", got)
		}
		if got.Completed {
			t.Fatalf("WriteBaseDraft must not set Completed")
		}
	})

	t.Run("single active extension", func(t *testing.T) {
		id := newIdentity()
		if err := store.WriteBaseDraft(ctx, baseDraft(id, domain.RoleBusiness, "Jane Doe")); err != nil {
			t.Fatalf("WriteBaseDraft: %v", err)
		}
		biz := &domain.BusinessProfile{IdentityID: id, BusinessName: "Jane Co", Industry: "Agriculture", Sectors: []string{"Agritech"}}
		if err := store.WriteExtensionDraft(ctx, biz, profilestoreport.WriteOptions{}); err != nil {
			t.Fatalf("WriteExtensionDraft: %v", err)
		}
		biz.BusinessName = "Jane Co Ltd"
		if err := store.WriteExtensionDraft(ctx, biz, profilestoreport.WriteOptions{}); err != nil {
			t.Fatalf("WriteExtensionDraft again: %v", err)
		}

		pro := &domain.ProfessionalProfile{IdentityID: id, ProfessionalTitle: "Agronomist"}
		if err := store.WriteExtensionDraft(ctx, pro, profilestoreport.WriteOptions{}); !errors.Is(err, profilestoreport.ErrRoleConflict) {
			t.Fatalf("second role err=%v, want ErrRoleConflict", err)
		}
		roleSwitch := baseDraft(id, domain.RoleProfessional, "Jane Doe")
		if err := store.WriteBaseDraft(ctx, roleSwitch); !errors.Is(err, profilestoreport.ErrRoleConflict) {
			t.Fatalf("base role switch err=%v, want ErrRoleConflict", err)
		}

		got, err := store.ReadExtension(ctx, id, domain.RoleBusiness)
		if err != nil {
			t.Fatalf("ReadExtension: %v", err)
		}
		gotBiz, ok := got.(*domain.BusinessProfile)
		if !ok || gotBiz.BusinessName != "Jane Co Ltd" || len(gotBiz.Sectors) != 1 {
			t.Fatalf("unexpected extension: %#v", got)
		}
		if _, err := store.ReadExtension(ctx, id, domain.RoleProfessional); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("ReadExtension other role err=%v, want ErrNotFound", err)
		}
	})

	t.Run("commit completion", func(t *testing.T) {
		id := newIdentity()
		base := baseDraft(id, domain.RoleBusiness, "Jane Doe")
		if err := store.WriteBaseDraft(ctx, base); err != nil {
			t.Fatalf("WriteBaseDraft: %v", err)
		}
		biz := &domain.BusinessProfile{IdentityID: id, BusinessName: "Jane Co", Industry: "Agriculture", FundingNeeded: true, FundingRange: "10k_50k"}

		mismatched := base
		mismatched.Role = domain.RoleInstitution
		if err := store.CommitCompletion(ctx, mismatched, biz); !errors.Is(err, profilestoreport.ErrRoleMismatch) {
			t.Fatalf("mismatched commit err=%v, want ErrRoleMismatch", err)
		}
		if err := store.CommitCompletion(ctx, base, biz); err != nil {
			t.Fatalf("CommitCompletion: %v", err)
		}
		got, err := store.ReadBase(ctx, id)
		if err != nil || !got.Completed || got.CompletedAt == nil || got.Role != domain.RoleBusiness {
			t.Fatalf("ReadBase after commit=%+v err=%v", got, err)
		}
		ext, err := store.ReadActiveExtension(ctx, id)
		if err != nil || ext.Role() != domain.RoleBusiness || !ext.(*domain.BusinessProfile).FundingNeeded {
			t.Fatalf("ReadActiveExtension=%#v err=%v", ext, err)
		}

		// Draft writes in edit mode keep the flag.
		edited := base
		edited.Bio = "Edited bio."
		if err := store.WriteBaseDraft(ctx, edited); err != nil {
			t.Fatalf("WriteBaseDraft edit: %v", err)
		}
		if err := store.WriteExtensionDraft(ctx, biz, profilestoreport.WriteOptions{}); err != nil {
			t.Fatalf("WriteExtensionDraft edit: %v", err)
		}
		got, _ = store.ReadBase(ctx, id)
		if !got.Completed || got.Bio != "Edited bio." {
			t.Fatalf("edit cleared completion or lost value: %+v", got)
		}
	})

	t.Run("replace retires previous extension and clears completion", func(t *testing.T) {
		id := newIdentity()
		base := baseDraft(id, domain.RoleProfessional, "Sam Phiri")
		pro := &domain.ProfessionalProfile{IdentityID: id, ProfessionalTitle: "Analyst", PrimarySkills: []string{"Modelling"}, ExperienceLevel: "senior"}
		if err := store.WriteBaseDraft(ctx, base); err != nil {
			t.Fatalf("WriteBaseDraft: %v", err)
		}
		if err := store.CommitCompletion(ctx, base, pro); err != nil {
			t.Fatalf("CommitCompletion: %v", err)
		}

		cp := &domain.CapitalProviderProfile{IdentityID: id, ProviderType: "angel", TicketSizeRange: "25k_100k", StageFocus: []string{"seed"}, SectorFocus: []string{"fintech"}}
		if err := store.WriteExtensionDraft(ctx, cp, profilestoreport.WriteOptions{ReplaceExisting: true}); err != nil {
			t.Fatalf("WriteExtensionDraft replace: %v", err)
		}
		got, err := store.ReadBase(ctx, id)
		if err != nil {
			t.Fatalf("ReadBase: %v", err)
		}
		if got.Role != domain.RoleCapitalProvider || got.Completed {
			t.Fatalf("after replace base=%+v, want capital_provider and not completed", got)
		}
		if _, err := store.ReadExtension(ctx, id, domain.RoleProfessional); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("old extension still active: err=%v", err)
		}
		retired, err := store.ListRetired(ctx, id)
		if err != nil || len(retired) != 1 || retired[0].Extension.Role() != domain.RoleProfessional {
			t.Fatalf("ListRetired=%+v err=%v", retired, err)
		}
		if retired[0].Extension.(*domain.ProfessionalProfile).ProfessionalTitle != "Analyst" {
			t.Fatalf("retired payload lost: %#v", retired[0].Extension)
		}
	})

	t.Run("retire extension", func(t *testing.T) {
		id := newIdentity()
		base := baseDraft(id, domain.RoleInstitution, "Ruth Banda")
		inst := &domain.InstitutionProfile{IdentityID: id, InstitutionName: "Ministry of Trade", InstitutionType: "government_agency", MandateAreas: []string{"trade"}}
		if err := store.WriteBaseDraft(ctx, base); err != nil {
			t.Fatalf("WriteBaseDraft: %v", err)
		}
		if err := store.CommitCompletion(ctx, base, inst); err != nil {
			t.Fatalf("CommitCompletion: %v", err)
		}
		if err := store.RetireExtension(ctx, id, domain.RoleBusiness); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("retire wrong role err=%v, want ErrNotFound", err)
		}
		if err := store.RetireExtension(ctx, id, domain.RoleInstitution); err != nil {
			t.Fatalf("RetireExtension: %v", err)
		}
		if _, err := store.ReadActiveExtension(ctx, id); !errors.Is(err, profilestoreport.ErrNotFound) {
			t.Fatalf("extension still active err=%v", err)
		}
		got, _ := store.ReadBase(ctx, id)
		if got.Completed {
			t.Fatalf("retirement must clear completion")
		}
		// With no active extension the base role may change freely.
		if err := store.WriteBaseDraft(ctx, baseDraft(id, domain.RoleBusiness, "Ruth Banda")); err != nil {
			t.Fatalf("WriteBaseDraft after retire: %v", err)
		}
	})

	t.Run("privileged commit checks ownership", func(t *testing.T) {
		id := newIdentity()
		base := baseDraft(id, domain.RoleBusiness, "Kondwani Zulu")
		biz := &domain.BusinessProfile{IdentityID: id, BusinessName: "KZ Logistics", Industry: "Logistics", Stage: "growth"}
		if err := store.CommitCompletionPrivileged(ctx, domain.Identity{ID: newIdentity()}, base, biz); !errors.Is(err, profilestoreport.ErrAuthorization) {
			t.Fatalf("foreign owner err=%v, want ErrAuthorization", err)
		}
		if err := store.CommitCompletionPrivileged(ctx, domain.Identity{ID: id, Email: "kz@example.com"}, base, biz); err != nil {
			t.Fatalf("CommitCompletionPrivileged: %v", err)
		}
		got, err := store.ReadBase(ctx, id)
		if err != nil || !got.Completed {
			t.Fatalf("ReadBase=%+v err=%v, want completed", got, err)
		}
	})
}

func RunDraftTracker(t *testing.T, newTracker DraftTrackerFactory) {
	t.Helper()
	ctx := context.Background()

	tr, cleanup := newTracker(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	id := newIdentity()
	if _, ok, err := tr.LastStep(ctx, id); err != nil || ok {
		t.Fatalf("LastStep empty: ok=%v err=%v", ok, err)
	}

	if err := tr.RecordStep(ctx, id, domain.StepRoleDetails, domain.RoleBusiness); err != nil {
		t.Fatalf("RecordStep: %v", err)
	}
	// Lower step for the same role does not move the marker back.
	if err := tr.RecordStep(ctx, id, domain.StepBasicInfo, domain.RoleBusiness); err != nil {
		t.Fatalf("RecordStep lower: %v", err)
	}
	m, ok, err := tr.LastStep(ctx, id)
	if err != nil || !ok || m.Step != domain.StepRoleDetails || m.Role != domain.RoleBusiness || m.IdentityID != id {
		t.Fatalf("LastStep=%+v ok=%v err=%v", m, ok, err)
	}

	// A role change resets the marker.
	if err := tr.RecordStep(ctx, id, domain.StepRoleSelect, domain.RoleInstitution); err != nil {
		t.Fatalf("RecordStep role change: %v", err)
	}
	m, _, _ = tr.LastStep(ctx, id)
	if m.Step != domain.StepRoleSelect || m.Role != domain.RoleInstitution {
		t.Fatalf("after role change marker=%+v", m)
	}

	if err := tr.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := tr.LastStep(ctx, id); err != nil || ok {
		t.Fatalf("LastStep after Clear: ok=%v err=%v", ok, err)
	}
	if err := tr.Clear(ctx, id); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
}

func RunDegradedStore(t *testing.T, newStore DegradedStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := store.Get(ctx, newIdentity()); !errors.Is(err, degradedstoreport.ErrNotFound) {
		t.Fatalf("Get missing err=%v, want ErrNotFound", err)
	}

	t0 := time.Unix(2000, 0).UTC()
	mk := func(id domain.IdentityID, at time.Time) degradedstoreport.Record {
		return degradedstoreport.Record{
			ID:         uuid.NewString(),
			IdentityID: id,
			Email:      "user@example.com",
			Base:       baseDraft(id, domain.RoleBusiness, "Jane Doe"),
			Role:       domain.RoleBusiness,
			Extension:  domain.Values{domain.FieldBusinessName: "Jane Co", domain.FieldSectors: []string{"Agritech"}},
			Reason:     "authorization failure",
			Status:     degradedstoreport.StatusPendingSync,
			CreatedAt:  at,
			UpdatedAt:  at,
		}
	}

	a, b := newIdentity(), newIdentity()
	if err := store.Put(ctx, mk(a, t0.Add(time.Minute))); err != nil {
		t.Fatalf("Put a: %v", err)
	}
	if err := store.Put(ctx, mk(b, t0)); err != nil {
		t.Fatalf("Put b: %v", err)
	}

	got, err := store.Get(ctx, a)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != domain.RoleBusiness || got.Base.FullName != "Jane Doe" || got.Extension.String(domain.FieldBusinessName) != "Jane Co" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if l := got.Extension.List(domain.FieldSectors); len(l) != 1 || l[0] != "Agritech" {
		t.Fatalf("sectors=%v", l)
	}

	pending, err := store.ListPending(ctx, 100)
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	ia, ib := indexOf(pending, a), indexOf(pending, b)
	if ia < 0 || ib < 0 || ib > ia {
		t.Fatalf("ListPending order: %+v", pending)
	}

	if err := store.MarkAttempt(ctx, a, "still denied", degradedstoreport.StatusPendingSync, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("MarkAttempt: %v", err)
	}
	got, _ = store.Get(ctx, a)
	if got.Attempts != 1 || got.LastError != "still denied" || got.Status != degradedstoreport.StatusPendingSync {
		t.Fatalf("after MarkAttempt: %+v", got)
	}

	if err := store.MarkAttempt(ctx, b, "gave up", degradedstoreport.StatusNeedsSupport, t0.Add(3*time.Minute)); err != nil {
		t.Fatalf("MarkAttempt needs_support: %v", err)
	}
	if err := store.MarkReconciled(ctx, a, t0.Add(4*time.Minute)); err != nil {
		t.Fatalf("MarkReconciled: %v", err)
	}
	pending, _ = store.ListPending(ctx, 100)
	if indexOf(pending, a) >= 0 || indexOf(pending, b) >= 0 {
		t.Fatalf("non-pending records listed: %+v", pending)
	}
	got, _ = store.Get(ctx, a)
	if got.Status != degradedstoreport.StatusReconciled {
		t.Fatalf("status=%s, want reconciled", got.Status)
	}

	if err := store.MarkReconciled(ctx, newIdentity(), t0); !errors.Is(err, degradedstoreport.ErrNotFound) {
		t.Fatalf("MarkReconciled missing err=%v, want ErrNotFound", err)
	}
}

func indexOf(recs []degradedstoreport.Record, id domain.IdentityID) int {
	for i, r := range recs {
		if r.IdentityID == id {
			return i
		}
	}
	return -1
}

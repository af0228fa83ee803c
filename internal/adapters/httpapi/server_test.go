package httpapi

import (
	"net/http"
	"testing"
)

func TestOnboarding_NewIdentity_StartsAtRoleSelect(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodGet, "/onboarding/session", "alice", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[SessionResponse](t, rec)
	if got.Session.Step != "role_select" || got.Session.Completed {
		t.Fatalf("session: %+v", got.Session)
	}
	if got.Session.Role.IsSpecified() {
		t.Fatalf("expected no role for a new identity")
	}
}

func TestOnboarding_HappyPath_Completes(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{degradedEnabled: true})
	f.toReview(t, "alice")

	rec := f.do(t, http.MethodGet, "/onboarding/review", "alice", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("review status=%d body=%s", rec.Code, rec.Body.String())
	}
	review := decode[ReviewResponse](t, rec)
	if len(review.Entries) == 0 || review.Entries[0].Section != "role" || review.Entries[0].Value != "Business" {
		t.Fatalf("review entries: %+v", review.Entries)
	}

	rec = f.do(t, http.MethodPost, "/onboarding/complete", "alice", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rec.Code, rec.Body.String())
	}
	done := decode[CompletionResponse](t, rec)
	if done.Outcome != "success" || done.Tier != "primary" || done.Step != "complete" {
		t.Fatalf("completion: %+v", done)
	}

	rec = f.do(t, http.MethodGet, "/profiles/me/status", "alice", nil, nil)
	st := decode[ProfileStatusResponse](t, rec)
	if !st.IsProfileComplete || st.PendingSync {
		t.Fatalf("status: %+v", st)
	}
	if role, err := st.Role.Get(); err != nil || role != "business" {
		t.Fatalf("status role: %v %q", err, role)
	}

	rec = f.do(t, http.MethodGet, "/onboarding/session", "alice", nil, nil)
	if got := decode[SessionResponse](t, rec); got.Session.Step != "complete" || !got.Session.Completed {
		t.Fatalf("session after completion: %+v", got.Session)
	}
	if n := len(f.pub.Events()); n != 1 {
		t.Fatalf("routing events: got %d want 1", n)
	}
}

func TestOnboarding_BasicInfoFieldErrors_422(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	if rec := f.do(t, http.MethodPost, "/onboarding/role", "bob", SelectRoleRequest{Role: "professional"}, nil); rec.Code != http.StatusOK {
		t.Fatalf("role status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, "/onboarding/basic-info", "bob", ValuesRequest{Values: map[string]any{"full_name": "Bob"}}, nil)
	er := requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
	if er.Error.Details["step"] != "basic_info" {
		t.Fatalf("details.step: %v", er.Error.Details["step"])
	}
	fieldErrs, ok := er.Error.Details["fieldErrors"].([]any)
	if !ok || len(fieldErrs) == 0 {
		t.Fatalf("expected field errors, got %v", er.Error.Details["fieldErrors"])
	}

	rec = f.do(t, http.MethodGet, "/onboarding/session", "bob", nil, nil)
	if got := decode[SessionResponse](t, rec); got.Session.Step != "basic_info" {
		t.Fatalf("step after rejected submit: %q", got.Session.Step)
	}
}

func TestOnboarding_UnknownRole_422(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodPost, "/onboarding/role", "carol", SelectRoleRequest{Role: "astronaut"}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodDelete, "/onboarding/extension/astronaut", "carol", nil, nil)
	requireError(t, rec, http.StatusUnprocessableEntity, "UNKNOWN_ROLE")
}

func TestOnboarding_StepOutOfOrder_409(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodPost, "/onboarding/basic-info", "dave", ValuesRequest{Values: map[string]any{"full_name": "Dave"}}, nil)
	requireError(t, rec, http.StatusConflict, "STEP_OUT_OF_ORDER")

	rec = f.do(t, http.MethodGet, "/onboarding/review", "dave", nil, nil)
	requireError(t, rec, http.StatusConflict, "STEP_OUT_OF_ORDER")
}

func TestOnboarding_Back(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	f.toReview(t, "erin")

	rec := f.do(t, http.MethodPost, "/onboarding/back", "erin", BackRequest{From: "review"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[SessionResponse](t, rec)
	if got.Session.Step != "role_details" {
		t.Fatalf("step: %q", got.Session.Step)
	}
	if got.Session.RoleDetails["business_name"] != "Jane Co" {
		t.Fatalf("drafts not preserved: %v", got.Session.RoleDetails)
	}

	rec = f.do(t, http.MethodPost, "/onboarding/back", "erin", BackRequest{From: "sideways"}, nil)
	requireError(t, rec, http.StatusUnprocessableEntity, "VALIDATION_ERROR")
}

func TestOnboarding_Back_FromStepNotReached(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodPost, "/onboarding/back", "frank", BackRequest{From: "review"}, nil)
	requireError(t, rec, http.StatusConflict, "STEP_OUT_OF_ORDER")

	rec = f.do(t, http.MethodGet, "/onboarding/session", "frank", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[SessionResponse](t, rec); got.Session.Step != "role_select" {
		t.Fatalf("step: %q", got.Session.Step)
	}
}

func TestOnboarding_Complete_IdempotentReplay(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	f.toReview(t, "frank")
	hdr := map[string]string{"Idempotency-Key": "confirm-1"}

	first := f.do(t, http.MethodPost, "/onboarding/complete", "frank", "{}", hdr)
	if first.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", first.Code, first.Body.String())
	}
	second := f.do(t, http.MethodPost, "/onboarding/complete", "frank", "{}", hdr)
	if second.Code != http.StatusOK {
		t.Fatalf("replay status=%d body=%s", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed response")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}
	if n := len(f.pub.Events()); n != 1 {
		t.Fatalf("routing events: got %d want 1", n)
	}

	reuse := f.do(t, http.MethodPost, "/onboarding/complete", "frank", `{"note":"again"}`, hdr)
	requireError(t, reuse, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE")
}

func TestOnboarding_Complete_DegradedWhenPrimaryDenied(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{policy: denyAll, degradedEnabled: true})
	f.toReview(t, "grace")

	rec := f.do(t, http.MethodPost, "/onboarding/complete", "grace", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	done := decode[CompletionResponse](t, rec)
	if done.Outcome != "degraded" || done.Tier != "degraded_store" || done.Step != "complete" {
		t.Fatalf("completion: %+v", done)
	}

	rec = f.do(t, http.MethodGet, "/profiles/me/status", "grace", nil, nil)
	st := decode[ProfileStatusResponse](t, rec)
	if !st.IsProfileComplete || !st.PendingSync {
		t.Fatalf("status: %+v", st)
	}
}

func TestOnboarding_Complete_FailureStaysAtReview(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{policy: denyAll})
	f.toReview(t, "heidi")

	rec := f.do(t, http.MethodPost, "/onboarding/complete", "heidi", nil, nil)
	er := requireError(t, rec, http.StatusConflict, "COMPLETION_FAILED")
	if er.Error.Details["step"] != "review" {
		t.Fatalf("details: %v", er.Error.Details)
	}

	rec = f.do(t, http.MethodGet, "/onboarding/session", "heidi", nil, nil)
	if got := decode[SessionResponse](t, rec); got.Session.Step != "review" || got.Session.Completed {
		t.Fatalf("session after failure: %+v", got.Session)
	}
	if n := len(f.pub.Events()); n != 0 {
		t.Fatalf("routing events: got %d want 0", n)
	}
}

func TestOnboarding_RoleSwitchRequiresRetirement(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	f.toReview(t, "ivan")
	if rec := f.do(t, http.MethodPost, "/onboarding/complete", "ivan", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec := f.do(t, http.MethodPost, "/onboarding/role", "ivan", SelectRoleRequest{Role: "professional"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("role status=%d body=%s", rec.Code, rec.Body.String())
	}
	sess := decode[SessionResponse](t, rec).Session
	if sess.RoleChange == nil || sess.RoleChange.From != "business" || sess.RoleChange.To != "professional" {
		t.Fatalf("roleChange: %+v", sess.RoleChange)
	}

	details := map[string]any{
		"professional_title": "Agronomist",
		"primary_skills":     []string{"soil analysis"},
		"experience_level":   "senior",
	}
	rec = f.do(t, http.MethodPost, "/onboarding/role-details", "ivan", RoleDetailsRequest{Role: "professional", Values: details}, nil)
	requireError(t, rec, http.StatusConflict, "ROLE_CONFLICT")

	rec = f.do(t, http.MethodPost, "/onboarding/role-details", "ivan", RoleDetailsRequest{Role: "professional", Values: details, RetirePrevious: true}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("retire+save status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[SessionResponse](t, rec); got.Session.Step != "review" {
		t.Fatalf("step after switch: %q", got.Session.Step)
	}
}

func TestOnboarding_RetireExtension_ReturnsToRoleDetails(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	f.toReview(t, "judy")

	rec := f.do(t, http.MethodDelete, "/onboarding/extension/business", "judy", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if got := decode[SessionResponse](t, rec); got.Session.Step != "role_details" {
		t.Fatalf("step: %q", got.Session.Step)
	}
}

func TestOnboarding_BeginEdit(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodPost, "/onboarding/edit", "mallory", nil, nil)
	requireError(t, rec, http.StatusNotFound, "PROFILE_NOT_FOUND")

	f.toReview(t, "mallory")
	if rec := f.do(t, http.MethodPost, "/onboarding/complete", "mallory", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("complete status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/onboarding/edit", "mallory", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status=%d body=%s", rec.Code, rec.Body.String())
	}
	got := decode[SessionResponse](t, rec)
	if got.Session.Step != "basic_info" || !got.Session.EditMode || !got.Session.Completed {
		t.Fatalf("edit session: %+v", got.Session)
	}
}

func TestDevAuth_MissingSubject_401(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodGet, "/onboarding/session", "", nil, nil)
	er := requireError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
	if er.Error.RequestId == "" {
		t.Fatalf("expected requestId")
	}
}

func TestRouter_UnknownRoute_404(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t, fixtureOptions{})
	rec := f.do(t, http.MethodGet, "/nope", "alice", nil, nil)
	requireError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

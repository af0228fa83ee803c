package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseRole(t *testing.T) {
	t.Parallel()

	r, err := ParseRole("  Capital_Provider ")
	if err != nil || r != RoleCapitalProvider {
		t.Fatalf("ParseRole role=%q err=%v", r, err)
	}
	if _, err := ParseRole("investor"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("ParseRole(investor) err=%v, want ErrUnknownRole", err)
	}
}

func TestStep_Transitions(t *testing.T) {
	t.Parallel()

	if StepReview.Next() != StepComplete || StepComplete.Next() != StepComplete {
		t.Fatalf("Next mismatch")
	}
	if StepRoleSelect.Prev() != StepRoleSelect || StepReview.Prev() != StepRoleDetails {
		t.Fatalf("Prev mismatch")
	}
	if StepComplete.Prev() != StepComplete {
		t.Fatalf("Complete should not step back")
	}
	for st := StepIdle; st <= StepComplete; st++ {
		got, err := ParseStep(st.String())
		if err != nil || got != st {
			t.Fatalf("ParseStep(%q)=%v err=%v", st.String(), got, err)
		}
	}
	if StepIdle.Trackable() || StepComplete.Trackable() || !StepReview.Trackable() {
		t.Fatalf("Trackable mismatch")
	}
}

func TestNormalizeToken(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Early-Stage":     "early_stage",
		" early  stage":   "early_stage",
		"VENTURE_CAPITAL": "venture_capital",
	}
	for in, want := range cases {
		if got := NormalizeToken(in); got != want {
			t.Fatalf("NormalizeToken(%q)=%q, want %q", in, got, want)
		}
	}
	if got := HumanizeToken("early_stage"); got != "Early stage" {
		t.Fatalf("HumanizeToken=%q", got)
	}
}

func TestDedupeStrings(t *testing.T) {
	t.Parallel()

	got := DedupeStrings([]string{" Fintech", "fintech", "", "Agri  Tech"})
	want := []string{"Fintech", "Agri Tech"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeStrings=%v, want %v", got, want)
	}
}

func TestBaseProfile_ApplyValues_DisplayNameDefaultsToFullName(t *testing.T) {
	t.Parallel()

	var b BaseProfile
	b.ApplyValues(Values{
		FieldFullName:   "  Ada   Obi ",
		FieldCountry:    "Kenya",
		FieldWebsiteURL: "",
	})
	if b.DisplayName != "Ada Obi" || b.FullName != "Ada Obi" {
		t.Fatalf("names=%q/%q", b.DisplayName, b.FullName)
	}
	if b.WebsiteURL != nil {
		t.Fatalf("empty website should stay unset")
	}
	v := b.Values()
	if v.String(FieldCountry) != "Kenya" || v.Has(FieldPhone) {
		t.Fatalf("values=%v", v)
	}
}

func TestNewRoleExtension_RoundTripsValues(t *testing.T) {
	t.Parallel()

	in := Values{
		FieldBusinessName:  "Acme",
		FieldIndustry:      "agriculture",
		FieldStage:         "early_stage",
		FieldFundingNeeded: true,
		FieldFundingRange:  "10k_50k",
		FieldSectors:       []string{"Agritech", "Logistics"},
	}
	ext, err := NewRoleExtension(RoleBusiness, "id-1", in)
	if err != nil {
		t.Fatalf("NewRoleExtension err=%v", err)
	}
	biz, ok := ext.(*BusinessProfile)
	if !ok {
		t.Fatalf("type=%T", ext)
	}
	if biz.Owner() != "id-1" || biz.Role() != RoleBusiness || !biz.FundingNeeded {
		t.Fatalf("biz=%+v", biz)
	}
	if !reflect.DeepEqual(ext.Values(), in) {
		t.Fatalf("values=%v, want %v", ext.Values(), in)
	}

	cp := CloneExtension(ext).(*BusinessProfile)
	cp.Sectors[0] = "changed"
	if biz.Sectors[0] != "Agritech" {
		t.Fatalf("clone shares list storage")
	}

	if _, err := NewRoleExtension(Role("investor"), "id-1", nil); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err=%v, want ErrUnknownRole", err)
	}
}

func TestValues_HasAndMerge(t *testing.T) {
	t.Parallel()

	v := Values{"a": "", "b": false, "c": []string{}, "d": []any{"x"}}
	if v.Has("a") || !v.Has("b") || v.Has("c") || !v.Has("d") || v.Has("missing") {
		t.Fatalf("Has mismatch for %v", v)
	}
	if got := v.List("d"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("List=%v", got)
	}
	m := v.Merge(Values{"a": "set"})
	if m.String("a") != "set" || v.String("a") != "" {
		t.Fatalf("Merge mutated receiver or lost value")
	}
}

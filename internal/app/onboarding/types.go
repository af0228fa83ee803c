package onboarding

import (
	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Session is the controller's view of an identity's onboarding after a transition.
// A non-empty FieldErrors means the transition was rejected and Step is unchanged.
type Session struct {
	IdentityID domain.IdentityID
	Step       domain.Step
	Role       domain.Role

	// Stored draft values, for pre-populating forms.
	Base      domain.Values
	Extension domain.Values

	Completed   bool
	PendingSync bool
	EditMode    bool

	RoleChanged *RoleChange
	FieldErrors []schema.FieldError
}

// RoleChange reports that a role was selected while another role's extension is active.
// The caller decides whether to retire From or abandon the change.
type RoleChange struct {
	From domain.Role
	To   domain.Role
}

type RoleDetailsInput struct {
	// Role defaults to the stored base role.
	Role   domain.Role
	Values domain.Values
	// RetirePrevious archives an active extension of a different role before saving.
	RetirePrevious bool
}

// ReviewEntry is one labelled line in the review summary.
type ReviewEntry struct {
	Section string
	Field   string
	Label   string
	Value   string
}

const (
	SectionRole        = "role"
	SectionBasicInfo   = "basic_info"
	SectionRoleDetails = "role_details"
)

type ReviewView struct {
	Step      domain.Step
	Role      domain.Role
	Completed bool
	Entries   []ReviewEntry
}

type CompletionResult struct {
	Outcome completion.Outcome
	Tier    completion.Tier
	Step    domain.Step
	Role    domain.Role
	Message string
	Reason  string
	// Err is the underlying store failure for a Failure outcome.
	Err         error
	FieldErrors []schema.FieldError
}

// ProfileStatus is the opaque fact consumed by pages outside onboarding.
type ProfileStatus struct {
	IsProfileComplete bool
	Role              domain.Role
	PendingSync       bool
}

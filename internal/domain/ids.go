package domain

// IdentityID is the authenticated subject extracted from JWT claims (typically "sub").
// We model it as an opaque identifier: its format is controlled by the IdP.
type IdentityID string

// Identity is the pair supplied by the authentication collaborator at session start.
// It is referenced, never mutated, by onboarding.
type Identity struct {
	ID    IdentityID
	Email string
}

package domain

import "time"

// Shared (base profile) field names.
const (
	FieldRole        = "role"
	FieldDisplayName = "display_name"
	FieldFullName    = "full_name"
	FieldPhone       = "phone"
	FieldCountry     = "country"
	FieldCity        = "city"
	FieldBio         = "bio"
	FieldWebsiteURL  = "website_url"
	FieldLinkedInURL = "linkedin_url"
	FieldTwitterURL  = "twitter_url"
	FieldAvatarURL   = "avatar_url"
)

// BaseProfile is the role-agnostic profile record; exactly one per identity.
type BaseProfile struct {
	IdentityID IdentityID
	Role       Role

	DisplayName string
	FullName    string
	Phone       string
	Country     string
	City        string
	Bio         string

	// Optional links; nil means unset.
	WebsiteURL  *string
	LinkedInURL *string
	TwitterURL  *string
	AvatarURL   *string

	// Completed is false until a completion commit succeeds in full.
	Completed   bool
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Values returns the shared attributes keyed by field name. Role and bookkeeping fields are excluded.
func (b BaseProfile) Values() Values {
	v := Values{}
	setString(v, FieldDisplayName, b.DisplayName)
	setString(v, FieldFullName, b.FullName)
	setString(v, FieldPhone, b.Phone)
	setString(v, FieldCountry, b.Country)
	setString(v, FieldCity, b.City)
	setString(v, FieldBio, b.Bio)
	setStringPtr(v, FieldWebsiteURL, b.WebsiteURL)
	setStringPtr(v, FieldLinkedInURL, b.LinkedInURL)
	setStringPtr(v, FieldTwitterURL, b.TwitterURL)
	setStringPtr(v, FieldAvatarURL, b.AvatarURL)
	return v
}

// ApplyValues overwrites the shared attributes from normalized values.
// An empty display name falls back to the full name.
func (b *BaseProfile) ApplyValues(v Values) {
	b.FullName = NormalizeHumanName(v.String(FieldFullName))
	b.DisplayName = NormalizeHumanName(v.String(FieldDisplayName))
	if b.DisplayName == "" {
		b.DisplayName = b.FullName
	}
	b.Phone = v.String(FieldPhone)
	b.Country = v.String(FieldCountry)
	b.City = v.String(FieldCity)
	b.Bio = v.String(FieldBio)
	b.WebsiteURL = v.StringPtr(FieldWebsiteURL)
	b.LinkedInURL = v.StringPtr(FieldLinkedInURL)
	b.TwitterURL = v.StringPtr(FieldTwitterURL)
	b.AvatarURL = v.StringPtr(FieldAvatarURL)
}

// Clone returns a copy that shares no pointers with b.
func (b BaseProfile) Clone() BaseProfile {
	out := b
	out.WebsiteURL = cloneStringPtr(b.WebsiteURL)
	out.LinkedInURL = cloneStringPtr(b.LinkedInURL)
	out.TwitterURL = cloneStringPtr(b.TwitterURL)
	out.AvatarURL = cloneStringPtr(b.AvatarURL)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

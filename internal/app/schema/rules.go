package schema

import "github.com/directoryhub/onboarding-api/internal/domain"

const (
	shortText = 120
	longText  = 1000
)

var (
	businessStages      = []string{"idea", "early_stage", "growth", "established"}
	teamSizes           = []string{"solo", "2_10", "11_50", "51_200", "200_plus"}
	registrationStates  = []string{"registered", "in_progress", "not_registered"}
	experienceLevels    = []string{"entry", "intermediate", "senior", "expert"}
	availabilityOptions = []string{"full_time", "part_time", "project_based", "limited"}
	workModes           = []string{"remote", "on_site", "hybrid"}
	rateTypes           = []string{"hourly", "daily", "project", "retainer"}
	providerTypes       = []string{
		"angel", "venture_capital", "private_equity", "impact_fund",
		"development_finance", "corporate", "family_office", "lender",
	}
	institutionTypes = []string{
		"government_agency", "university", "ngo", "development_agency",
		"incubator", "chamber_of_commerce", "other",
	}
)

func text(name, label string, required bool) Field {
	return Field{Name: name, Label: label, Kind: KindText, Required: required, MaxLen: shortText}
}

func longForm(name, label string, required bool) Field {
	return Field{Name: name, Label: label, Kind: KindText, Required: required, MaxLen: longText, Multiline: true}
}

func enum(name, label string, required bool, options []string) Field {
	return Field{Name: name, Label: label, Kind: KindEnum, Required: required, Options: options}
}

func list(name, label string, minItems int) Field {
	return Field{Name: name, Label: label, Kind: KindList, Required: minItems > 0, MinItems: minItems, MaxItems: 20}
}

func link(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindURL, MaxLen: 2048}
}

func baseFields() []Field {
	return []Field{
		text(domain.FieldFullName, "Full name", true),
		text(domain.FieldDisplayName, "Display name", false),
		{Name: domain.FieldPhone, Label: "Phone", Kind: KindText, MaxLen: 32},
		text(domain.FieldCountry, "Country", true),
		text(domain.FieldCity, "City", true),
		{Name: domain.FieldBio, Label: "Short bio", Kind: KindText, Required: true, MaxLen: 500, Multiline: true},
		link(domain.FieldWebsiteURL, "Website"),
		link(domain.FieldLinkedInURL, "LinkedIn"),
		link(domain.FieldTwitterURL, "X / Twitter"),
		link(domain.FieldAvatarURL, "Avatar"),
	}
}

func businessFields() []Field {
	fundingRange := text(domain.FieldFundingRange, "Funding range", false)
	fundingRange.RequiredWhen = func(v domain.Values) bool { return v.Bool(domain.FieldFundingNeeded) }

	return []Field{
		text(domain.FieldBusinessName, "Business name", true),
		text(domain.FieldIndustry, "Industry", true),
		enum(domain.FieldStage, "Stage", true, businessStages),
		longForm(domain.FieldOfferingDescription, "What you offer", false),
		{Name: domain.FieldFundingNeeded, Label: "Looking for funding", Kind: KindBool},
		fundingRange,
		enum(domain.FieldTeamSize, "Team size", false, teamSizes),
		enum(domain.FieldRegistrationStatus, "Registration status", false, registrationStates),
		list(domain.FieldNeeds, "Needs", 0),
		list(domain.FieldServedAreas, "Areas served", 0),
		list(domain.FieldSectors, "Sectors", 0),
		list(domain.FieldSupportPreferences, "Support preferences", 0),
	}
}

func professionalFields() []Field {
	return []Field{
		text(domain.FieldProfessionalTitle, "Professional title", true),
		list(domain.FieldPrimarySkills, "Primary skills", 1),
		longForm(domain.FieldOfferingDescription, "What you offer", false),
		enum(domain.FieldExperienceLevel, "Experience level", true, experienceLevels),
		enum(domain.FieldAvailability, "Availability", false, availabilityOptions),
		enum(domain.FieldWorkMode, "Work mode", false, workModes),
		enum(domain.FieldRateType, "Rate type", false, rateTypes),
		text(domain.FieldRateRange, "Rate range", false),
		link(domain.FieldPortfolioURL, "Portfolio"),
		list(domain.FieldCertifications, "Certifications", 0),
		list(domain.FieldLanguages, "Languages", 0),
		list(domain.FieldPreferredIndustries, "Preferred industries", 0),
	}
}

func capitalProviderFields() []Field {
	return []Field{
		enum(domain.FieldProviderType, "Provider type", true, providerTypes),
		text(domain.FieldTicketSizeRange, "Ticket size", true),
		list(domain.FieldStageFocus, "Stage focus", 1),
		list(domain.FieldSectorFocus, "Sector focus", 1),
		list(domain.FieldPreferences, "Preferences", 0),
		list(domain.FieldGeographicFocus, "Geographic focus", 0),
		longForm(domain.FieldInvestmentThesis, "Investment thesis", false),
		text(domain.FieldDecisionTimeline, "Decision timeline", false),
	}
}

func institutionFields() []Field {
	return []Field{
		text(domain.FieldInstitutionName, "Institution name", true),
		text(domain.FieldDepartment, "Department or unit", false),
		enum(domain.FieldInstitutionType, "Institution type", true, institutionTypes),
		list(domain.FieldMandateAreas, "Mandate areas", 1),
		longForm(domain.FieldProgrammeDescription, "Programme description", false),
		list(domain.FieldCollaborationInterests, "Collaboration interests", 0),
		text(domain.FieldContactPersonTitle, "Contact person title", false),
		longForm(domain.FieldCurrentInitiatives, "Current initiatives", false),
		longForm(domain.FieldEligibilityCriteria, "Eligibility criteria", false),
	}
}

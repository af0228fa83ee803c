package domain

import "fmt"

// RoleExtension is the role-specific attribute set. The variants form a closed set:
// *BusinessProfile, *ProfessionalProfile, *CapitalProviderProfile and *InstitutionProfile.
// Exactly one may be active per identity, and its Role must equal the base profile's role.
type RoleExtension interface {
	Role() Role
	Owner() IdentityID
	Values() Values
	roleExtension()
}

// NewRoleExtension builds the variant for role from normalized values.
func NewRoleExtension(role Role, id IdentityID, v Values) (RoleExtension, error) {
	switch role {
	case RoleBusiness:
		return &BusinessProfile{
			IdentityID:          id,
			BusinessName:        v.String(FieldBusinessName),
			Industry:            v.String(FieldIndustry),
			Stage:               v.String(FieldStage),
			OfferingDescription: v.String(FieldOfferingDescription),
			FundingNeeded:       v.Bool(FieldFundingNeeded),
			FundingRange:        v.String(FieldFundingRange),
			TeamSize:            v.String(FieldTeamSize),
			RegistrationStatus:  v.String(FieldRegistrationStatus),
			Needs:               v.List(FieldNeeds),
			ServedAreas:         v.List(FieldServedAreas),
			Sectors:             v.List(FieldSectors),
			SupportPreferences:  v.List(FieldSupportPreferences),
		}, nil
	case RoleProfessional:
		return &ProfessionalProfile{
			IdentityID:          id,
			ProfessionalTitle:   v.String(FieldProfessionalTitle),
			PrimarySkills:       v.List(FieldPrimarySkills),
			OfferingDescription: v.String(FieldOfferingDescription),
			ExperienceLevel:     v.String(FieldExperienceLevel),
			Availability:        v.String(FieldAvailability),
			WorkMode:            v.String(FieldWorkMode),
			RateType:            v.String(FieldRateType),
			RateRange:           v.String(FieldRateRange),
			PortfolioURL:        v.String(FieldPortfolioURL),
			Certifications:      v.List(FieldCertifications),
			Languages:           v.List(FieldLanguages),
			PreferredIndustries: v.List(FieldPreferredIndustries),
		}, nil
	case RoleCapitalProvider:
		return &CapitalProviderProfile{
			IdentityID:       id,
			ProviderType:     v.String(FieldProviderType),
			TicketSizeRange:  v.String(FieldTicketSizeRange),
			StageFocus:       v.List(FieldStageFocus),
			SectorFocus:      v.List(FieldSectorFocus),
			Preferences:      v.List(FieldPreferences),
			GeographicFocus:  v.List(FieldGeographicFocus),
			InvestmentThesis: v.String(FieldInvestmentThesis),
			DecisionTimeline: v.String(FieldDecisionTimeline),
		}, nil
	case RoleInstitution:
		return &InstitutionProfile{
			IdentityID:             id,
			InstitutionName:        v.String(FieldInstitutionName),
			Department:             v.String(FieldDepartment),
			InstitutionType:        v.String(FieldInstitutionType),
			MandateAreas:           v.List(FieldMandateAreas),
			ProgrammeDescription:   v.String(FieldProgrammeDescription),
			CollaborationInterests: v.List(FieldCollaborationInterests),
			ContactPersonTitle:     v.String(FieldContactPersonTitle),
			CurrentInitiatives:     v.String(FieldCurrentInitiatives),
			EligibilityCriteria:    v.String(FieldEligibilityCriteria),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}
}

// CloneExtension returns a deep copy of ext.
func CloneExtension(ext RoleExtension) RoleExtension {
	if ext == nil {
		return nil
	}
	out, err := NewRoleExtension(ext.Role(), ext.Owner(), ext.Values())
	if err != nil {
		return nil
	}
	return out
}

// Role extension field names. offering_description is shared by business and professional.
const (
	FieldBusinessName        = "business_name"
	FieldIndustry            = "industry"
	FieldStage               = "stage"
	FieldOfferingDescription = "offering_description"
	FieldFundingNeeded       = "funding_needed"
	FieldFundingRange        = "funding_range"
	FieldTeamSize            = "team_size"
	FieldRegistrationStatus  = "registration_status"
	FieldNeeds               = "needs"
	FieldServedAreas         = "served_areas"
	FieldSectors             = "sectors"
	FieldSupportPreferences  = "support_preferences"

	FieldProfessionalTitle   = "professional_title"
	FieldPrimarySkills       = "primary_skills"
	FieldExperienceLevel     = "experience_level"
	FieldAvailability        = "availability"
	FieldWorkMode            = "work_mode"
	FieldRateType            = "rate_type"
	FieldRateRange           = "rate_range"
	FieldPortfolioURL        = "portfolio_url"
	FieldCertifications      = "certifications"
	FieldLanguages           = "languages"
	FieldPreferredIndustries = "preferred_industries"

	FieldProviderType     = "provider_type"
	FieldTicketSizeRange  = "ticket_size_range"
	FieldStageFocus       = "stage_focus"
	FieldSectorFocus      = "sector_focus"
	FieldPreferences      = "preferences"
	FieldGeographicFocus  = "geographic_focus"
	FieldInvestmentThesis = "investment_thesis"
	FieldDecisionTimeline = "decision_timeline"

	FieldInstitutionName        = "institution_name"
	FieldDepartment             = "department"
	FieldInstitutionType        = "institution_type"
	FieldMandateAreas           = "mandate_areas"
	FieldProgrammeDescription   = "programme_description"
	FieldCollaborationInterests = "collaboration_interests"
	FieldContactPersonTitle     = "contact_person_title"
	FieldCurrentInitiatives     = "current_initiatives"
	FieldEligibilityCriteria    = "eligibility_criteria"
)

// BusinessProfile is the role extension for businesses.
type BusinessProfile struct {
	IdentityID IdentityID

	BusinessName        string
	Industry            string
	Stage               string
	OfferingDescription string
	FundingNeeded       bool
	FundingRange        string
	TeamSize            string
	RegistrationStatus  string

	Needs              []string
	ServedAreas        []string
	Sectors            []string
	SupportPreferences []string
}

func (p *BusinessProfile) Role() Role        { return RoleBusiness }
func (p *BusinessProfile) Owner() IdentityID { return p.IdentityID }
func (p *BusinessProfile) roleExtension()    {}

func (p *BusinessProfile) Values() Values {
	v := Values{}
	setString(v, FieldBusinessName, p.BusinessName)
	setString(v, FieldIndustry, p.Industry)
	setString(v, FieldStage, p.Stage)
	setString(v, FieldOfferingDescription, p.OfferingDescription)
	v[FieldFundingNeeded] = p.FundingNeeded
	setString(v, FieldFundingRange, p.FundingRange)
	setString(v, FieldTeamSize, p.TeamSize)
	setString(v, FieldRegistrationStatus, p.RegistrationStatus)
	setList(v, FieldNeeds, p.Needs)
	setList(v, FieldServedAreas, p.ServedAreas)
	setList(v, FieldSectors, p.Sectors)
	setList(v, FieldSupportPreferences, p.SupportPreferences)
	return v
}

// ProfessionalProfile is the role extension for independent professionals.
type ProfessionalProfile struct {
	IdentityID IdentityID

	ProfessionalTitle   string
	PrimarySkills       []string
	OfferingDescription string
	ExperienceLevel     string
	Availability        string
	WorkMode            string
	RateType            string
	RateRange           string
	PortfolioURL        string

	Certifications      []string
	Languages           []string
	PreferredIndustries []string
}

func (p *ProfessionalProfile) Role() Role        { return RoleProfessional }
func (p *ProfessionalProfile) Owner() IdentityID { return p.IdentityID }
func (p *ProfessionalProfile) roleExtension()    {}

func (p *ProfessionalProfile) Values() Values {
	v := Values{}
	setString(v, FieldProfessionalTitle, p.ProfessionalTitle)
	setList(v, FieldPrimarySkills, p.PrimarySkills)
	setString(v, FieldOfferingDescription, p.OfferingDescription)
	setString(v, FieldExperienceLevel, p.ExperienceLevel)
	setString(v, FieldAvailability, p.Availability)
	setString(v, FieldWorkMode, p.WorkMode)
	setString(v, FieldRateType, p.RateType)
	setString(v, FieldRateRange, p.RateRange)
	setString(v, FieldPortfolioURL, p.PortfolioURL)
	setList(v, FieldCertifications, p.Certifications)
	setList(v, FieldLanguages, p.Languages)
	setList(v, FieldPreferredIndustries, p.PreferredIndustries)
	return v
}

// CapitalProviderProfile is the role extension for investors and other capital providers.
type CapitalProviderProfile struct {
	IdentityID IdentityID

	ProviderType     string
	TicketSizeRange  string
	StageFocus       []string
	SectorFocus      []string
	Preferences      []string
	GeographicFocus  []string
	InvestmentThesis string
	DecisionTimeline string
}

func (p *CapitalProviderProfile) Role() Role        { return RoleCapitalProvider }
func (p *CapitalProviderProfile) Owner() IdentityID { return p.IdentityID }
func (p *CapitalProviderProfile) roleExtension()    {}

func (p *CapitalProviderProfile) Values() Values {
	v := Values{}
	setString(v, FieldProviderType, p.ProviderType)
	setString(v, FieldTicketSizeRange, p.TicketSizeRange)
	setList(v, FieldStageFocus, p.StageFocus)
	setList(v, FieldSectorFocus, p.SectorFocus)
	setList(v, FieldPreferences, p.Preferences)
	setList(v, FieldGeographicFocus, p.GeographicFocus)
	setString(v, FieldInvestmentThesis, p.InvestmentThesis)
	setString(v, FieldDecisionTimeline, p.DecisionTimeline)
	return v
}

// InstitutionProfile is the role extension for public institutions.
type InstitutionProfile struct {
	IdentityID IdentityID

	InstitutionName        string
	Department             string
	InstitutionType        string
	MandateAreas           []string
	ProgrammeDescription   string
	CollaborationInterests []string
	ContactPersonTitle     string
	CurrentInitiatives     string
	EligibilityCriteria    string
}

func (p *InstitutionProfile) Role() Role        { return RoleInstitution }
func (p *InstitutionProfile) Owner() IdentityID { return p.IdentityID }
func (p *InstitutionProfile) roleExtension()    {}

func (p *InstitutionProfile) Values() Values {
	v := Values{}
	setString(v, FieldInstitutionName, p.InstitutionName)
	setString(v, FieldDepartment, p.Department)
	setString(v, FieldInstitutionType, p.InstitutionType)
	setList(v, FieldMandateAreas, p.MandateAreas)
	setString(v, FieldProgrammeDescription, p.ProgrammeDescription)
	setList(v, FieldCollaborationInterests, p.CollaborationInterests)
	setString(v, FieldContactPersonTitle, p.ContactPersonTitle)
	setString(v, FieldCurrentInitiatives, p.CurrentInitiatives)
	setString(v, FieldEligibilityCriteria, p.EligibilityCriteria)
	return v
}

package profilestore

import (
	"fmt"
	"strings"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

type columnKind int

const (
	textColumn columnKind = iota
	listColumn
	boolColumn
)

type column struct {
	name string
	kind columnKind
}

// roleTable describes one role extension table. Column names equal domain field names.
type roleTable struct {
	name    string
	columns []column
}

func textCol(name string) column { return column{name: name, kind: textColumn} }
func listCol(name string) column { return column{name: name, kind: listColumn} }
func boolCol(name string) column { return column{name: name, kind: boolColumn} }

var roleTables = map[domain.Role]roleTable{
	domain.RoleBusiness: {
		name: "business_profiles",
		columns: []column{
			textCol(domain.FieldBusinessName), textCol(domain.FieldIndustry), textCol(domain.FieldStage),
			textCol(domain.FieldOfferingDescription), boolCol(domain.FieldFundingNeeded), textCol(domain.FieldFundingRange),
			textCol(domain.FieldTeamSize), textCol(domain.FieldRegistrationStatus),
			listCol(domain.FieldNeeds), listCol(domain.FieldServedAreas), listCol(domain.FieldSectors), listCol(domain.FieldSupportPreferences),
		},
	},
	domain.RoleProfessional: {
		name: "professional_profiles",
		columns: []column{
			textCol(domain.FieldProfessionalTitle), listCol(domain.FieldPrimarySkills), textCol(domain.FieldOfferingDescription),
			textCol(domain.FieldExperienceLevel), textCol(domain.FieldAvailability), textCol(domain.FieldWorkMode),
			textCol(domain.FieldRateType), textCol(domain.FieldRateRange), textCol(domain.FieldPortfolioURL),
			listCol(domain.FieldCertifications), listCol(domain.FieldLanguages), listCol(domain.FieldPreferredIndustries),
		},
	},
	domain.RoleCapitalProvider: {
		name: "capital_provider_profiles",
		columns: []column{
			textCol(domain.FieldProviderType), textCol(domain.FieldTicketSizeRange),
			listCol(domain.FieldStageFocus), listCol(domain.FieldSectorFocus), listCol(domain.FieldPreferences), listCol(domain.FieldGeographicFocus),
			textCol(domain.FieldInvestmentThesis), textCol(domain.FieldDecisionTimeline),
		},
	},
	domain.RoleInstitution: {
		name: "institution_profiles",
		columns: []column{
			textCol(domain.FieldInstitutionName), textCol(domain.FieldDepartment), textCol(domain.FieldInstitutionType),
			listCol(domain.FieldMandateAreas), textCol(domain.FieldProgrammeDescription), listCol(domain.FieldCollaborationInterests),
			textCol(domain.FieldContactPersonTitle), textCol(domain.FieldCurrentInitiatives), textCol(domain.FieldEligibilityCriteria),
		},
	},
}

func tableFor(role domain.Role) (roleTable, error) {
	rt, ok := roleTables[role]
	if !ok {
		return roleTable{}, fmt.Errorf("%w: %q", domain.ErrUnknownRole, string(role))
	}
	return rt, nil
}

func (rt roleTable) columnList() string {
	names := make([]string, len(rt.columns))
	for i, c := range rt.columns {
		names[i] = c.name
	}
	return strings.Join(names, ", ")
}

func (rt roleTable) selectSQL() string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE identity_id = $1`, rt.columnList(), rt.name)
}

// upsertSQL binds $1 = identity_id, $2 = updated_at, then the columns in order.
func (rt roleTable) upsertSQL() string {
	placeholders := make([]string, len(rt.columns))
	sets := make([]string, len(rt.columns))
	for i, c := range rt.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name)
	}
	return fmt.Sprintf(`
		INSERT INTO %s (identity_id, updated_at, %s)
		VALUES ($1, $2, %s)
		ON CONFLICT (identity_id) DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			%s
	`, rt.name, rt.columnList(), strings.Join(placeholders, ", "), strings.Join(sets, ",\n\t\t\t"))
}

// args converts extension values into bind arguments in column order.
func (rt roleTable) args(v domain.Values) []any {
	out := make([]any, len(rt.columns))
	for i, c := range rt.columns {
		switch c.kind {
		case listColumn:
			list := v.List(c.name)
			if list == nil {
				list = []string{}
			}
			out[i] = list
		case boolColumn:
			out[i] = v.Bool(c.name)
		default:
			out[i] = v.String(c.name)
		}
	}
	return out
}

// scanTargets returns destinations for selectSQL and a function that collects them into Values.
func (rt roleTable) scanTargets() ([]any, func() domain.Values) {
	dest := make([]any, len(rt.columns))
	for i, c := range rt.columns {
		switch c.kind {
		case listColumn:
			dest[i] = new([]string)
		case boolColumn:
			dest[i] = new(bool)
		default:
			dest[i] = new(string)
		}
	}
	collect := func() domain.Values {
		v := domain.Values{}
		for i, c := range rt.columns {
			switch c.kind {
			case listColumn:
				if list := *(dest[i].(*[]string)); len(list) > 0 {
					v[c.name] = list
				}
			case boolColumn:
				v[c.name] = *(dest[i].(*bool))
			default:
				if s := *(dest[i].(*string)); s != "" {
					v[c.name] = s
				}
			}
		}
		return v
	}
	return dest, collect
}

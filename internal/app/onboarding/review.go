package onboarding

import (
	"context"
	"strings"

	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
	"github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

// Projector renders the stored base profile and active extension as ordered review lines.
// It only reads from the store.
type Projector struct {
	registry *schema.Registry
	store    profilestore.Store
}

func NewProjector(registry *schema.Registry, store profilestore.Store) *Projector {
	return &Projector{registry: registry, store: store}
}

// Project returns the role line, then base fields, then extension fields, each in registry order.
// Absent or empty optional values and false booleans are omitted.
func (p *Projector) Project(ctx context.Context, id domain.IdentityID) ([]ReviewEntry, error) {
	base, err := p.store.ReadBase(ctx, id)
	if err != nil {
		return nil, err
	}
	var extValues domain.Values
	if base.Role.Valid() {
		ext, err := p.store.ReadExtension(ctx, id, base.Role)
		switch {
		case err == nil:
			extValues = ext.Values()
		case !isNotFound(err):
			return nil, err
		}
	}
	return p.project(base.Role, base.Values(), extValues), nil
}

func (p *Projector) project(role domain.Role, baseValues, extValues domain.Values) []ReviewEntry {
	var out []ReviewEntry
	if role.Valid() {
		out = append(out, ReviewEntry{Section: SectionRole, Field: domain.FieldRole, Label: "Role", Value: role.Label()})
	}
	out = appendEntries(out, SectionBasicInfo, p.registry.BaseRules(), baseValues)
	if fields, err := p.registry.Rules(role); err == nil && extValues != nil {
		out = appendEntries(out, SectionRoleDetails, fields, extValues)
	}
	return out
}

func appendEntries(out []ReviewEntry, section string, fields []schema.Field, v domain.Values) []ReviewEntry {
	for _, f := range fields {
		if s := display(f, v); s != "" {
			out = append(out, ReviewEntry{Section: section, Field: f.Name, Label: f.Label, Value: s})
		}
	}
	return out
}

func display(f schema.Field, v domain.Values) string {
	switch f.Kind {
	case schema.KindBool:
		if v.Bool(f.Name) {
			return "Yes"
		}
		return ""
	case schema.KindList:
		items := v.List(f.Name)
		parts := make([]string, 0, len(items))
		for _, it := range items {
			if it = strings.TrimSpace(it); it == "" {
				continue
			}
			if len(f.Options) > 0 {
				it = domain.HumanizeToken(it)
			}
			parts = append(parts, it)
		}
		return strings.Join(parts, ", ")
	case schema.KindEnum:
		return domain.HumanizeToken(v.String(f.Name))
	default:
		return strings.TrimSpace(v.String(f.Name))
	}
}

package schema

import (
	"fmt"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Result is the outcome of validating one step.
type Result struct {
	OK          bool
	FieldErrors []FieldError
	// Values is the normalized candidate restricted to the fields the step declares.
	Values domain.Values
}

// Registry holds the field rules for the shared base profile and each role.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	base  []Field
	roles map[domain.Role][]Field
}

func NewRegistry() *Registry {
	return &Registry{
		base: baseFields(),
		roles: map[domain.Role][]Field{
			domain.RoleBusiness:        businessFields(),
			domain.RoleProfessional:    professionalFields(),
			domain.RoleCapitalProvider: capitalProviderFields(),
			domain.RoleInstitution:     institutionFields(),
		},
	}
}

// BaseRules returns the ordered shared field rules.
func (r *Registry) BaseRules() []Field {
	return append([]Field(nil), r.base...)
}

// Rules returns the ordered field rules for role.
func (r *Registry) Rules(role domain.Role) ([]Field, error) {
	fields, ok := r.roles[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, string(role))
	}
	return append([]Field(nil), fields...), nil
}

// ValidateStep validates candidate values for step. RoleSelect reads the role from values;
// later steps use role. An unknown role is returned as an error, never as a field error.
func (r *Registry) ValidateStep(step domain.Step, role domain.Role, values domain.Values) (Result, error) {
	switch step {
	case domain.StepRoleSelect:
		raw, _ := values[domain.FieldRole].(string)
		if raw == "" {
			return Result{FieldErrors: []FieldError{{
				Field: domain.FieldRole, Code: CodeRequired, Message: "Choose a role to continue",
			}}}, nil
		}
		parsed, err := domain.ParseRole(raw)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %q", domain.ErrUnknownRole, raw)
		}
		return Result{OK: true, Values: domain.Values{domain.FieldRole: string(parsed)}}, nil

	case domain.StepBasicInfo:
		return validate(r.base, values), nil

	case domain.StepRoleDetails:
		fields, err := r.Rules(role)
		if err != nil {
			return Result{}, err
		}
		return validate(fields, values), nil

	case domain.StepReview:
		fields, err := r.Rules(role)
		if err != nil {
			return Result{}, err
		}
		base := validate(r.base, values)
		ext := validate(fields, values)
		out := Result{
			OK:          base.OK && ext.OK,
			FieldErrors: append(base.FieldErrors, ext.FieldErrors...),
			Values:      base.Values.Merge(ext.Values),
		}
		return out, nil

	default:
		return Result{}, fmt.Errorf("step %s has no field rules", step)
	}
}

func validate(fields []Field, candidate domain.Values) Result {
	normalized := domain.Values{}
	var errs []FieldError
	for _, f := range fields {
		raw, present := candidate[f.Name]
		if !present || raw == nil {
			continue
		}
		val, ok := f.normalize(raw)
		if !ok {
			errs = append(errs, *f.fail(CodeInvalidType, fmt.Sprintf("%s must be %s", f.Label, kindPhrase(f.Kind))))
			continue
		}
		if val != nil {
			normalized[f.Name] = val
		}
	}

	for _, f := range fields {
		if hasError(errs, f.Name) {
			continue
		}
		if !normalized.Has(f.Name) {
			if f.required(normalized) {
				errs = append(errs, *f.fail(CodeRequired, f.Label+" is required"))
			}
			continue
		}
		if fe := f.check(normalized[f.Name]); fe != nil {
			errs = append(errs, *fe)
		}
	}

	return Result{OK: len(errs) == 0, FieldErrors: errs, Values: normalized}
}

func hasError(errs []FieldError, name string) bool {
	for _, e := range errs {
		if e.Field == name {
			return true
		}
	}
	return false
}

func kindPhrase(k Kind) string {
	switch k {
	case KindList:
		return "a list of values"
	case KindBool:
		return "yes or no"
	default:
		return "text"
	}
}

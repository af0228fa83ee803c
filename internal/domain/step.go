package domain

import "fmt"

// Step is a position in the onboarding flow. Steps are ordered; a larger value is further along.
type Step int

const (
	StepIdle Step = iota
	StepRoleSelect
	StepBasicInfo
	StepRoleDetails
	StepReview
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepRoleSelect:
		return "role_select"
	case StepBasicInfo:
		return "basic_info"
	case StepRoleDetails:
		return "role_details"
	case StepReview:
		return "review"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ParseStep parses the wire name produced by Step.String.
func ParseStep(s string) (Step, error) {
	for st := StepIdle; st <= StepComplete; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return StepIdle, fmt.Errorf("unknown step %q", s)
}

// Next returns the step reached by a successful forward transition from s.
func (s Step) Next() Step {
	if s >= StepComplete {
		return StepComplete
	}
	return s + 1
}

// Prev returns the target of a backward transition from s.
// RoleSelect and the terminal steps have no predecessor and return themselves.
func (s Step) Prev() Step {
	switch s {
	case StepBasicInfo, StepRoleDetails, StepReview:
		return s - 1
	default:
		return s
	}
}

// Trackable reports whether s can be recorded as a validated draft step (1-4).
func (s Step) Trackable() bool {
	return s >= StepRoleSelect && s <= StepReview
}

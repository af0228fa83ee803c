package httpapi

import (
	"encoding/json"
	"strings"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
)

type SelectRoleRequest struct {
	Role string `json:"role"`
}

type ValuesRequest struct {
	Values map[string]any `json:"values"`
}

type RoleDetailsRequest struct {
	Role           string         `json:"role,omitempty"`
	Values         map[string]any `json:"values"`
	RetirePrevious bool           `json:"retirePrevious,omitempty"`
}

type BackRequest struct {
	From string `json:"from"`
}

type SessionResponse struct {
	Session Session `json:"session"`
}

type Session struct {
	IdentityId  string                                 `json:"identityId"`
	Email       nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
	Step        string                                 `json:"step"`
	Role        nullable.Nullable[string]              `json:"role,omitempty"`
	BasicInfo   map[string]any                         `json:"basicInfo,omitempty"`
	RoleDetails map[string]any                         `json:"roleDetails,omitempty"`
	Completed   bool                                   `json:"completed"`
	PendingSync bool                                   `json:"pendingSync"`
	EditMode    bool                                   `json:"editMode"`
	RoleChange  *RoleChange                            `json:"roleChange,omitempty"`
}

type RoleChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ReviewResponse struct {
	Step      string        `json:"step"`
	Role      string        `json:"role"`
	Completed bool          `json:"completed"`
	Entries   []ReviewEntry `json:"entries"`
}

type ReviewEntry struct {
	Section string `json:"section"`
	Field   string `json:"field"`
	Label   string `json:"label"`
	Value   string `json:"value"`
}

type CompletionResponse struct {
	Outcome string                    `json:"outcome"`
	Tier    string                    `json:"tier"`
	Step    string                    `json:"step"`
	Role    string                    `json:"role"`
	Message string                    `json:"message"`
	Reason  nullable.Nullable[string] `json:"reason,omitempty"`
}

type ProfileStatusResponse struct {
	IsProfileComplete bool                      `json:"isProfileComplete"`
	Role              nullable.Nullable[string] `json:"role,omitempty"`
	PendingSync       bool                      `json:"pendingSync"`
}

func sessionFromApp(sess onboarding.Session, who domain.Identity) Session {
	out := Session{
		IdentityId:  string(sess.IdentityID),
		Email:       emailOrUnset(who.Email),
		Step:        sess.Step.String(),
		Role:        roleOrUnset(sess.Role),
		BasicInfo:   sess.Base,
		RoleDetails: sess.Extension,
		Completed:   sess.Completed,
		PendingSync: sess.PendingSync,
		EditMode:    sess.EditMode,
	}
	if sess.RoleChanged != nil {
		out.RoleChange = &RoleChange{From: string(sess.RoleChanged.From), To: string(sess.RoleChanged.To)}
	}
	return out
}

func reviewFromApp(v onboarding.ReviewView) ReviewResponse {
	out := ReviewResponse{
		Step:      v.Step.String(),
		Role:      string(v.Role),
		Completed: v.Completed,
		Entries:   make([]ReviewEntry, 0, len(v.Entries)),
	}
	for _, e := range v.Entries {
		out.Entries = append(out.Entries, ReviewEntry{Section: e.Section, Field: e.Field, Label: e.Label, Value: e.Value})
	}
	return out
}

func completionFromApp(res onboarding.CompletionResult) CompletionResponse {
	out := CompletionResponse{
		Outcome: string(res.Outcome),
		Tier:    string(res.Tier),
		Step:    res.Step.String(),
		Role:    string(res.Role),
		Message: res.Message,
	}
	if res.Reason != "" {
		out.Reason = nullable.NewNullableWithValue(res.Reason)
	}
	return out
}

func statusFromApp(st onboarding.ProfileStatus) ProfileStatusResponse {
	return ProfileStatusResponse{
		IsProfileComplete: st.IsProfileComplete,
		Role:              roleOrUnset(st.Role),
		PendingSync:       st.PendingSync,
	}
}

func fieldErrorDetails(step domain.Step, errs []schema.FieldError) map[string]any {
	return map[string]any{
		"step":        step.String(),
		"fieldErrors": errs,
	}
}

func roleOrUnset(r domain.Role) nullable.Nullable[string] {
	if r == "" {
		return nullable.Nullable[string]{}
	}
	return nullable.NewNullableWithValue(string(r))
}

// emailOrUnset drops addresses the Email type would refuse to encode.
func emailOrUnset(s string) nullable.Nullable[openapi_types.Email] {
	s = strings.TrimSpace(s)
	if s == "" {
		return nullable.Nullable[openapi_types.Email]{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nullable.Nullable[openapi_types.Email]{}
	}
	var e openapi_types.Email
	if err := json.Unmarshal(raw, &e); err != nil {
		return nullable.Nullable[openapi_types.Email]{}
	}
	return nullable.NewNullableWithValue(e)
}

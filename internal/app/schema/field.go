package schema

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/directoryhub/onboarding-api/internal/domain"
)

// Kind is the primitive type of a field.
type Kind int

const (
	KindText Kind = iota
	KindEnum
	KindList
	KindBool
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindEnum:
		return "enum"
	case KindList:
		return "list"
	case KindBool:
		return "bool"
	case KindURL:
		return "url"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field error codes.
const (
	CodeRequired      = "required"
	CodeInvalidType   = "invalid_type"
	CodeInvalidOption = "invalid_option"
	CodeTooLong       = "too_long"
	CodeTooFewItems   = "too_few_items"
	CodeTooManyItems  = "too_many_items"
	CodeInvalidURL    = "invalid_url"
)

// FieldError is a single per-field validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Field is one constraint in a role's ordered rule list.
type Field struct {
	Name  string
	Label string
	Kind  Kind

	Required bool
	// RequiredWhen makes an optional field required based on the other normalized values.
	RequiredWhen func(v domain.Values) bool

	// Options restricts enum values (and list items, when set) to fixed tokens.
	Options  []string
	MaxLen   int
	MinItems int
	MaxItems int
	// Multiline text keeps internal line breaks; other text collapses whitespace runs.
	Multiline bool
}

func (f Field) required(v domain.Values) bool {
	if f.Required {
		return true
	}
	return f.RequiredWhen != nil && f.RequiredWhen(v)
}

// normalize converts a raw candidate value into the field's canonical form.
// ok=false means the raw value has the wrong shape for the field kind.
func (f Field) normalize(raw any) (any, bool) {
	switch f.Kind {
	case KindBool:
		switch t := raw.(type) {
		case bool:
			return t, true
		case string:
			s := strings.ToLower(strings.TrimSpace(t))
			switch s {
			case "":
				return nil, true
			case "yes", "y":
				return true, true
			case "no", "n":
				return false, true
			}
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, false
			}
			return b, true
		default:
			return nil, false
		}
	case KindList:
		var items []string
		switch t := raw.(type) {
		case []string:
			items = append([]string(nil), t...)
		case []any:
			for _, e := range t {
				s, ok := e.(string)
				if !ok {
					return nil, false
				}
				items = append(items, s)
			}
		case string:
			items = strings.Split(t, ",")
		default:
			return nil, false
		}
		if len(f.Options) > 0 {
			for i := range items {
				items[i] = domain.NormalizeToken(items[i])
			}
		}
		out := domain.DedupeStrings(items)
		if len(out) == 0 {
			return nil, true
		}
		return out, true
	default:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		switch f.Kind {
		case KindEnum:
			s = domain.NormalizeToken(s)
		case KindURL:
			s = strings.TrimSpace(s)
			if s != "" && !strings.Contains(s, "://") {
				s = "https://" + s
			}
		default:
			if f.Multiline {
				s = strings.TrimSpace(s)
			} else {
				s = domain.NormalizeHumanName(s)
			}
		}
		if s == "" {
			return nil, true
		}
		return s, true
	}
}

// check validates a present, normalized value.
func (f Field) check(val any) *FieldError {
	switch t := val.(type) {
	case string:
		if f.MaxLen > 0 && len([]rune(t)) > f.MaxLen {
			return f.fail(CodeTooLong, fmt.Sprintf("%s must be at most %d characters", f.Label, f.MaxLen))
		}
		switch f.Kind {
		case KindEnum:
			if !containsToken(f.Options, t) {
				return f.fail(CodeInvalidOption, fmt.Sprintf("%s must be one of: %s", f.Label, strings.Join(f.Options, ", ")))
			}
		case KindURL:
			u, err := url.Parse(t)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return f.fail(CodeInvalidURL, fmt.Sprintf("%s must be a valid web address", f.Label))
			}
		}
	case []string:
		if f.MinItems > 0 && len(t) < f.MinItems {
			return f.fail(CodeTooFewItems, fmt.Sprintf("%s needs at least %d item(s)", f.Label, f.MinItems))
		}
		if f.MaxItems > 0 && len(t) > f.MaxItems {
			return f.fail(CodeTooManyItems, fmt.Sprintf("%s allows at most %d items", f.Label, f.MaxItems))
		}
		if len(f.Options) > 0 {
			for _, item := range t {
				if !containsToken(f.Options, item) {
					return f.fail(CodeInvalidOption, fmt.Sprintf("%s contains an unsupported value %q", f.Label, item))
				}
			}
		}
	}
	return nil
}

func (f Field) fail(code, msg string) *FieldError {
	return &FieldError{Field: f.Name, Code: code, Message: msg}
}

func containsToken(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	memclock "github.com/directoryhub/onboarding-api/internal/adapters/memory/clock"
	memdegraded "github.com/directoryhub/onboarding-api/internal/adapters/memory/degradedstore"
	memdrafttracker "github.com/directoryhub/onboarding-api/internal/adapters/memory/drafttracker"
	memidempotency "github.com/directoryhub/onboarding-api/internal/adapters/memory/idempotency"
	memprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/memory/profilestore"
	memrouting "github.com/directoryhub/onboarding-api/internal/adapters/memory/routing"
	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	"github.com/directoryhub/onboarding-api/internal/domain"
)

type apiFixture struct {
	h     http.Handler
	store *memprofilestore.Store
	pub   *memrouting.Publisher
}

type fixtureOptions struct {
	policy          memprofilestore.Policy
	degradedEnabled bool
	auth            func(http.Handler) http.Handler
}

func newAPIFixture(t *testing.T, o fixtureOptions) *apiFixture {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	var opts []memprofilestore.Option
	if o.policy != nil {
		opts = append(opts, memprofilestore.WithCommitPolicy(o.policy))
	}
	store := memprofilestore.NewStore(clk, opts...)
	degraded := memdegraded.NewStore()
	pub := memrouting.NewPublisher()

	coord := completion.NewCoordinator(store, clk, completion.Options{
		Degraded:        degraded,
		DegradedEnabled: o.degradedEnabled,
	})
	rec := completion.NewReconciler(store, degraded, clk, completion.ReconcilerOptions{})
	svc := onboarding.NewService(schema.NewRegistry(), store, memdrafttracker.NewTracker(clk), coord, clk, onboarding.Options{
		Reconciler: rec,
		Publisher:  pub,
	})

	auth := o.auth
	if auth == nil {
		auth = NewDevAuthMiddleware("", "")
	}
	api := NewServer(svc, memidempotency.NewStore(), nil)
	h := NewRouterWithOptions(api, RouterOptions{AuthMiddleware: auth})
	return &apiFixture{h: h, store: store, pub: pub}
}

var errDenied = errors.New("row-level security denied")

func denyAll(context.Context, domain.BaseProfile) error { return errDenied }

func (f *apiFixture) do(t *testing.T, method, path, subject string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf *bytes.Reader
	switch b := body.(type) {
	case nil:
		buf = bytes.NewReader(nil)
	case string:
		buf = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
		req.Header.Set("X-Debug-Email", subject+"@example.com")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

// toReview walks subject through the flow as a business owner.
func (f *apiFixture) toReview(t *testing.T, subject string) {
	t.Helper()

	steps := []struct {
		path string
		body any
		want string
	}{
		{"/onboarding/role", SelectRoleRequest{Role: "business"}, "basic_info"},
		{"/onboarding/basic-info", ValuesRequest{Values: map[string]any{
			"full_name": "Jane Doe",
			"country":   "Zambia",
			"city":      "Lusaka",
			"bio":       "Building things that last.",
		}}, "role_details"},
		{"/onboarding/role-details", RoleDetailsRequest{Values: map[string]any{
			"business_name": "Jane Co",
			"industry":      "Agriculture",
			"stage":         "Early stage",
		}}, "review"},
	}
	for _, st := range steps {
		rec := f.do(t, http.MethodPost, st.path, subject, st.body, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", st.path, rec.Code, rec.Body.String())
		}
		got := decode[SessionResponse](t, rec)
		if got.Session.Step != st.want {
			t.Fatalf("%s: step=%q want %q", st.path, got.Session.Step, st.want)
		}
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return out
}

type errorEnvelope struct {
	Error struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		RequestId string         `json:"requestId"`
	} `json:"error"`
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorEnvelope {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, status, rec.Body.String())
	}
	er := decode[errorEnvelope](t, rec)
	if er.Error.Code != code {
		t.Fatalf("error.code=%q want=%q body=%s", er.Error.Code, code, rec.Body.String())
	}
	return er
}

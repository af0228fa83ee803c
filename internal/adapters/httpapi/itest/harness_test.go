package itest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/directoryhub/onboarding-api/internal/adapters/httpapi"
	memclock "github.com/directoryhub/onboarding-api/internal/adapters/memory/clock"
	memdegraded "github.com/directoryhub/onboarding-api/internal/adapters/memory/degradedstore"
	memdrafttracker "github.com/directoryhub/onboarding-api/internal/adapters/memory/drafttracker"
	memidempotency "github.com/directoryhub/onboarding-api/internal/adapters/memory/idempotency"
	memprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/memory/profilestore"
	memrouting "github.com/directoryhub/onboarding-api/internal/adapters/memory/routing"
	pgidempotency "github.com/directoryhub/onboarding-api/internal/adapters/postgres/idempotency"
	pgprofilestore "github.com/directoryhub/onboarding-api/internal/adapters/postgres/profilestore"
	postgres_testutil "github.com/directoryhub/onboarding-api/internal/adapters/postgres/testutil"
	"github.com/directoryhub/onboarding-api/internal/app/completion"
	"github.com/directoryhub/onboarding-api/internal/app/onboarding"
	"github.com/directoryhub/onboarding-api/internal/app/schema"
	idempotencyport "github.com/directoryhub/onboarding-api/internal/ports/out/idempotency"
	profilestoreport "github.com/directoryhub/onboarding-api/internal/ports/out/profilestore"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	const issuer = "itest-issuer"
	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var (
		store     profilestoreport.Store
		idemStore idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		store = pgprofilestore.NewStore(pool, clk, pgprofilestore.Options{})
		idemStore = pgidempotency.NewStore(pool, issuer)
	case backendMemory:
		store = memprofilestore.NewStore(clk)
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	degraded := memdegraded.NewStore()
	coord := completion.NewCoordinator(store, clk, completion.Options{Degraded: degraded, DegradedEnabled: true})
	rec := completion.NewReconciler(store, degraded, clk, completion.ReconcilerOptions{})
	svc := onboarding.NewService(schema.NewRegistry(), store, memdrafttracker.NewTracker(clk), coord, clk, onboarding.Options{
		Reconciler: rec,
		Publisher:  memrouting.NewPublisher(),
	})
	api := httpapi.NewServer(svc, idemStore, nil)

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	// The empty default subject means requests MUST provide X-Debug-Subject.
	authMW := httpapi.NewDevAuthMiddleware("", "")
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: authMW})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}

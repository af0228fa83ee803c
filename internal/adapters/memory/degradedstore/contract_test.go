package degradedstore

import (
	"testing"

	"github.com/directoryhub/onboarding-api/internal/adapters/contracttest"
	degradedstoreport "github.com/directoryhub/onboarding-api/internal/ports/out/degradedstore"
)

func TestContract_DegradedStore(t *testing.T) {
	contracttest.RunDegradedStore(t, func(t *testing.T) (degradedstoreport.Store, func()) {
		t.Helper()
		return NewStore(), nil
	})
}

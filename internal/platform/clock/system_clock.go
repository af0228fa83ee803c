package clock

import (
	"time"

	portclock "github.com/directoryhub/onboarding-api/internal/ports/out/clock"
)

// SystemClock returns the current wall-clock time in UTC.
type SystemClock struct{}

var _ portclock.Clock = SystemClock{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }

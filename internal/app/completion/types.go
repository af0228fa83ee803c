package completion

import "errors"

// Outcome is the typed result of a completion attempt.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeFailure  Outcome = "failure"
)

// Tier names the write path that produced an outcome.
type Tier string

const (
	TierPrimary    Tier = "primary"
	TierPrivileged Tier = "privileged"
	TierDegraded   Tier = "degraded_store"
	TierNone       Tier = "none"
)

const (
	MessageSuccess  = "Your profile is complete."
	MessageDegraded = "Your profile was saved and will finish syncing shortly."
	MessageFailure  = "We could not complete your profile. Please try again."
)

// ErrDegradedDisabled is the failure reason when every write tier failed and no degraded store is configured.
var ErrDegradedDisabled = errors.New("degraded mode disabled")

// Result is returned by Coordinator.Complete. Failures are values, not errors.
type Result struct {
	Outcome Outcome
	Tier    Tier
	// Reason is a short description of why the primary path did not succeed. Empty on a primary success.
	Reason string
	// Err is the last underlying error for Degraded and Failure outcomes.
	Err error
}

func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeSuccess || r.Outcome == OutcomeDegraded
}

// Message is the end-user text for the outcome. Degraded never reads as fully synchronized.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return MessageSuccess
	case OutcomeDegraded:
		return MessageDegraded
	default:
		return MessageFailure
	}
}

package profilestore

import "errors"

var (
	// ErrNotFound indicates the requested base profile or extension does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrRoleConflict indicates an extension of a different role is already active for the identity.
	ErrRoleConflict = errors.New("role extension conflict")

	// ErrRoleMismatch indicates the base role and the extension role disagree at commit time.
	ErrRoleMismatch = errors.New("role mismatch")

	// ErrAuthorization indicates the store's access policy rejected the write.
	ErrAuthorization = errors.New("profile store authorization failure")

	// ErrUnavailable indicates the store could not be reached.
	ErrUnavailable = errors.New("profile store unavailable")
)

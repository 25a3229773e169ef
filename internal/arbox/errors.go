package arbox

import (
	"errors"
	"fmt"
)

// ErrNotAuthenticated is returned by authenticated calls made before a
// successful Login. It is raised before any network I/O happens.
var ErrNotAuthenticated = errors.New("arbox: not authenticated, login first")

// AuthError wraps any failure of the login call: transport errors, an
// upstream rejection, or a malformed credential response.
type AuthError struct {
	Message string // upstream message, when present
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("arbox: authentication failed: %s", e.Message)
	}
	return fmt.Sprintf("arbox: authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError wraps an authenticated call rejected by the upstream (non-2xx) or
// failing in transport. Status is zero for transport failures.
type APIError struct {
	Status  int
	Path    string
	Message string // upstream message, when present
	Err     error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("arbox: request %s failed: %s (status %d)", e.Path, e.Message, e.Status)
	case e.Status != 0:
		return fmt.Sprintf("arbox: request %s failed with status %d", e.Path, e.Status)
	default:
		return fmt.Sprintf("arbox: request %s failed: %v", e.Path, e.Err)
	}
}

func (e *APIError) Unwrap() error { return e.Err }

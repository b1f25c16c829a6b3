package thread

import (
	"errors"
	"fmt"
)

// Sentinel errors for thread operations. Checked with errors.Is().
//
// Example:
//
//	th, err := svc.Load(ctx, id, userID)
//	if errors.Is(err, thread.ErrNotFound) {
//	    // 404
//	}
var (
	// ErrNotFound indicates no thread exists with the requested ID.
	ErrNotFound = errors.New("thread not found")

	// ErrForbidden indicates the thread belongs to a different user.
	// Ownership is never silently bypassed.
	ErrForbidden = errors.New("thread access forbidden")

	// ErrTurnInProgress indicates a turn is already running on the thread.
	// A second concurrent turn is refused, not interleaved.
	ErrTurnInProgress = errors.New("turn already in progress")

	// ErrPersistence wraps storage failures so callers can distinguish
	// "answer was generated but not saved" from generation failures.
	ErrPersistence = errors.New("thread persistence failed")
)

// AuthRequiredError reports that a tool server rejected the turn's
// credentials. The turn stops but the thread stays usable; the user is
// expected to re-authenticate and retry. Server may be empty when the
// failing server could not be identified.
type AuthRequiredError struct {
	Server string
}

func (e *AuthRequiredError) Error() string {
	if e.Server == "" {
		return "authentication required"
	}
	return fmt.Sprintf("authentication required for MCP server %q", e.Server)
}

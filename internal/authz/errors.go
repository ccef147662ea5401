package authz

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated indicates that no user could be resolved for the
// request. It is never conflated with a permission denial.
var ErrUnauthenticated = errors.New("authz: authentication required")

// PermissionError reports a denied action for a resolved user. Reason and
// ResourceID are for logs; the boundary message stays generic so denied
// callers learn nothing about the resource.
type PermissionError struct {
	Action     Action
	Reason     DenyReason
	ResourceID string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("authz: permission denied for action %s", e.Action)
}

// IsPermissionDenied reports whether err is a permission denial.
func IsPermissionDenied(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

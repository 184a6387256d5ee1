package models

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup for a record that is absent from its collection.
var ErrNotFound = errors.New("record not found")

// AuthError signals a failed sign-in or an invalid session.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

// WriteError wraps a create, update or delete rejected by the store. The
// original design swallowed these at the call site; here they travel back to
// the caller so the presentation layer can surface an actionable message.
type WriteError struct {
	Collection Collection
	Op         string
	ID         string
	Err        error
}

func (e *WriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// SubscriptionError signals a failed or broken live-update channel.
type SubscriptionError struct {
	Collection Collection
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// ValidationError reports a request rejected before it reaches the core.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

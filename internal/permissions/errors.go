package permissions

import "fmt"

// Kind classifies a permission error
type Kind string

const (
	KindMissingPermission     Kind = "MissingPermission"
	KindMissingUserPermission Kind = "MissingUserPermission"
	KindNotFound              Kind = "NotFound"
	KindNotElevated           Kind = "NotElevated"
	KindInvalidOperation      Kind = "InvalidOperation"
	KindNoEffect              Kind = "NoEffect"
	KindDatabase              Kind = "DatabaseError"
	KindInternal              Kind = "InternalError"
)

// Error is a typed permission failure
type Error struct {
	Kind       Kind
	Permission string
	Err        error
}

// Sentinels for errors.Is; comparison is by Kind only
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrNotElevated      = &Error{Kind: KindNotElevated}
	ErrInvalidOperation = &Error{Kind: KindInvalidOperation}
	ErrNoEffect         = &Error{Kind: KindNoEffect}
)

func (e *Error) Error() string {
	switch {
	case e.Permission != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Permission)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// FromChannelPermission builds the error for a missing channel permission
func FromChannelPermission(p ChannelPermission) error {
	if p == ViewChannel {
		return &Error{Kind: KindNotFound}
	}
	return &Error{Kind: KindMissingPermission, Permission: p.String()}
}

// FromUserPermission builds the error for a missing user permission
func FromUserPermission(p UserPermission) error {
	if p == UserAccess {
		return &Error{Kind: KindNotFound}
	}
	return &Error{Kind: KindMissingUserPermission, Permission: p.String()}
}

// DatabaseError wraps a storage failure
func DatabaseError(operation string, err error) error {
	return &Error{Kind: KindDatabase, Err: fmt.Errorf("%s: %w", operation, err)}
}

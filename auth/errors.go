package auth

import (
	"errors"
	"fmt"
)

// ErrNoToken means no credential has been persisted yet.
var ErrNoToken = errors.New("no stored token")

// AuthenticationError reports that a usable credential could not be
// produced: consent failed or was cancelled, the client configuration is
// invalid, or the stored token is unreadable.
type AuthenticationError struct {
	Op  string
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Op, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// IsAuthenticationError reports whether err (or any error in its chain) is
// an AuthenticationError.
func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

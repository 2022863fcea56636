// Package mail defines the provider-neutral view of a mailbox and the
// fetch boundary the rest of the program uses.
package mail

import (
	"context"
	"errors"
	"fmt"
)

// Well-known labels.
const (
	LabelSpam  = "SPAM"
	LabelInbox = "INBOX"
)

// Provider is an authenticated mailbox. Each call is one synchronous round
// trip to the server.
type Provider interface {
	// ListMessages returns up to maxResults message ids carrying label, newest
	// first.
	ListMessages(ctx context.Context, label string, maxResults int64) ([]string, error)
	// FetchSnippet returns the short plain-text preview of a message.
	FetchSnippet(ctx context.Context, id string) (string, error)
}

// Snippet is one fetched message preview.
type Snippet struct {
	ID   string
	Text string
}

// FetchError reports a provider failure.
type FetchError struct {
	Label string
	ID    string
	Op    string
	Err   error
	// Unauthorized is set when the server rejected the credential.
	Unauthorized bool
}

func (e *FetchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s message %s: %v", e.Op, e.Label, e.ID, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Label, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err (or any error in its chain) is a
// FetchError.
func IsFetchError(err error) bool {
	var fetchErr *FetchError
	return errors.As(err, &fetchErr)
}

// IsUnauthorized reports whether err says the server rejected the
// credential.
func IsUnauthorized(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) && fetchErr.Unauthorized {
		return true
	}
	return isUnauthorized(err)
}

// Unauthorized marks err as a credential rejection. Providers wrap their
// 401-style failures with it so Fetch can classify them.
func Unauthorized(err error) error {
	return &unauthorizedError{err: err}
}

type unauthorizedError struct{ err error }

func (e *unauthorizedError) Error() string { return e.err.Error() }
func (e *unauthorizedError) Unwrap() error { return e.err }

func isUnauthorized(err error) bool {
	var u *unauthorizedError
	return errors.As(err, &u)
}

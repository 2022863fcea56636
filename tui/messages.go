package tui

import (
	"time"

	"github.com/bassamadnan/mailsight/analyze"
	"github.com/bassamadnan/mailsight/controller"
	"github.com/bassamadnan/mailsight/mail"
)

// AuthURLMsg carries the consent URL while authorization waits for the
// browser.
type AuthURLMsg struct{ URL string }

// A message to indicate an error occurred, typically from a command.
type ErrorMsg struct{ Err error }

func (e ErrorMsg) Error() string { return e.Err.Error() }

// A message for timed status updates.
type StatusTickMsg struct{ Time time.Time }

type authDoneMsg struct{ err error }

type cloudDoneMsg struct {
	view   controller.CloudView
	inline string
	err    error
}

type inboxDoneMsg struct {
	batch mail.Batch
	err   error
}

type analysisDoneMsg struct {
	snippet mail.Snippet
	result  analyze.Result
	err     error
}

// Message to clear a temporary status message after a timeout.
type clearTempStatusMsg struct{}

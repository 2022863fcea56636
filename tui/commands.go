package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bassamadnan/mailsight/controller"
	"github.com/bassamadnan/mailsight/mail"
	"github.com/bassamadnan/mailsight/preview"
)

func authenticateCmd(ctx context.Context, ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		return authDoneMsg{err: ctrl.Authenticate(ctx)}
	}
}

// wordCloudCmd runs the word cloud pipeline and, when the terminal can show
// images, prepares the inline rendering of the saved PNG.
func wordCloudCmd(ctx context.Context, ctrl *controller.Controller, cols, rows int) tea.Cmd {
	return func() tea.Msg {
		view, err := ctrl.WordCloud(ctx)
		if err != nil || view.Path == "" {
			return cloudDoneMsg{view: view, err: err}
		}
		inline, inlineErr := preview.Inline(view.Path, cols, rows)
		if inlineErr != nil && !errors.Is(inlineErr, preview.ErrUnsupported) {
			return cloudDoneMsg{view: view, err: inlineErr}
		}
		return cloudDoneMsg{view: view, inline: inline}
	}
}

func inboxCmd(ctx context.Context, ctrl *controller.Controller) tea.Cmd {
	return func() tea.Msg {
		batch, err := ctrl.Inbox(ctx)
		return inboxDoneMsg{batch: batch, err: err}
	}
}

func analyzeCmd(ctx context.Context, ctrl *controller.Controller, snippet mail.Snippet) tea.Cmd {
	return func() tea.Msg {
		result, err := ctrl.Analyze(ctx, snippet)
		return analysisDoneMsg{snippet: snippet, result: result, err: err}
	}
}

func openCmd(target string) tea.Cmd {
	return func() tea.Msg {
		if err := preview.Open(target); err != nil {
			return ErrorMsg{Err: err}
		}
		return nil
	}
}

// statusTickCmd creates a ticker for updating the status bar periodically.
func statusTickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return StatusTickMsg{Time: t}
	})
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/analyze"
	"github.com/bassamadnan/mailsight/auth"
	"github.com/bassamadnan/mailsight/controller"
	"github.com/bassamadnan/mailsight/mail"
)

type viewState int

const (
	viewWelcome viewState = iota
	viewWordCloud
	viewInbox
	viewAnalysis
)

const (
	snippetListItemHeight = 4
	sidebarWidth          = 24
	minContentPaneWidth   = 40
	chartWords            = 15
)

var modes = []controller.Mode{controller.ModeWordCloud, controller.ModeAnalysis}

type Model struct {
	ctx      context.Context
	ctrl     *controller.Controller
	provider string
	log      zerolog.Logger
	keys     keyMap
	spinner  spinner.Model

	currentView viewState
	modeIdx     int
	busy        bool
	busyText    string
	authURL     string

	cloud       *controller.CloudView
	cloudInline string

	inbox           mail.Batch
	selectedIdx     int
	viewportTopLine int

	analyzed mail.Snippet
	result   *analyze.Result

	width, height int
	statusBarText string
	statusIsError bool
	statusIsTemp  bool
}

// NewModel builds the program model. provider names the mail backend in
// the welcome screen.
func NewModel(ctx context.Context, ctrl *controller.Controller, provider string, log zerolog.Logger) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle
	m := Model{
		ctx:         ctx,
		ctrl:        ctrl,
		provider:    provider,
		log:         log.With().Str("component", "tui").Logger(),
		keys:        defaultKeyMap(),
		spinner:     sp,
		currentView: viewWelcome,
	}
	m.setStandardStatus()
	return m
}

func (m Model) Init() tea.Cmd {
	m.log.Debug().Msg("model init")
	return statusTickCmd(1 * time.Second)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureSelectedVisible()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case AuthURLMsg:
		m.authURL = msg.URL

	case authDoneMsg:
		m.busy = false
		m.authURL = ""
		if msg.err != nil {
			m.updateStatusError(authFailure(msg.err))
			break
		}
		m.log.Info().Msg("signed in")
		cmds = append(cmds, m.enterMode(modes[m.modeIdx]))

	case cloudDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.updateStatusError(fmt.Sprintf("Word cloud failed: %v", msg.err))
			break
		}
		m.cloud = &msg.view
		m.cloudInline = msg.inline
		m.reportBatch(msg.view.Batch, &cmds)

	case inboxDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.updateStatusError(fmt.Sprintf("Inbox failed: %v", msg.err))
			break
		}
		m.inbox = msg.batch
		m.selectedIdx = 0
		m.viewportTopLine = 0
		m.reportBatch(msg.batch, &cmds)

	case analysisDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.updateStatusError(fmt.Sprintf("Analysis failed: %v", msg.err))
			break
		}
		m.analyzed = msg.snippet
		m.result = &msg.result
		if msg.result.Failed() {
			m.updateStatusError("Analysis failed: " + msg.result.SummaryErr.Error())
		} else if msg.result.SummaryErr != nil || msg.result.SentimentErr != nil {
			m.showTemporaryStatus("Analysis partly failed", 4*time.Second, &cmds)
		}

	case ErrorMsg:
		m.log.Error().Err(msg.Err).Msg("command failed")
		m.updateStatusError(fmt.Sprintf("Error: %v", msg.Err))

	case StatusTickMsg:
		if !m.statusIsTemp && !m.statusIsError {
			m.setStandardStatus()
		}
		cmds = append(cmds, statusTickCmd(1*time.Second))

	case clearTempStatusMsg:
		if m.statusIsTemp {
			m.statusIsTemp = false
			m.setStandardStatus()
		}
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.updateStatusBar("Quitting...")
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}

	switch m.currentView {
	case viewWelcome:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.moveMode(-1)
		case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Switch):
			m.moveMode(1)
		case key.Matches(msg, m.keys.Auth), key.Matches(msg, m.keys.Select):
			return m, m.startBusy("Waiting for authorization...", authenticateCmd(m.ctx, m.ctrl))
		}

	case viewWordCloud:
		switch {
		case key.Matches(msg, m.keys.Switch):
			m.moveMode(1)
			return m, m.enterMode(modes[m.modeIdx])
		case key.Matches(msg, m.keys.Refresh), key.Matches(msg, m.keys.Select):
			return m, m.enterMode(controller.ModeWordCloud)
		case key.Matches(msg, m.keys.Open):
			if m.cloud != nil && m.cloud.Path != "" {
				return m, openCmd(m.cloud.Path)
			}
		}

	case viewInbox:
		switch {
		case key.Matches(msg, m.keys.Switch):
			m.moveMode(1)
			return m, m.enterMode(modes[m.modeIdx])
		case key.Matches(msg, m.keys.Refresh):
			return m, m.enterMode(controller.ModeAnalysis)
		case key.Matches(msg, m.keys.Up):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.ensureSelectedVisible()
			}
		case key.Matches(msg, m.keys.Down):
			if m.selectedIdx < len(m.inbox.Snippets)-1 {
				m.selectedIdx++
				m.ensureSelectedVisible()
			}
		case key.Matches(msg, m.keys.Select):
			if snippet, ok := m.selectedSnippet(); ok {
				m.currentView = viewAnalysis
				m.result = nil
				m.analyzed = snippet
				return m, m.startBusy("Analyzing message...", analyzeCmd(m.ctx, m.ctrl, snippet))
			}
		}

	case viewAnalysis:
		switch {
		case key.Matches(msg, m.keys.Back):
			m.currentView = viewInbox
			m.setStandardStatus()
		case key.Matches(msg, m.keys.Refresh):
			m.result = nil
			return m, m.startBusy("Analyzing message...", analyzeCmd(m.ctx, m.ctrl, m.analyzed))
		case key.Matches(msg, m.keys.Switch):
			m.moveMode(1)
			return m, m.enterMode(modes[m.modeIdx])
		}
	}
	return m, nil
}

func (m *Model) moveMode(delta int) {
	m.modeIdx = (m.modeIdx + delta + len(modes)) % len(modes)
	m.ctrl.SelectMode(modes[m.modeIdx])
	m.setStandardStatus()
}

// enterMode switches to the mode's view and re-runs its pipeline.
func (m *Model) enterMode(mode controller.Mode) tea.Cmd {
	m.ctrl.SelectMode(mode)
	switch mode {
	case controller.ModeAnalysis:
		m.currentView = viewInbox
		return m.startBusy("Fetching inbox...", inboxCmd(m.ctx, m.ctrl))
	default:
		m.currentView = viewWordCloud
		cols, rows := m.contentSize()
		return m.startBusy("Building word cloud...", wordCloudCmd(m.ctx, m.ctrl, cols, rows-6))
	}
}

func (m *Model) startBusy(text string, cmd tea.Cmd) tea.Cmd {
	m.busy = true
	m.busyText = text
	m.updateStatusBar(text)
	return tea.Batch(cmd, m.spinner.Tick)
}

// reportBatch tells a failed fetch apart from an empty one.
func (m *Model) reportBatch(batch mail.Batch, cmds *[]tea.Cmd) {
	switch {
	case batch.Failed():
		text := fmt.Sprintf("Could not fetch %s messages: %v", batch.Label, batch.Err.Err)
		if batch.Err.Unauthorized {
			text += " (sign-in will be repeated on the next request)"
		}
		m.updateStatusError(text)
	case batch.Empty():
		m.showTemporaryStatus(fmt.Sprintf("No %s messages found", batch.Label), 4*time.Second, cmds)
	case len(batch.Skipped) > 0:
		m.showTemporaryStatus(fmt.Sprintf("Fetched %d messages, skipped %d", len(batch.Snippets), len(batch.Skipped)), 4*time.Second, cmds)
	default:
		m.showTemporaryStatus(fmt.Sprintf("Fetched %d messages", len(batch.Snippets)), 3*time.Second, cmds)
	}
}

func (m Model) selectedSnippet() (mail.Snippet, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.inbox.Snippets) {
		return mail.Snippet{}, false
	}
	return m.inbox.Snippets[m.selectedIdx], true
}

func authFailure(err error) string {
	var authErr *auth.AuthenticationError
	switch {
	case errors.As(err, &authErr):
		return fmt.Sprintf("Sign-in failed: %v", authErr.Err)
	case mail.IsUnauthorized(err):
		return fmt.Sprintf("Credentials rejected: %v", err)
	}
	return fmt.Sprintf("Could not connect: %v", err)
}

func (m *Model) showTemporaryStatus(text string, duration time.Duration, cmds *[]tea.Cmd) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = true
	*cmds = append(*cmds, tea.Tick(duration, func(t time.Time) tea.Msg {
		return clearTempStatusMsg{}
	}))
}

func (m *Model) updateStatusBar(text string) {
	m.statusBarText = text
	m.statusIsError = false
	m.statusIsTemp = false
}

func (m *Model) updateStatusError(text string) {
	m.statusBarText = text
	m.statusIsError = true
	m.statusIsTemp = false
}

func (m *Model) setStandardStatus() {
	if m.statusIsTemp || m.busy {
		return
	}

	statusMsg := fmt.Sprintf(" %s | %s | %s ",
		m.ctrl.State(), modes[m.modeIdx], time.Now().Format("15:04:05"))

	var keyHints string
	switch m.currentView {
	case viewWelcome:
		keyHints = hint(m.keys.Quit, m.keys.Up, m.keys.Down, m.keys.Auth)
	case viewWordCloud:
		keyHints = hint(m.keys.Quit, m.keys.Switch, m.keys.Refresh, m.keys.Open)
	case viewInbox:
		keyHints = hint(m.keys.Quit, m.keys.Switch, m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Refresh)
	case viewAnalysis:
		keyHints = hint(m.keys.Quit, m.keys.Back, m.keys.Refresh, m.keys.Switch)
	}
	m.updateStatusBar(statusMsg + "| " + keyHints)
}

func (m Model) getNumItemsThatFitInList() int {
	_, h := m.contentSize()
	h -= lipgloss.Height(TitleStyle.Render(" "))
	if h <= 0 {
		return 0
	}
	return h / snippetListItemHeight
}

func (m *Model) ensureSelectedVisible() {
	if len(m.inbox.Snippets) == 0 {
		m.viewportTopLine = 0
		return
	}

	itemsThatFit := m.getNumItemsThatFitInList()
	if itemsThatFit <= 0 {
		m.viewportTopLine = m.selectedIdx
		return
	}

	if m.selectedIdx < m.viewportTopLine {
		m.viewportTopLine = m.selectedIdx
	} else if m.selectedIdx >= m.viewportTopLine+itemsThatFit {
		m.viewportTopLine = m.selectedIdx - itemsThatFit + 1
	}

	maxTop := max(len(m.inbox.Snippets)-itemsThatFit, 0)
	m.viewportTopLine = min(max(m.viewportTopLine, 0), maxTop)
}

// contentSize is the text area inside the content pane.
func (m Model) contentSize() (int, int) {
	w := m.width - sidebarWidth - ContentBoxStyle.GetHorizontalFrameSize()
	h := m.height - 1 - ContentBoxStyle.GetVerticalFrameSize()
	return max(w, 0), max(h, 0)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing terminal size..."
	}

	statusBarHeight := 1
	contentHeight := max(m.height-statusBarHeight, 0)

	sidebar := m.renderSidebar(sidebarWidth, contentHeight)
	paneWidth := max(m.width-sidebarWidth, 0)
	if m.width < sidebarWidth+minContentPaneWidth {
		sidebar = ""
		paneWidth = m.width
	}

	var pane string
	switch m.currentView {
	case viewWelcome:
		pane = m.renderWelcome(paneWidth, contentHeight)
	case viewWordCloud:
		pane = m.renderWordCloud(paneWidth, contentHeight)
	case viewInbox:
		pane = m.renderInbox(paneWidth, contentHeight)
	case viewAnalysis:
		pane = m.renderAnalysis(paneWidth, contentHeight)
	}

	mainUIView := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, pane)
	return AppStyle.Render(lipgloss.JoinVertical(lipgloss.Left, mainUIView, m.renderStatusBar()))
}

func (m Model) renderSidebar(paneWidth, paneHeight int) string {
	title := SidebarTitleStyle.Render("mailsight")
	var items []string
	for i, mode := range modes {
		label := truncate(mode.String(), paneWidth-4)
		if i == m.modeIdx {
			items = append(items, SelectedModeStyle.Render("> "+label))
		} else {
			items = append(items, ModeStyle.Render("  "+label))
		}
	}
	state := NormalSecondaryTextStyle.Render("\n" + m.ctrl.State().String())
	body := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n"), state)
	return SidebarStyle.Width(paneWidth - SidebarStyle.GetHorizontalBorderSize()).Height(paneHeight).Render(body)
}

func (m Model) renderBox(title string, paneWidth, paneHeight int, content string) string {
	if paneWidth <= 0 || paneHeight <= 0 {
		return ""
	}
	styledTitle := TitleStyle.Render(truncate(title, paneWidth-TitleStyle.GetHorizontalPadding()-4))
	maxContentHeight := max(paneHeight-lipgloss.Height(styledTitle)-ContentBoxStyle.GetVerticalFrameSize(), 0)
	inner := lipgloss.NewStyle().
		Width(max(paneWidth-ContentBoxStyle.GetHorizontalFrameSize(), 0)).
		MaxHeight(maxContentHeight).
		Render(content)
	return ContentBoxStyle.Width(paneWidth - ContentBoxStyle.GetHorizontalBorderSize()).
		Height(paneHeight - ContentBoxStyle.GetVerticalBorderSize()).
		Render(lipgloss.JoinVertical(lipgloss.Top, styledTitle, inner))
}

func (m Model) busyLine() string {
	return fmt.Sprintf("%s %s", m.spinner.View(), m.busyText)
}

func (m Model) renderWelcome(paneWidth, paneHeight int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Analyze your %s mailbox.\n\n", m.provider))
	b.WriteString(HeaderKeyStyle.Render("Spam Word Cloud:") + " the most frequent words of your recent spam\n")
	b.WriteString(HeaderKeyStyle.Render("Email Analysis:") + " summary and sentiment of an inbox message\n\n")
	if m.busy {
		b.WriteString(m.busyLine() + "\n\n")
		if m.authURL != "" {
			b.WriteString("Open this link to grant read-only access:\n\n")
			b.WriteString(LinkStyle.Render(m.authURL) + "\n")
		}
	} else {
		b.WriteString(fmt.Sprintf("Press %s to authenticate.", HeaderKeyStyle.Render("[a]")))
	}
	return m.renderBox("Welcome", paneWidth, paneHeight, b.String())
}

func (m Model) renderWordCloud(paneWidth, paneHeight int) string {
	if m.busy {
		return m.renderBox("Spam Word Cloud", paneWidth, paneHeight, m.busyLine())
	}
	if m.cloud == nil {
		return m.renderBox("Spam Word Cloud", paneWidth, paneHeight, "Press [r] to build the word cloud.")
	}

	var b strings.Builder
	batch := m.cloud.Batch
	switch {
	case batch.Failed():
		b.WriteString(ErrorTextStyle.Render("Fetching spam failed: " + batch.Err.Error()))
	case batch.Empty():
		b.WriteString("Your spam folder is empty. Nothing to draw.")
	default:
		if m.cloudInline != "" {
			b.WriteString(m.cloudInline + "\n")
		} else {
			b.WriteString(frequencyChart(m.cloud.Words, chartWords, paneWidth-ContentBoxStyle.GetHorizontalFrameSize()))
		}
		b.WriteString(NormalSecondaryTextStyle.Render(fmt.Sprintf("\n%d messages, %d distinct words shown",
			len(batch.Snippets), len(m.cloud.Words))))
	}
	if m.cloud.Path != "" {
		b.WriteString("\n" + NormalSecondaryTextStyle.Render("Saved to "+m.cloud.Path+" ([o] to open)"))
	}
	return m.renderBox("Spam Word Cloud", paneWidth, paneHeight, b.String())
}

func (m Model) renderInbox(paneWidth, paneHeight int) string {
	if m.busy {
		return m.renderBox("Inbox", paneWidth, paneHeight, m.busyLine())
	}
	switch {
	case m.inbox.Failed():
		return m.renderBox("Inbox", paneWidth, paneHeight,
			ErrorTextStyle.Render("Fetching the inbox failed: "+m.inbox.Err.Error()))
	case m.inbox.Empty():
		return m.renderBox("Inbox", paneWidth, paneHeight, "No messages in your inbox.")
	}

	itemTextContentWidth := max(paneWidth-ContentBoxStyle.GetHorizontalFrameSize()-SnippetListItemStyle.GetHorizontalPadding()-4, 10)
	numItems := m.getNumItemsThatFitInList()
	start := min(max(m.viewportTopLine, 0), len(m.inbox.Snippets))
	end := min(start+numItems, len(m.inbox.Snippets))

	var items []string
	for i := start; i < end; i++ {
		items = append(items, formatSnippetListItem(i, m.inbox.Snippets[i], i == m.selectedIdx, itemTextContentWidth))
	}
	title := fmt.Sprintf("Inbox (%d)", len(m.inbox.Snippets))
	return m.renderBox(title, paneWidth, paneHeight, strings.Join(items, "\n"))
}

func (m Model) renderAnalysis(paneWidth, paneHeight int) string {
	var b strings.Builder
	b.WriteString(HeaderKeyStyle.Render("Message:") + "\n")
	b.WriteString(HeaderValStyle.Render(m.analyzed.Text) + "\n")
	b.WriteString(strings.Repeat(BoxHorizontal, max(paneWidth/2, 1)) + "\n\n")

	if m.busy || m.result == nil {
		b.WriteString(m.busyLine())
		return m.renderBox("Email Analysis", paneWidth, paneHeight, b.String())
	}

	b.WriteString(HeaderKeyStyle.Render("Summary") + "\n")
	b.WriteString(resultBlock(m.result.Summary, m.result.SummaryErr) + "\n\n")
	b.WriteString(HeaderKeyStyle.Render("Sentiment") + "\n")
	b.WriteString(resultBlock(m.result.Sentiment, m.result.SentimentErr))
	return m.renderBox("Email Analysis", paneWidth, paneHeight, b.String())
}

func resultBlock(text string, err error) string {
	if err != nil {
		return ErrorTextStyle.Render(err.Error())
	}
	return BodyStyle.Render(text)
}

func (m Model) renderStatusBar() string {
	styleToUse := StatusBarNormalStyle
	if m.statusIsError {
		styleToUse = StatusBarErrorStyle
	} else if m.statusIsTemp {
		styleToUse = StatusBarSuccessStyle
	}
	return styleToUse.Width(m.width).Render(truncate(m.statusBarText, m.width-styleToUse.GetHorizontalPadding()))
}

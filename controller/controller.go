// Package controller holds the application state machine: it gates the
// mail pipelines behind authentication and runs them on request.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/analyze"
	"github.com/bassamadnan/mailsight/lazy"
	"github.com/bassamadnan/mailsight/mail"
	"github.com/bassamadnan/mailsight/wordcloud"
)

// ErrNotAuthenticated is returned by pipelines run before Authenticate
// succeeded.
var ErrNotAuthenticated = errors.New("not authenticated")

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

type Mode int

const (
	ModeWordCloud Mode = iota
	ModeAnalysis
)

func (m Mode) String() string {
	if m == ModeAnalysis {
		return "Email Analysis"
	}
	return "Spam Word Cloud"
}

// Limits says which label each view reads and how many messages.
type Limits struct {
	SpamLabel  string
	SpamMax    int64
	InboxLabel string
	InboxMax   int64
}

var DefaultLimits = Limits{
	SpamLabel:  mail.LabelSpam,
	SpamMax:    30,
	InboxLabel: mail.LabelInbox,
	InboxMax:   10,
}

// Renderer is the part of the word cloud renderer the controller uses.
type Renderer interface {
	Top(docs []string) []wordcloud.WordCount
	Render(docs []string) (image.Image, error)
}

// Analyzer is the part of the language-model analyzer the controller uses.
type Analyzer interface {
	Analyze(ctx context.Context, text string) analyze.Result
}

type Deps struct {
	// Session yields the authenticated mail handle.
	Session  *lazy.Value[mail.Provider]
	Renderer Renderer
	Analyzer Analyzer
	Limits   Limits
	// CloudOutput, when set, is where each rendered word cloud is saved.
	CloudOutput string
	// OnInvalidate runs after the session is dropped, e.g. to discard a
	// token the server refused.
	OnInvalidate func()
	Log          zerolog.Logger
}

type Controller struct {
	deps Deps
	log  zerolog.Logger

	mu    sync.Mutex
	state State
	mode  Mode
}

func New(deps Deps) *Controller {
	if deps.Limits == (Limits{}) {
		deps.Limits = DefaultLimits
	}
	return &Controller{
		deps: deps,
		log:  deps.Log.With().Str("component", "controller").Logger(),
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) SelectMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	c.log.Debug().Stringer("mode", m).Msg("mode selected")
}

// Authenticate builds the mail session. On success the controller moves
// to Authenticated and stays there; on failure it is unchanged.
func (c *Controller) Authenticate(ctx context.Context) error {
	if _, err := c.deps.Session.Get(ctx); err != nil {
		c.log.Error().Err(err).Msg("authentication failed")
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		c.state = Authenticated
		c.log.Info().Msg("authenticated")
	}
	return nil
}

// Invalidate drops the session handle. The next pipeline re-authenticates.
func (c *Controller) Invalidate() {
	if p, ok := c.deps.Session.Invalidate(); ok {
		if closer, ok := p.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	if c.deps.OnInvalidate != nil {
		c.deps.OnInvalidate()
	}
	c.log.Info().Msg("session invalidated")
}

func (c *Controller) provider(ctx context.Context) (mail.Provider, error) {
	if c.State() != Authenticated {
		return nil, ErrNotAuthenticated
	}
	return c.deps.Session.Get(ctx)
}

// fetch runs the mail boundary and drops the session when the server
// rejected the credential.
func (c *Controller) fetch(ctx context.Context, label string, maxResults int64) (mail.Batch, error) {
	p, err := c.provider(ctx)
	if err != nil {
		return mail.Batch{}, err
	}
	batch := mail.Fetch(ctx, p, label, maxResults, c.deps.Log)
	if batch.Failed() && batch.Err.Unauthorized {
		c.Invalidate()
	}
	return batch, nil
}

// CloudView is the result of the word cloud pipeline.
type CloudView struct {
	Batch mail.Batch
	Words []wordcloud.WordCount
	Image image.Image
	// Path is where the image was saved, if it was.
	Path string
}

// WordCloud fetches the spam snippets and renders them. A failed fetch is
// reported in the view's batch, not as an error.
func (c *Controller) WordCloud(ctx context.Context) (CloudView, error) {
	batch, err := c.fetch(ctx, c.deps.Limits.SpamLabel, c.deps.Limits.SpamMax)
	if err != nil {
		return CloudView{}, err
	}
	view := CloudView{Batch: batch}
	if batch.Failed() {
		return view, nil
	}

	docs := batch.Texts()
	view.Words = c.deps.Renderer.Top(docs)
	view.Image, err = c.deps.Renderer.Render(docs)
	if err != nil {
		return view, fmt.Errorf("rendering word cloud: %w", err)
	}
	if c.deps.CloudOutput != "" {
		if err := wordcloud.SavePNG(view.Image, c.deps.CloudOutput); err != nil {
			c.log.Warn().Err(err).Msg("word cloud not saved")
		} else {
			view.Path = c.deps.CloudOutput
		}
	}
	return view, nil
}

// Inbox fetches the inbox snippets for the message picker.
func (c *Controller) Inbox(ctx context.Context) (mail.Batch, error) {
	return c.fetch(ctx, c.deps.Limits.InboxLabel, c.deps.Limits.InboxMax)
}

// Analyze summarizes the selected message and labels its sentiment.
func (c *Controller) Analyze(ctx context.Context, msg mail.Snippet) (analyze.Result, error) {
	if c.State() != Authenticated {
		return analyze.Result{}, ErrNotAuthenticated
	}
	return c.deps.Analyzer.Analyze(ctx, msg.Text), nil
}

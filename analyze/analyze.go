// Package analyze asks a language model for a summary and a sentiment label
// of one message.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Prompt is one single-turn completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Completer sends one prompt and returns the first choice's text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// Task names the analysis being run.
type Task string

const (
	TaskSummary   Task = "summary"
	TaskSentiment Task = "sentiment"
)

// AnalysisError reports a failed completion.
type AnalysisError struct {
	Task Task
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis failed: %v", e.Task, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// IsAnalysisError reports whether err (or any error in its chain) is an
// AnalysisError.
func IsAnalysisError(err error) bool {
	var analysisErr *AnalysisError
	return errors.As(err, &analysisErr)
}

// Options tunes the requests.
type Options struct {
	MaxTokens            int64
	SummaryTemperature   float64
	SentimentTemperature float64
}

// DefaultOptions are the request settings used unless configured.
var DefaultOptions = Options{
	MaxTokens:            256,
	SummaryTemperature:   0.5,
	SentimentTemperature: 0,
}

type Analyzer struct {
	completer Completer
	opts      Options
	log       zerolog.Logger
}

func New(completer Completer, opts Options, log zerolog.Logger) *Analyzer {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions.MaxTokens
	}
	return &Analyzer{
		completer: completer,
		opts:      opts,
		log:       log.With().Str("component", "analyze").Logger(),
	}
}

// Summarize returns a short summary of text.
func (a *Analyzer) Summarize(ctx context.Context, text string) (string, error) {
	return a.run(ctx, TaskSummary, Prompt{
		System:      "You are an assistant that summarizes emails.",
		User:        "Please summarize the following email:\n\n" + text,
		Temperature: a.opts.SummaryTemperature,
		MaxTokens:   a.opts.MaxTokens,
	})
}

// Sentiment returns a free-text sentiment label for text.
func (a *Analyzer) Sentiment(ctx context.Context, text string) (string, error) {
	return a.run(ctx, TaskSentiment, Prompt{
		System:      "You are an assistant that analyzes sentiment.",
		User:        "Analyze the sentiment of the following email:\n\n" + text,
		Temperature: a.opts.SentimentTemperature,
		MaxTokens:   a.opts.MaxTokens,
	})
}

func (a *Analyzer) run(ctx context.Context, task Task, p Prompt) (string, error) {
	out, err := a.completer.Complete(ctx, p)
	if err != nil {
		a.log.Error().Err(err).Str("task", string(task)).Msg("completion failed")
		return "", &AnalysisError{Task: task, Err: err}
	}
	out = strings.TrimSpace(out)
	a.log.Info().Str("task", string(task)).Int("chars", len(out)).Msg("completion done")
	return out, nil
}

// Result holds both analyses of one message. A failed half carries its
// error and leaves the other half usable.
type Result struct {
	Summary      string
	Sentiment    string
	SummaryErr   error
	SentimentErr error
}

func (r Result) Failed() bool { return r.SummaryErr != nil && r.SentimentErr != nil }

// Analyze runs the summary and then the sentiment request. Failures are
// reported in the Result, never returned.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	var r Result
	r.Summary, r.SummaryErr = a.Summarize(ctx, text)
	r.Sentiment, r.SentimentErr = a.Sentiment(ctx, text)
	return r
}

// Unavailable is a Completer that always fails with err. It stands in when
// the configured backend could not be set up, so the rest of the program
// still runs.
func Unavailable(err error) Completer {
	return unavailable{err: err}
}

type unavailable struct{ err error }

func (u unavailable) Complete(context.Context, Prompt) (string, error) {
	return "", u.err
}

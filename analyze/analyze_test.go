package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"
)

type fakeCompleter struct {
	prompts []Prompt
	replies map[string]string
	errs    map[string]error
}

func (f *fakeCompleter) Complete(_ context.Context, p Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	if err := f.errs[p.System]; err != nil {
		return "", err
	}
	return f.replies[p.System], nil
}

const (
	summarySystem   = "You are an assistant that summarizes emails."
	sentimentSystem = "You are an assistant that analyzes sentiment."
)

func TestSummarize(t *testing.T) {
	fake := &fakeCompleter{replies: map[string]string{summarySystem: "  Meeting moved to Monday.\n"}}
	a := New(fake, DefaultOptions, zerolog.Nop())

	got, err := a.Summarize(context.Background(), "Hi team, the meeting is now Monday.")
	be.Err(t, err, nil)
	be.Equal(t, got, "Meeting moved to Monday.")

	be.Equal(t, len(fake.prompts), 1)
	p := fake.prompts[0]
	be.Equal(t, p.Temperature, 0.5)
	be.Equal(t, p.MaxTokens, int64(256))
	be.True(t, strings.HasSuffix(p.User, "Hi team, the meeting is now Monday."))
}

func TestSentiment(t *testing.T) {
	fake := &fakeCompleter{replies: map[string]string{sentimentSystem: "Positive"}}
	a := New(fake, DefaultOptions, zerolog.Nop())

	got, err := a.Sentiment(context.Background(), "Great news, you got the job!")
	be.Err(t, err, nil)
	be.Equal(t, got, "Positive")
	be.Equal(t, fake.prompts[0].Temperature, 0.0)
	be.Equal(t, fake.prompts[0].MaxTokens, int64(256))
}

func TestEmptyTextIsStillSent(t *testing.T) {
	fake := &fakeCompleter{replies: map[string]string{summarySystem: "Nothing to summarize."}}
	a := New(fake, DefaultOptions, zerolog.Nop())

	got, err := a.Summarize(context.Background(), "")
	be.Err(t, err, nil)
	be.Equal(t, got, "Nothing to summarize.")
	be.Equal(t, len(fake.prompts), 1)
}

func TestCompletionFailure(t *testing.T) {
	quota := errors.New("429 insufficient_quota")
	fake := &fakeCompleter{errs: map[string]error{summarySystem: quota}}
	a := New(fake, DefaultOptions, zerolog.Nop())

	_, err := a.Summarize(context.Background(), "text")
	be.True(t, IsAnalysisError(err))
	be.Err(t, err, quota)
	be.Err(t, err, "summary analysis failed")
	be.Equal(t, len(fake.prompts), 1)
}

func TestAnalyze(t *testing.T) {
	fake := &fakeCompleter{
		replies: map[string]string{sentimentSystem: "Neutral"},
		errs:    map[string]error{summarySystem: errors.New("timeout")},
	}
	a := New(fake, DefaultOptions, zerolog.Nop())

	r := a.Analyze(context.Background(), "text")
	be.True(t, !r.Failed())
	be.True(t, IsAnalysisError(r.SummaryErr))
	be.Err(t, r.SentimentErr, nil)
	be.Equal(t, r.Sentiment, "Neutral")
	be.Equal(t, len(fake.prompts), 2)
}

func TestNewDefaultsMaxTokens(t *testing.T) {
	fake := &fakeCompleter{}
	a := New(fake, Options{SummaryTemperature: 0.5}, zerolog.Nop())
	_, _ = a.Summarize(context.Background(), "x")
	be.Equal(t, fake.prompts[0].MaxTokens, int64(256))
}

func TestUnavailable(t *testing.T) {
	missing := errors.New("OPENAI_API_KEY environment variable not set")
	a := New(Unavailable(missing), DefaultOptions, zerolog.Nop())

	r := a.Analyze(context.Background(), "text")
	be.True(t, r.Failed())
	be.Err(t, r.SummaryErr, missing)
	be.Err(t, r.SentimentErr, missing)
}

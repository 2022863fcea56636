package controller

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"

	"github.com/bassamadnan/mailsight/analyze"
	"github.com/bassamadnan/mailsight/lazy"
	"github.com/bassamadnan/mailsight/mail"
	"github.com/bassamadnan/mailsight/wordcloud"
)

type fakeProvider struct {
	ids      map[string][]string
	snippets map[string]string
	listErr  error
	closed   bool
	lists    []string
}

func (f *fakeProvider) ListMessages(_ context.Context, label string, maxResults int64) ([]string, error) {
	f.lists = append(f.lists, label)
	if f.listErr != nil {
		return nil, f.listErr
	}
	ids := f.ids[label]
	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

func (f *fakeProvider) FetchSnippet(_ context.Context, id string) (string, error) {
	return f.snippets[id], nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

type fakeRenderer struct {
	docs [][]string
}

func (r *fakeRenderer) Top(docs []string) []wordcloud.WordCount {
	return []wordcloud.WordCount{{Word: "money", Count: len(docs)}}
}

func (r *fakeRenderer) Render(docs []string) (image.Image, error) {
	r.docs = append(r.docs, docs)
	return image.NewRGBA(image.Rect(0, 0, 800, 400)), nil
}

type fakeAnalyzer struct {
	texts []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, text string) analyze.Result {
	a.texts = append(a.texts, text)
	return analyze.Result{Summary: "summary of " + text, Sentiment: "Neutral"}
}

type fixture struct {
	ctrl     *Controller
	provider *fakeProvider
	renderer *fakeRenderer
	analyzer *fakeAnalyzer
	builds   int
	forgets  int
	authErr  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: &fakeProvider{
			ids: map[string][]string{
				"SPAM":  {"s1", "s2"},
				"INBOX": {"i1", "i2", "i3"},
			},
			snippets: map[string]string{
				"s1": "Win money now!!!", "s2": "Claim your prize money",
				"i1": "Lunch?", "i2": "Invoice attached", "i3": "Weekly report",
			},
		},
		renderer: &fakeRenderer{},
		analyzer: &fakeAnalyzer{},
	}
	session := lazy.New(func(context.Context) (mail.Provider, error) {
		f.builds++
		if f.authErr != nil {
			return nil, f.authErr
		}
		return f.provider, nil
	})
	f.ctrl = New(Deps{
		Session:      session,
		Renderer:     f.renderer,
		Analyzer:     f.analyzer,
		OnInvalidate: func() { f.forgets++ },
		Log:          zerolog.Nop(),
	})
	return f
}

func TestPipelinesRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	be.Equal(t, f.ctrl.State(), Unauthenticated)
	_, err := f.ctrl.WordCloud(ctx)
	be.Err(t, err, ErrNotAuthenticated)
	_, err = f.ctrl.Inbox(ctx)
	be.Err(t, err, ErrNotAuthenticated)
	_, err = f.ctrl.Analyze(ctx, mail.Snippet{ID: "i1", Text: "Lunch?"})
	be.Err(t, err, ErrNotAuthenticated)

	be.Equal(t, f.builds, 0)
	be.Equal(t, len(f.provider.lists), 0)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	be.Err(t, f.ctrl.Authenticate(context.Background()), nil)
	be.Equal(t, f.ctrl.State(), Authenticated)

	be.Err(t, f.ctrl.Authenticate(context.Background()), nil)
	be.Equal(t, f.builds, 1)
}

func TestAuthenticateFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.authErr = errors.New("consent cancelled")

	err := f.ctrl.Authenticate(context.Background())
	be.Err(t, err, f.authErr)
	be.Equal(t, f.ctrl.State(), Unauthenticated)

	f.authErr = nil
	be.Err(t, f.ctrl.Authenticate(context.Background()), nil)
	be.Equal(t, f.ctrl.State(), Authenticated)
}

func TestSelectMode(t *testing.T) {
	f := newFixture(t)
	be.Equal(t, f.ctrl.Mode(), ModeWordCloud)
	f.ctrl.SelectMode(ModeAnalysis)
	be.Equal(t, f.ctrl.Mode(), ModeAnalysis)
	be.Equal(t, ModeAnalysis.String(), "Email Analysis")
}

func TestWordCloud(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)

	view, err := f.ctrl.WordCloud(ctx)
	be.Err(t, err, nil)
	be.True(t, !view.Batch.Failed())
	be.Equal(t, view.Words, []wordcloud.WordCount{{Word: "money", Count: 2}})
	be.Equal(t, view.Image.Bounds().Dx(), 800)
	be.Equal(t, view.Path, "")
	be.Equal(t, f.renderer.docs[0], []string{"Win money now!!!", "Claim your prize money"})
	be.Equal(t, f.provider.lists, []string{"SPAM"})

	_, err = f.ctrl.WordCloud(ctx)
	be.Err(t, err, nil)
	be.Equal(t, len(f.renderer.docs), 2)
	be.Equal(t, f.builds, 1)
}

func TestWordCloudSavesImage(t *testing.T) {
	f := newFixture(t)
	f.ctrl.deps.CloudOutput = filepath.Join(t.TempDir(), "wordcloud.png")
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)

	view, err := f.ctrl.WordCloud(ctx)
	be.Err(t, err, nil)
	be.Equal(t, view.Path, f.ctrl.deps.CloudOutput)
	_, err = os.Stat(view.Path)
	be.Err(t, err, nil)
}

func TestWordCloudFetchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)
	f.provider.listErr = errors.New("503")

	view, err := f.ctrl.WordCloud(ctx)
	be.Err(t, err, nil)
	be.True(t, view.Batch.Failed())
	be.True(t, view.Image == nil)
	be.Equal(t, len(f.renderer.docs), 0)
	be.Equal(t, f.forgets, 0)
}

func TestUnauthorizedDropsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)
	f.provider.listErr = mail.Unauthorized(errors.New("401"))

	batch, err := f.ctrl.Inbox(ctx)
	be.Err(t, err, nil)
	be.True(t, batch.Failed())
	be.True(t, f.provider.closed)
	be.Equal(t, f.forgets, 1)
	be.Equal(t, f.ctrl.State(), Authenticated)

	f.provider.listErr = nil
	batch, err = f.ctrl.Inbox(ctx)
	be.Err(t, err, nil)
	be.True(t, !batch.Failed())
	be.Equal(t, f.builds, 2)
}

func TestInvalidateNeverBuildsSession(t *testing.T) {
	f := newFixture(t)

	f.ctrl.Invalidate()
	be.Equal(t, f.builds, 0)
	be.True(t, !f.provider.closed)
	be.Equal(t, f.forgets, 1)
}

func TestInbox(t *testing.T) {
	f := newFixture(t)
	f.ctrl.deps.Limits.InboxMax = 2
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)

	batch, err := f.ctrl.Inbox(ctx)
	be.Err(t, err, nil)
	be.Equal(t, batch.Texts(), []string{"Lunch?", "Invoice attached"})
	be.Equal(t, f.provider.lists, []string{"INBOX"})
}

func TestAnalyze(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	be.Err(t, f.ctrl.Authenticate(ctx), nil)

	r, err := f.ctrl.Analyze(ctx, mail.Snippet{ID: "i2", Text: "Invoice attached"})
	be.Err(t, err, nil)
	be.Equal(t, r.Summary, "summary of Invoice attached")
	be.Equal(t, r.Sentiment, "Neutral")
	be.Equal(t, f.analyzer.texts, []string{"Invoice attached"})
}

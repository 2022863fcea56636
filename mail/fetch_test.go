package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"
)

type fakeProvider struct {
	ids      []string
	listErr  error
	snippets map[string]string
	failing  map[string]error
	gotLabel string
	gotMax   int64
}

func (f *fakeProvider) ListMessages(_ context.Context, label string, maxResults int64) ([]string, error) {
	f.gotLabel, f.gotMax = label, maxResults
	return f.ids, f.listErr
}

func (f *fakeProvider) FetchSnippet(_ context.Context, id string) (string, error) {
	if err := f.failing[id]; err != nil {
		return "", err
	}
	return f.snippets[id], nil
}

func TestFetch(t *testing.T) {
	p := &fakeProvider{
		ids:      []string{"a", "b"},
		snippets: map[string]string{"a": "Win money now!!!", "b": "Claim your prize"},
	}
	batch := Fetch(context.Background(), p, LabelSpam, 30, zerolog.Nop())

	be.Equal(t, p.gotLabel, "SPAM")
	be.Equal(t, p.gotMax, int64(30))
	be.True(t, !batch.Failed())
	be.True(t, !batch.Empty())
	be.Equal(t, batch.Texts(), []string{"Win money now!!!", "Claim your prize"})
	be.Equal(t, batch.Snippets[1].ID, "b")
}

func TestFetchEmptyLabel(t *testing.T) {
	batch := Fetch(context.Background(), &fakeProvider{}, LabelInbox, 10, zerolog.Nop())
	be.True(t, batch.Empty())
	be.True(t, !batch.Failed())
}

func TestFetchListFailure(t *testing.T) {
	boom := errors.New("503 backend error")
	batch := Fetch(context.Background(), &fakeProvider{listErr: boom}, LabelSpam, 30, zerolog.Nop())

	be.True(t, batch.Failed())
	be.True(t, !batch.Empty())
	be.Equal(t, len(batch.Snippets), 0)
	be.Err(t, batch.Err, boom)
	be.Equal(t, batch.Err.Op, "list")
	be.True(t, !batch.Err.Unauthorized)
}

func TestFetchUnauthorized(t *testing.T) {
	rejected := Unauthorized(errors.New("401 invalid credentials"))
	batch := Fetch(context.Background(), &fakeProvider{listErr: rejected}, LabelSpam, 30, zerolog.Nop())

	be.True(t, batch.Failed())
	be.True(t, batch.Err.Unauthorized)
	be.True(t, IsUnauthorized(batch.Err))
}

func TestFetchSkipsFailedMessages(t *testing.T) {
	p := &fakeProvider{
		ids:      []string{"a", "b", "c"},
		snippets: map[string]string{"a": "first", "c": "third"},
		failing:  map[string]error{"b": errors.New("404 not found")},
	}
	batch := Fetch(context.Background(), p, LabelInbox, 10, zerolog.Nop())

	be.True(t, !batch.Failed())
	be.Equal(t, batch.Texts(), []string{"first", "third"})
	be.Equal(t, len(batch.Skipped), 1)
	be.Equal(t, batch.Skipped[0].ID, "b")
	be.Err(t, batch.Skipped[0], "404 not found")
}

func TestFetchEveryMessageFails(t *testing.T) {
	boom := errors.New("500")
	p := &fakeProvider{
		ids:     []string{"a", "b"},
		failing: map[string]error{"a": boom, "b": boom},
	}
	batch := Fetch(context.Background(), p, LabelInbox, 10, zerolog.Nop())

	be.True(t, batch.Failed())
	be.Equal(t, len(batch.Skipped), 2)
	be.Err(t, batch.Err, boom)
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &fakeProvider{ids: []string{"a"}, snippets: map[string]string{"a": "x"}}
	batch := Fetch(ctx, p, LabelInbox, 10, zerolog.Nop())

	be.True(t, batch.Failed())
	be.Err(t, batch.Err, context.Canceled)
}

func TestFetchErrorMessage(t *testing.T) {
	err := &FetchError{Label: "INBOX", ID: "m1", Op: "fetch", Err: errors.New("gone")}
	be.Equal(t, err.Error(), "fetch INBOX message m1: gone")
	be.True(t, IsFetchError(err))
	be.True(t, !IsFetchError(errors.New("other")))
}

func TestIsUnauthorized(t *testing.T) {
	be.True(t, IsUnauthorized(Unauthorized(errors.New("login failed"))))
	be.True(t, IsUnauthorized(&FetchError{Op: "list", Err: errors.New("x"), Unauthorized: true}))
	be.True(t, !IsUnauthorized(&FetchError{Op: "list", Err: errors.New("x")}))
	be.True(t, !IsUnauthorized(errors.New("timeout")))
}

package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/bassamadnan/mailsight/mail"
)

// fakeGmail serves the list and get endpoints the client uses.
type fakeGmail struct {
	pages    [][]string
	snippets map[string]string
	status   int
	queries  []string
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"Request had invalid authentication credentials."}}`, f.status)
		return
	}
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/users/me/messages"):
		f.queries = append(f.queries, r.URL.RawQuery)
		page := 0
		if tok := r.URL.Query().Get("pageToken"); tok != "" {
			page, _ = strconv.Atoi(tok)
		}
		msgs := []map[string]string{}
		if page < len(f.pages) {
			for _, id := range f.pages[page] {
				msgs = append(msgs, map[string]string{"id": id, "threadId": id})
			}
		}
		resp := map[string]any{"messages": msgs}
		if page+1 < len(f.pages) {
			resp["nextPageToken"] = strconv.Itoa(page + 1)
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.Contains(path, "/users/me/messages/"):
		id := path[strings.LastIndex(path, "/")+1:]
		if r.URL.Query().Get("format") != "minimal" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"want minimal format"}}`))
			return
		}
		snippet, ok := f.snippets[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "snippet": snippet})
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, fake *fakeGmail) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), srv.Client(), zerolog.Nop(),
		option.WithEndpoint(srv.URL+"/"))
	be.Err(t, err, nil)
	return c
}

func TestListMessages(t *testing.T) {
	fake := &fakeGmail{pages: [][]string{{"m1", "m2"}}}
	c := newTestClient(t, fake)

	ids, err := c.ListMessages(context.Background(), "SPAM", 30)
	be.Err(t, err, nil)
	be.Equal(t, ids, []string{"m1", "m2"})
	be.Equal(t, len(fake.queries), 1)
	be.True(t, strings.Contains(fake.queries[0], "labelIds=SPAM"))
	be.True(t, strings.Contains(fake.queries[0], "maxResults=30"))
}

func TestListMessagesPages(t *testing.T) {
	fake := &fakeGmail{pages: [][]string{{"a", "b"}, {"c", "d"}, {"e"}}}
	c := newTestClient(t, fake)

	ids, err := c.ListMessages(context.Background(), "INBOX", 10)
	be.Err(t, err, nil)
	be.Equal(t, ids, []string{"a", "b", "c", "d", "e"})
	be.Equal(t, len(fake.queries), 3)
	be.True(t, strings.Contains(fake.queries[1], "maxResults=8"))
}

func TestListMessagesStopsAtMax(t *testing.T) {
	fake := &fakeGmail{pages: [][]string{{"a", "b"}, {"c", "d"}}}
	c := newTestClient(t, fake)

	ids, err := c.ListMessages(context.Background(), "INBOX", 3)
	be.Err(t, err, nil)
	be.Equal(t, ids, []string{"a", "b", "c"})
}

func TestListMessagesEmpty(t *testing.T) {
	c := newTestClient(t, &fakeGmail{})

	ids, err := c.ListMessages(context.Background(), "SPAM", 30)
	be.Err(t, err, nil)
	be.Equal(t, len(ids), 0)
}

func TestListMessagesUnauthorized(t *testing.T) {
	c := newTestClient(t, &fakeGmail{status: http.StatusUnauthorized})

	_, err := c.ListMessages(context.Background(), "SPAM", 30)
	be.Err(t, err, "unable to list SPAM messages")

	batch := mail.Fetch(context.Background(), c, "SPAM", 30, zerolog.Nop())
	be.True(t, batch.Failed())
	be.True(t, batch.Err.Unauthorized)
}

func TestListMessagesServerError(t *testing.T) {
	c := newTestClient(t, &fakeGmail{status: http.StatusForbidden})

	batch := mail.Fetch(context.Background(), c, "SPAM", 30, zerolog.Nop())
	be.True(t, batch.Failed())
	be.True(t, !batch.Err.Unauthorized)
}

func TestFetchSnippet(t *testing.T) {
	c := newTestClient(t, &fakeGmail{snippets: map[string]string{
		"m1": "Tom &amp; Jerry&#39;s &quot;deal&quot;",
	}})

	text, err := c.FetchSnippet(context.Background(), "m1")
	be.Err(t, err, nil)
	be.Equal(t, text, `Tom & Jerry's "deal"`)

	_, err = c.FetchSnippet(context.Background(), "missing")
	be.Err(t, err, "unable to retrieve message missing")
}

func TestFetchThroughBoundary(t *testing.T) {
	c := newTestClient(t, &fakeGmail{
		pages:    [][]string{{"m1", "gone", "m2"}},
		snippets: map[string]string{"m1": "Win money now!!!", "m2": "Claim your prize"},
	})

	batch := mail.Fetch(context.Background(), c, "SPAM", 30, zerolog.Nop())
	be.True(t, !batch.Failed())
	be.Equal(t, batch.Texts(), []string{"Win money now!!!", "Claim your prize"})
	be.Equal(t, len(batch.Skipped), 1)
	be.Equal(t, batch.Skipped[0].ID, "gone")
}

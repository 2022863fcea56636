package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// FlowOptions configures the loopback consent flow.
type FlowOptions struct {
	// CredentialsFile is the client-secrets JSON downloaded from the
	// Google Cloud console.
	CredentialsFile string
	// CallbackPort is the fixed local port the redirect lands on.
	CallbackPort int
	// Timeout bounds the wait for the browser callback; zero waits until
	// the context is cancelled.
	Timeout time.Duration
	// Prompt receives the consent URL so the UI can show it.
	Prompt func(authURL string)
	// OpenURL tries to open the consent URL in a browser.
	OpenURL func(authURL string) error
	Log     zerolog.Logger
}

// GoogleFlow implements Flow against Google's OAuth endpoints.
type GoogleFlow struct {
	opts FlowOptions
	load func() (*oauth2.Config, error)
}

// NewGoogleFlow reads the client secrets lazily, on the first Refresh or
// Consent, so a missing file surfaces as an authentication failure.
func NewGoogleFlow(opts FlowOptions) *GoogleFlow {
	g := &GoogleFlow{opts: opts}
	g.load = sync.OnceValues(func() (*oauth2.Config, error) {
		b, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read client secret file: %w", err)
		}
		conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
		}
		return g.withRedirect(conf), nil
	})
	return g
}

// NewFlow uses an already built client configuration.
func NewFlow(conf *oauth2.Config, opts FlowOptions) *GoogleFlow {
	g := &GoogleFlow{opts: opts}
	conf = g.withRedirect(conf)
	g.load = func() (*oauth2.Config, error) { return conf, nil }
	return g
}

func (g *GoogleFlow) withRedirect(conf *oauth2.Config) *oauth2.Config {
	c := *conf
	c.RedirectURL = fmt.Sprintf("http://localhost:%d/", g.opts.CallbackPort)
	return &c
}

func (g *GoogleFlow) Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error) {
	conf, err := g.load()
	if err != nil {
		return nil, err
	}
	expired := *tok
	expired.AccessToken = ""
	fresh, err := conf.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return fresh, nil
}

func (g *GoogleFlow) TokenSource(ctx context.Context, tok *oauth2.Token) (oauth2.TokenSource, error) {
	conf, err := g.load()
	if err != nil {
		return nil, err
	}
	return conf.TokenSource(ctx, tok), nil
}

type callbackResult struct {
	code string
	err  error
}

// Consent binds the callback listener, hands the consent URL to the UI
// and waits for the browser redirect.
func (g *GoogleFlow) Consent(ctx context.Context) (*oauth2.Token, error) {
	conf, err := g.load()
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", g.opts.CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("binding consent callback listener: %w", err)
	}
	defer ln.Close()

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var res callbackResult
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent denied: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("missing auth code")
		default:
			res.code = q.Get("code")
		}
		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "mailsight authorization complete. You can close this tab.")
		}
		select {
		case results <- res:
		default:
		}
	})
	srv := &http.Server{Handler: mux}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline)
	g.opts.Log.Info().Str("redirect", conf.RedirectURL).Msg("waiting for consent callback")
	if g.opts.Prompt != nil {
		g.opts.Prompt(authURL)
	}
	if g.opts.OpenURL != nil {
		if err := g.opts.OpenURL(authURL); err != nil {
			g.opts.Log.Warn().Err(err).Msg("could not open browser automatically")
		}
	}

	var timeout <-chan time.Time
	if g.opts.Timeout > 0 {
		timer := time.NewTimer(g.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := conf.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("exchanging auth code: %w", err)
		}
		return tok, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeout:
		return nil, fmt.Errorf("timed out waiting for browser callback after %s", g.opts.Timeout)
	}
}

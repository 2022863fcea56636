// Package auth produces and persists the OAuth credential used for the
// read-only mail API.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Flow talks to the authorization server.
type Flow interface {
	// Refresh trades an expired token's refresh token for a new token.
	Refresh(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
	// Consent runs the interactive authorization and returns a new token.
	Consent(ctx context.Context) (*oauth2.Token, error)
	// TokenSource returns a source that refreshes tok as needed.
	TokenSource(ctx context.Context, tok *oauth2.Token) (oauth2.TokenSource, error)
}

// Store is the only owner of the credential. It reuses a valid token,
// refreshes an expired one once and otherwise runs consent once.
type Store struct {
	storage TokenStorage
	flow    Flow
	log     zerolog.Logger

	mu     sync.Mutex
	cached *oauth2.Token
}

func NewStore(storage TokenStorage, flow Flow, log zerolog.Logger) *Store {
	return &Store{
		storage: storage,
		flow:    flow,
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// Obtain returns a valid token. Failures are *AuthenticationError.
func (s *Store) Obtain(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.cached.Valid() {
		return s.cached, nil
	}

	tok := s.cached
	if tok == nil {
		stored, err := s.storage.Load()
		switch {
		case errors.Is(err, ErrNoToken):
			s.log.Info().Msg("no stored token")
		case err != nil:
			return nil, &AuthenticationError{Op: "load token", Err: err}
		default:
			tok = stored
		}
	}

	if tok != nil && tok.Valid() {
		s.cached = tok
		return tok, nil
	}

	if tok != nil && tok.RefreshToken != "" {
		fresh, err := s.flow.Refresh(ctx, tok)
		if err == nil {
			s.log.Info().Time("expiry", fresh.Expiry).Msg("token refreshed")
			return s.keep(fresh)
		}
		s.log.Warn().Err(err).Msg("token refresh failed, falling back to consent")
	}

	fresh, err := s.flow.Consent(ctx)
	if err != nil {
		return nil, &AuthenticationError{Op: "consent", Err: err}
	}
	s.log.Info().Msg("consent completed")
	return s.keep(fresh)
}

func (s *Store) keep(tok *oauth2.Token) (*oauth2.Token, error) {
	if err := s.storage.Save(tok); err != nil {
		return nil, &AuthenticationError{Op: "save token", Err: err}
	}
	s.cached = tok
	return tok, nil
}

// Reject records that the server refused the current token. The access
// token is discarded in storage too, so the next Obtain refreshes it or,
// without a refresh token, runs consent.
func (s *Store) Reject() {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok := s.cached
	s.cached = nil
	if tok == nil {
		stored, err := s.storage.Load()
		if err != nil {
			s.log.Warn().Err(err).Msg("no stored token to reject")
			return
		}
		tok = stored
	}

	if tok.RefreshToken == "" {
		if err := s.storage.Delete(); err != nil {
			s.log.Error().Err(err).Msg("deleting rejected token")
			return
		}
		s.log.Info().Msg("rejected token deleted")
		return
	}
	stale := &oauth2.Token{
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}
	if err := s.storage.Save(stale); err != nil {
		s.log.Error().Err(err).Msg("saving rejected token")
		return
	}
	s.log.Info().Msg("rejected access token discarded")
}

// Client obtains a token and returns an HTTP client authorized with it.
// Tokens refreshed while the client is in use are persisted.
func (s *Store) Client(ctx context.Context) (*http.Client, error) {
	tok, err := s.Obtain(ctx)
	if err != nil {
		return nil, err
	}
	src, err := s.flow.TokenSource(ctx, tok)
	if err != nil {
		return nil, &AuthenticationError{Op: "token source", Err: err}
	}
	return oauth2.NewClient(ctx, &persistingSource{store: s, src: src}), nil
}

// remember saves tok if it differs from the cached token.
func (s *Store) remember(tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && sameToken(s.cached, tok) {
		return
	}
	s.cached = tok
	if err := s.storage.Save(tok); err != nil {
		s.log.Error().Err(err).Msg("saving refreshed token")
		return
	}
	s.log.Info().Time("expiry", tok.Expiry).Msg("saved refreshed token")
}

type persistingSource struct {
	store *Store
	src   oauth2.TokenSource
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}
	p.store.remember(tok)
	return tok, nil
}

func sameToken(a, b *oauth2.Token) bool {
	return a.AccessToken == b.AccessToken &&
		a.RefreshToken == b.RefreshToken &&
		a.TokenType == b.TokenType &&
		a.Expiry.Equal(b.Expiry)
}

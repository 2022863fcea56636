package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

// TokenStorage persists the OAuth token between runs. Load returns
// ErrNoToken when nothing has been saved. Delete of a missing token is not
// an error.
type TokenStorage interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Delete() error
}

// FileStorage keeps the token as JSON in a file readable only by the user.
type FileStorage struct {
	Path string
}

func (f FileStorage) Load() (*oauth2.Token, error) {
	file, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(file).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file %s: %w", f.Path, err)
	}
	if err := checkToken(tok); err != nil {
		return nil, fmt.Errorf("token file %s: %w", f.Path, err)
	}
	return tok, nil
}

// Save replaces the file through a temporary sibling, so the token is
// never left half written and an existing file with wider permissions
// ends up 0600.
func (f FileStorage) Save(tok *oauth2.Token) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+"-*")
	if err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("saving oauth token: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(tok); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding oauth token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("saving oauth token: %w", err)
	}
	return nil
}

func (f FileStorage) Delete() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting oauth token: %w", err)
	}
	return nil
}

const keyringTokenKey = "gmail-oauth-token"

// KeyringStorage keeps the token in the OS keyring.
type KeyringStorage struct {
	ring keyring.Keyring
	key  string
}

func NewKeyringStorage(ring keyring.Keyring) *KeyringStorage {
	return &KeyringStorage{ring: ring, key: keyringTokenKey}
}

// OpenKeyring returns the platform keyring for service, falling back to an
// encrypted file under the user's config directory.
func OpenKeyring(service string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/" + service + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

func (k *KeyringStorage) Load() (*oauth2.Token, error) {
	item, err := k.ring.Get(k.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", k.key, err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(item.Data, tok); err != nil {
		return nil, fmt.Errorf("decoding credential %q: %w", k.key, err)
	}
	if err := checkToken(tok); err != nil {
		return nil, fmt.Errorf("credential %q: %w", k.key, err)
	}
	return tok, nil
}

func (k *KeyringStorage) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding oauth token: %w", err)
	}
	err = k.ring.Set(keyring.Item{
		Key:         k.key,
		Data:        data,
		Label:       "mailsight Gmail token",
		Description: "OAuth token for read-only Gmail access",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", k.key, err)
	}
	return nil
}

func (k *KeyringStorage) Delete() error {
	err := k.ring.Remove(k.key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing credential %q: %w", k.key, err)
	}
	return nil
}

func checkToken(tok *oauth2.Token) error {
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return errors.New("token has neither access nor refresh token")
	}
	return nil
}

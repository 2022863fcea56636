package imapbox

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

// PasswordKey is the keyring entry consulted when the environment variable
// is unset.
const PasswordKey = "imap-password"

// LookupPassword reads the account password from envVar, falling back to
// the keyring when ring is not nil.
func LookupPassword(envVar string, ring keyring.Keyring) (string, error) {
	if envVar != "" {
		if pw := os.Getenv(envVar); pw != "" {
			return pw, nil
		}
	}
	if ring == nil {
		return "", fmt.Errorf("IMAP password not set: export %s", envVar)
	}
	item, err := ring.Get(PasswordKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("IMAP password not set: export %s or store %q in the keyring", envVar, PasswordKey)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", PasswordKey, err)
	}
	return string(item.Data), nil
}

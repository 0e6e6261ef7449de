package moodle

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/zalando/go-keyring"
)

// Provider supplies a fresh webservice token through an interactive login.
// Implementations live in the CLI (paste-the-callback prompt) and in tests.
type Provider interface {
	RequestToken(ctx context.Context) (string, error)
}

// TokenStore persists the bearer token across restarts.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	Clear() error
}

// KeyringStore keeps the token in the OS keychain.
type KeyringStore struct {
	Service string
	User    string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: "webeep-sync", User: "wstoken"}
}

func (k *KeyringStore) Token() (string, error) {
	tok, err := keyring.Get(k.Service, k.User)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	return tok, err
}

func (k *KeyringStore) SetToken(token string) error {
	return keyring.Set(k.Service, k.User, token)
}

func (k *KeyringStore) Clear() error {
	err := keyring.Delete(k.Service, k.User)
	if err == keyring.ErrNotFound {
		return nil
	}
	return err
}

// MemoryTokenStore is an in-memory TokenStore for tests and headless use.
type MemoryTokenStore struct {
	token string
}

func (m *MemoryTokenStore) Token() (string, error) { return m.token, nil }

func (m *MemoryTokenStore) SetToken(token string) error {
	m.token = token
	return nil
}

func (m *MemoryTokenStore) Clear() error {
	m.token = ""
	return nil
}

// NewPassport returns the random nonce that ties a mobile-launch request to
// its callback.
func NewPassport() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// BuildLaunchURL returns the browser URL that starts the SSO token handoff.
// The platform redirects back to a custom-scheme URL carrying the token.
func BuildLaunchURL(serverURL, passport string) string {
	q := url.Values{}
	q.Set("service", "local_mobile")
	q.Set("passport", passport)
	q.Set("urlscheme", "webeep")
	return strings.TrimSuffix(serverURL, "/") + "/admin/tool/mobile/launch.php?" + q.Encode()
}

// ParseLaunchToken extracts the webservice token from the custom-scheme
// callback URL (`webeep://token=<base64>`). The base64 payload is
// `signature:::token[:::privatetoken]` where the signature is the md5 of
// the site URL concatenated with the passport.
func ParseLaunchToken(callbackURL, serverURL, passport string) (string, error) {
	_, payload, found := strings.Cut(callbackURL, "token=")
	if !found {
		return "", fmt.Errorf("moodle: callback url has no token parameter")
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("moodle: decode token payload: %w", err)
	}

	parts := strings.Split(string(decoded), ":::")
	if len(parts) < 2 {
		return "", fmt.Errorf("moodle: malformed token payload")
	}

	want := md5.Sum([]byte(strings.TrimSuffix(serverURL, "/") + passport))
	if parts[0] != hex.EncodeToString(want[:]) {
		return "", fmt.Errorf("moodle: token signature mismatch")
	}

	return parts[1], nil
}

// Package session owns the API bearer token and reports authentication
// changes as explicit messages. Nothing else reads session state ambiently.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/marketbell/internal/credential"
)

// TokenKey is the credential key holding the API token.
const TokenKey = "api-token"

// EnvToken overrides the stored token when set.
const EnvToken = "MARKETBELL_TOKEN"

// AuthChangedMsg is emitted whenever the session gains or loses a token.
type AuthChangedMsg struct {
	Authenticated bool
}

// ExpiredMsg is emitted by any component whose request was rejected
// with 401. The root model reacts by dropping the in-memory token.
type ExpiredMsg struct {
	Reason string
}

// Expired returns a command emitting ExpiredMsg.
func Expired(reason string) tea.Cmd {
	return func() tea.Msg { return ExpiredMsg{Reason: reason} }
}

// Changed returns a command emitting AuthChangedMsg.
func Changed(authenticated bool) tea.Cmd {
	return func() tea.Msg { return AuthChangedMsg{Authenticated: authenticated} }
}

// CredentialStore persists the token between runs.
type CredentialStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session holds the current token. Token is safe to call from command
// goroutines while the UI goroutine logs in or out.
type Session struct {
	mu    sync.RWMutex
	token string
	store CredentialStore
}

// New creates an empty session backed by store. store may be nil, in
// which case tokens live only in memory.
func New(store CredentialStore) *Session {
	return &Session{store: store}
}

// Load restores the token from the environment or the credential store.
// A missing token is not an error.
func (s *Session) Load() (bool, error) {
	if tok := strings.TrimSpace(os.Getenv(EnvToken)); tok != "" {
		s.setToken(tok)
		return true, nil
	}
	if s.store == nil {
		return false, nil
	}

	tok, err := s.store.Get(TokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading session token: %w", err)
	}
	s.setToken(strings.TrimSpace(tok))
	return s.Authenticated(), nil
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Login stores token and marks the session authenticated.
func (s *Session) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if s.store != nil {
		if err := s.store.Set(TokenKey, token); err != nil {
			return fmt.Errorf("saving session token: %w", err)
		}
	}
	s.setToken(token)
	return nil
}

// Logout forgets the token in memory and in the credential store.
func (s *Session) Logout() error {
	s.setToken("")
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(TokenKey); err != nil {
		return fmt.Errorf("removing session token: %w", err)
	}
	return nil
}

// Expire drops the in-memory token but keeps the stored one, so a
// restart retries it.
func (s *Session) Expire() {
	s.setToken("")
}

func (s *Session) setToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = tok
}

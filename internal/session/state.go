// Package session holds the in-memory credential and the identity hints
// derived from it. It is the single owner of the access token: the gateway,
// the renewal scheduler and the realtime channels all read it through a
// shared *State.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/clock"
)

// DefaultTokenType is used when the server omits a token type.
const DefaultTokenType = "Bearer"

// MaxLifetime caps a reported token lifetime so the derived expiry cannot
// overflow into the past.
const MaxLifetime = 10 * 365 * 24 * time.Hour

// ErrEmptyToken is returned when Set is called without a token.
var ErrEmptyToken = errors.New("session: access token is empty")

// Credential is a snapshot of the stored access token.
type Credential struct {
	Token     string    `json:"-"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the credential carries a token.
func (c Credential) Valid() bool {
	return c.Token != ""
}

// AuthorizationHeader renders the credential as an Authorization value.
func (c Credential) AuthorizationHeader() string {
	kind := c.TokenType
	if kind == "" || strings.EqualFold(kind, DefaultTokenType) {
		kind = DefaultTokenType
	}
	return kind + " " + c.Token
}

// Profile carries the display fields the shell shows next to the session.
type Profile struct {
	DisplayName     string `json:"displayName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
	Point           int64  `json:"point"`
}

// State is the credential store. The zero value is not usable; call New.
type State struct {
	clock clock.Clock

	mu        sync.RWMutex
	cred      Credential
	profile   Profile
	observers []*expiryObserver
}

type expiryObserver struct {
	fn func(expiresAt time.Time)
}

// New creates an empty store. A nil clock selects wall time.
func New(c clock.Clock) *State {
	if c == nil {
		c = clock.Real()
	}
	return &State{clock: c}
}

// Set stores a bearer token valid for lifetimeSeconds from now.
func (s *State) Set(token string, lifetimeSeconds int64) error {
	return s.SetTyped(token, DefaultTokenType, lifetimeSeconds)
}

// SetTyped stores a token with an explicit token kind label. The expiry is
// always derived from the lifetime the server just reported, clamped to
// [0, MaxLifetime].
func (s *State) SetTyped(token, tokenType string, lifetimeSeconds int64) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if strings.TrimSpace(tokenType) == "" {
		tokenType = DefaultTokenType
	}
	s.mu.Lock()
	s.cred = Credential{
		Token:     token,
		TokenType: tokenType,
		ExpiresAt: s.clock.Now().Add(lifetime(lifetimeSeconds)),
	}
	expiresAt := s.cred.ExpiresAt
	s.mu.Unlock()

	s.notify(expiresAt)
	return nil
}

func lifetime(seconds int64) time.Duration {
	switch {
	case seconds <= 0:
		return 0
	case seconds > int64(MaxLifetime/time.Second):
		return MaxLifetime
	}
	return time.Duration(seconds) * time.Second
}

// Get returns the current token.
func (s *State) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token, s.cred.Token != ""
}

// Credential returns a snapshot of the stored credential.
func (s *State) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Expiry returns the absolute expiry instant, if a credential is stored.
func (s *State) Expiry() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred.Token == "" {
		return time.Time{}, false
	}
	return s.cred.ExpiresAt, true
}

// Authenticated reports whether a token is present.
func (s *State) Authenticated() bool {
	_, ok := s.Get()
	return ok
}

// Clear drops the credential and every field derived from the session.
func (s *State) Clear() {
	s.mu.Lock()
	s.cred = Credential{}
	s.profile = Profile{}
	s.mu.Unlock()

	s.notify(time.Time{})
}

// SetProfileImageURL stores a trimmed profile image URL; blank clears it.
func (s *State) SetProfileImageURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.ProfileImageURL = strings.TrimSpace(url)
}

// SetProfileSummary stores the display name and point balance.
func (s *State) SetProfileSummary(displayName string, point int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.DisplayName = strings.TrimSpace(displayName)
	s.profile.Point = point
}

// Profile returns the stored profile fields.
func (s *State) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// OnExpiryChange registers fn to run after every write to the expiry.
// Clear reports the zero time. Observers run synchronously, in registration
// order, on the goroutine that wrote the credential.
func (s *State) OnExpiryChange(fn func(expiresAt time.Time)) (cancel func()) {
	obs := &expiryObserver{fn: fn}
	s.mu.Lock()
	s.observers = append(s.observers, obs)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o == obs {
				s.observers = append(s.observers[:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *State) notify(expiresAt time.Time) {
	s.mu.RLock()
	observers := append([]*expiryObserver(nil), s.observers...)
	s.mu.RUnlock()

	for _, obs := range observers {
		obs.fn(expiresAt)
	}
}

package renewal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// DefaultRefreshPath is the cookie-authenticated renewal endpoint.
const DefaultRefreshPath = "/auth/refresh"

// ErrRejected marks a renewal the server refused or answered with an
// unusable payload. Retrying it with the same session cookie is pointless.
var ErrRejected = errors.New("renewal: session rejected")

// ErrUnavailable marks a refresh the server could not serve right now
// (5xx, 429 and other non-verdict statuses). The session may still be good.
var ErrUnavailable = errors.New("renewal: server unavailable")

// TokenResponse is the body returned by login, OAuth2 exchange and refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	TokenType    string `json:"tokenType"`
	ExpiresInSec *int64 `json:"expiresInSec"`
}

// Validate checks the fields the credential store needs.
func (t TokenResponse) Validate() error {
	if strings.TrimSpace(t.AccessToken) == "" {
		return fmt.Errorf("%w: missing accessToken", ErrRejected)
	}
	if t.ExpiresInSec == nil {
		return fmt.Errorf("%w: missing expiresInSec", ErrRejected)
	}
	if *t.ExpiresInSec < 0 {
		return fmt.Errorf("%w: negative expiresInSec %d", ErrRejected, *t.ExpiresInSec)
	}
	return nil
}

// rejectsSession reports whether a refresh status is the server's verdict
// on the session cookie itself.
func rejectsSession(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// Exchanger trades the current session for a fresh token.
type Exchanger interface {
	Exchange(ctx context.Context) (TokenResponse, error)
}

// HTTPExchanger posts to the refresh endpoint. The client must carry the
// cookie jar holding the refresh-session cookie.
type HTTPExchanger struct {
	BaseURL string
	Path    string
	Client  *http.Client
}

// Exchange performs one refresh round trip.
func (e *HTTPExchanger) Exchange(ctx context.Context) (TokenResponse, error) {
	path := e.Path
	if path == "" {
		path = DefaultRefreshPath
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.BaseURL, "/")+path, nil)
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Accept", "application/json")

	httpClient := e.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, fmt.Errorf("renewal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		if rejectsSession(resp.StatusCode) {
			return TokenResponse{}, fmt.Errorf("%w: POST %s: %s", ErrRejected, path, resp.Status)
		}
		return TokenResponse{}, fmt.Errorf("%w: POST %s: %s", ErrUnavailable, path, resp.Status)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return TokenResponse{}, fmt.Errorf("%w: unexpected content type %q", ErrRejected, resp.Header.Get("Content-Type"))
	}
	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return TokenResponse{}, fmt.Errorf("%w: decode: %v", ErrRejected, err)
	}
	if err := token.Validate(); err != nil {
		return TokenResponse{}, err
	}
	return token, nil
}

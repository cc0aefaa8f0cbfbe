package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OhSeongHyeon/mocktalkfront/internal/client"
	"github.com/OhSeongHyeon/mocktalkfront/internal/realtime"
	"github.com/OhSeongHyeon/mocktalkfront/internal/store"
)

func newTestServer(t *testing.T, token string) (*Server, *client.Client, *store.Store) {
	t.Helper()
	upstream := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(upstream.Close)

	c, err := client.New(client.Options{BaseURL: upstream.URL + "/api"})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(c.Close)

	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })

	return NewServer(c, Options{Token: token, History: history}), c, history
}

func serve(s *Server, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRequestID(t *testing.T) {
	s, _, _ := newTestServer(t, "")

	rec := serve(s, http.MethodGet, "/healthz", http.Header{"X-Request-Id": {"abc"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Fatalf("request id not echoed")
	}
	if rec := serve(s, http.MethodGet, "/healthz", nil); rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("request id not generated")
	}
}

func TestSessionNeverExposesToken(t *testing.T) {
	s, c, _ := newTestServer(t, "")
	if err := c.Store.Set("header.eyJyb2xlIjoiQURNSU4ifQ.sig", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	rec := serve(s, http.MethodGet, "/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "eyJyb2xlIjoiQURNSU4ifQ") {
		t.Fatalf("token leaked: %s", rec.Body.String())
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["authenticated"] != true || body["renewalArmed"] != true || body["role"] != "ADMIN" {
		t.Fatalf("unexpected session body %v", body)
	}
}

func TestChannelsAndHistory(t *testing.T) {
	s, c, history := newTestServer(t, "")
	if _, err := c.BoardChannel(7, realtime.Subscription{}); err != nil {
		t.Fatalf("BoardChannel: %v", err)
	}
	if err := history.AppendHistory(&store.HistoryEntry{Event: store.EventLogin}); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	rec := serve(s, http.MethodGet, "/channels", nil)
	var channels struct {
		Channels []ChannelStatus `json:"channels"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &channels); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(channels.Channels) != 1 || channels.Channels[0].Scope != "board:7" || channels.Channels[0].State != "idle" {
		t.Fatalf("unexpected channels %+v", channels)
	}

	rec = serve(s, http.MethodGet, "/history?limit=5&event=login", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"event":"login"`) {
		t.Fatalf("unexpected history response %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(s, http.MethodGet, "/history?limit=x", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	s, c, _ := newTestServer(t, "secret")
	if err := c.Store.Set("token", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if rec := serve(s, http.MethodPost, "/session/logout", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if !c.Store.Authenticated() {
		t.Fatalf("unauthorized call must not log out")
	}

	rec := serve(s, http.MethodPost, "/session/logout", http.Header{"Authorization": {"Bearer secret"}})
	// The upstream has no logout route, so the server call fails after local cleanup.
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if c.Store.Authenticated() {
		t.Fatalf("logout must clear the credential")
	}
}

func TestLogoutDisabledWithoutToken(t *testing.T) {
	s, c, _ := newTestServer(t, "")
	if err := c.Store.Set("token", 600); err != nil {
		t.Fatalf("Set: %v", err)
	}

	for _, header := range []http.Header{nil, {"Authorization": {"Bearer "}}, {"X-Status-Token": {"anything"}}} {
		if rec := serve(s, http.MethodPost, "/session/logout", header); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403 without a configured token, got %d", rec.Code)
		}
	}
	if !c.Store.Authenticated() {
		t.Fatalf("logout must stay disabled without a token")
	}
	if rec := serve(s, http.MethodGet, "/session", nil); rec.Code != http.StatusOK {
		t.Fatalf("read-only routes stay open, got %d", rec.Code)
	}
}

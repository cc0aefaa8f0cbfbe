package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/renewal"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

type countingTerminator struct{ raised atomic.Int32 }

func (c *countingTerminator) Raise(context.Context) { c.raised.Add(1) }

// fakeAPI is a board API whose protected resource accepts exactly one token.
type fakeAPI struct {
	mu            sync.Mutex
	validToken    string
	refreshToken  string
	refreshStatus int
	refreshGate   func()
	alwaysReject  bool

	refreshCalls atomic.Int32
	apiCalls     atomic.Int32
	seenAuth     []string
	seenBodies   []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshGate != nil {
			f.refreshGate()
		}
		if f.refreshStatus != 0 && f.refreshStatus != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.refreshStatus)
			_, _ = io.WriteString(w, `{"message":"refresh token expired"}`)
			return
		}
		f.mu.Lock()
		f.validToken = f.refreshToken
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"accessToken":%q,"tokenType":"Bearer","expiresInSec":900}`, f.refreshToken)
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success":false,"error":{"reason":"bad credentials"}}`)
	})
	mux.HandleFunc("/api/boards", func(w http.ResponseWriter, r *http.Request) {
		f.apiCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.seenAuth = append(f.seenAuth, r.Header.Get("Authorization"))
		f.seenBodies = append(f.seenBodies, string(body))
		ok := !f.alwaysReject && r.Header.Get("Authorization") == "Bearer "+f.validToken
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"token expired"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"data":{"items":[]}}`)
	})
	return mux
}

func (f *fakeAPI) auth(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenAuth[i]
}

func (f *fakeAPI) body(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenBodies[i]
}

func newFixture(t *testing.T, api *fakeAPI) (*Gateway, *session.State, *countingTerminator) {
	t.Helper()
	g, store, term, _ := newRenewerFixture(t, api)
	return g, store, term
}

func newRenewerFixture(t *testing.T, api *fakeAPI) (*Gateway, *session.State, *countingTerminator, *renewal.Renewer) {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	store := session.New(nil)
	term := &countingTerminator{}
	renewer := renewal.NewRenewer(&renewal.HTTPExchanger{BaseURL: srv.URL + "/api", Client: srv.Client()}, store, nil)
	g := New(Options{
		BaseURL:    srv.URL + "/api",
		Client:     srv.Client(),
		Store:      store,
		Renewer:    renewer,
		Terminator: term,
	})
	return g, store, term, renewer
}

func TestExecuteAttachesCredential(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{validToken: "current"}
	g, store, _ := newFixture(t, api)
	_ = store.Set("current", 900)

	res, err := g.Execute(context.Background(), "/boards", Request{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Kind != KindJSON {
		t.Fatalf("expected JSON result, got %v", res.Kind)
	}
	if api.auth(0) != "Bearer current" {
		t.Fatalf("unexpected Authorization %q", api.auth(0))
	}
}

func TestExecuteKeepsCallerAuthorization(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{validToken: "explicit"}
	g, store, _ := newFixture(t, api)
	_ = store.Set("stored", 900)

	header := http.Header{}
	header.Set("Authorization", "Bearer explicit")
	if _, err := g.Execute(context.Background(), "boards", Request{Header: header}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if api.auth(0) != "Bearer explicit" {
		t.Fatalf("caller header overwritten: %q", api.auth(0))
	}
}

func TestUnauthorizedRenewsAndRetransmitsOnce(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{validToken: "server-side-new", refreshToken: "server-side-new"}
	g, store, term := newFixture(t, api)
	_ = store.Set("stale", 900)

	req, err := JSON(http.MethodPost, map[string]string{"boardName": "go"})
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	res, err := g.Execute(context.Background(), "/boards", req)
	if err != nil {
		t.Fatalf("caller must not see the first 401: %v", err)
	}
	if res.Null() {
		t.Fatalf("expected a body")
	}
	if got := api.apiCalls.Load(); got != 2 {
		t.Fatalf("expected original + one retransmission, got %d calls", got)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if api.auth(1) != "Bearer server-side-new" {
		t.Fatalf("retransmission used %q", api.auth(1))
	}
	if api.body(0) != api.body(1) || !strings.Contains(api.body(1), "boardName") {
		t.Fatalf("body not retransmitted intact: %q vs %q", api.body(0), api.body(1))
	}
	if term.raised.Load() != 0 {
		t.Fatalf("unexpected termination")
	}
}

func TestUnauthorizedOnRenewalPathDoesNotRenew(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	g, _, term := newFixture(t, api)

	_, err := g.Execute(context.Background(), "/auth/login", Request{Method: http.MethodPost})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if apiErr.Message != "bad credentials" {
		t.Fatalf("expected nested reason, got %q", apiErr.Message)
	}
	if api.refreshCalls.Load() != 0 {
		t.Fatalf("renewal path triggered a renewal")
	}
	if term.raised.Load() != 0 {
		t.Fatalf("renewal path raised termination")
	}
}

func TestRenewalFailureTerminatesWithOriginalError(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{validToken: "x", refreshStatus: http.StatusUnauthorized}
	g, store, term := newFixture(t, api)
	_ = store.Set("stale", 900)

	_, err := g.Execute(context.Background(), "/boards", Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "token expired" {
		t.Fatalf("expected original 401, got %v", err)
	}
	if store.Authenticated() {
		t.Fatalf("store not cleared")
	}
	if term.raised.Load() != 1 {
		t.Fatalf("expected one termination, got %d", term.raised.Load())
	}
	if api.apiCalls.Load() != 1 {
		t.Fatalf("request retransmitted without a renewed credential")
	}
}

func TestSecondUnauthorizedIsNotRetried(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{refreshToken: "new", alwaysReject: true}
	g, store, term := newFixture(t, api)
	_ = store.Set("stale", 900)

	_, err := g.Execute(context.Background(), "/boards", Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if got := api.apiCalls.Load(); got != 2 {
		t.Fatalf("expected exactly two attempts, got %d", got)
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}
	if term.raised.Load() != 1 {
		t.Fatalf("expected termination after persistent 401")
	}
	if store.Authenticated() {
		t.Fatalf("store not cleared")
	}
}

func TestConcurrentUnauthorizedCallsShareOneRenewal(t *testing.T) {
	t.Parallel()

	const callers = 8
	api := &fakeAPI{validToken: "old-server", refreshToken: "fresh"}
	joined := make(chan struct{})
	api.refreshGate = func() { <-joined }
	g, store, term, renewer := newRenewerFixture(t, api)
	_ = store.Set("expired", 900)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Execute(context.Background(), "/boards", Request{})
			errs <- err
		}()
	}
	// Hold the exchange until every rejected caller has joined it.
	deadline := time.Now().Add(5 * time.Second)
	for renewer.Waiting() < callers {
		if time.Now().After(deadline) {
			close(joined)
			t.Fatalf("only %d of %d callers joined the renewal", renewer.Waiting(), callers)
		}
		time.Sleep(time.Millisecond)
	}
	close(joined)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("caller failed: %v", err)
		}
	}
	if got := api.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh exchange, got %d", got)
	}
	if got := api.apiCalls.Load(); got != 2*callers {
		t.Fatalf("expected each caller to retransmit once, got %d calls", got)
	}
	if term.raised.Load() != 0 {
		t.Fatalf("unexpected termination")
	}
}

func TestErrorMessageStrategies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{name: "message first", contentType: "application/json", body: `{"message":"m","reason":"r","error":{"reason":"e"}}`, want: "m"},
		{name: "reason second", contentType: "application/json", body: `{"reason":"r","error":{"reason":"e"}}`, want: "r"},
		{name: "nested reason third", contentType: "application/json", body: `{"success":false,"error":{"reason":"e"}}`, want: "e"},
		{name: "empty message skipped", contentType: "application/json", body: `{"message":"","reason":"r"}`, want: "r"},
		{name: "no known field", contentType: "application/json", body: `{"detail":"x"}`, want: "404 Not Found"},
		{name: "broken json", contentType: "application/json", body: `{`, want: "404 Not Found"},
		{name: "plain text", contentType: "text/plain", body: "board not found", want: "board not found"},
		{name: "empty body", contentType: "text/plain", body: "", want: "404 Not Found"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			g := New(Options{BaseURL: srv.URL, Client: srv.Client()})
			_, err := g.Execute(context.Background(), "/boards/slug/missing", Request{})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Status != http.StatusNotFound || apiErr.Message != tc.want {
				t.Fatalf("got status=%d message=%q, want %q", apiErr.Status, apiErr.Message, tc.want)
			}
		})
	}
}

func TestResultKinds(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/json":
			w.Header().Set("Content-Type", "application/json;charset=UTF-8")
			_, _ = io.WriteString(w, `{"success":true,"data":{"id":7}}`)
		case "/text":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "pong")
		}
	}))
	defer srv.Close()
	g := New(Options{BaseURL: srv.URL, Client: srv.Client()})
	ctx := context.Background()

	res, err := g.Execute(ctx, "/empty", Request{Method: http.MethodDelete})
	if err != nil || !res.Null() {
		t.Fatalf("expected null result, got %+v err=%v", res, err)
	}

	type board struct {
		ID int64 `json:"id"`
	}
	env, err := Do[struct {
		Success bool  `json:"success"`
		Data    board `json:"data"`
	}](ctx, g, "/json", Request{})
	if err != nil || !env.Success || env.Data.ID != 7 {
		t.Fatalf("unexpected JSON decode %+v err=%v", env, err)
	}

	res, err = g.Execute(ctx, "/text", Request{})
	if err != nil || res.Kind != KindText || res.Text() != "pong" {
		t.Fatalf("unexpected text result %+v err=%v", res, err)
	}
}

func TestTransportFailureIsAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	term := &countingTerminator{}
	g := New(Options{BaseURL: url, Terminator: term})
	_, err := g.Execute(context.Background(), "/boards", Request{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 0 || apiErr.Err == nil {
		t.Fatalf("expected transport APIError, got %v", err)
	}
	if term.raised.Load() != 0 {
		t.Fatalf("transport failure must not end the session")
	}
}

func TestURLResolution(t *testing.T) {
	t.Parallel()

	g := New(Options{BaseURL: "https://board.example/api/"})
	cases := map[string]string{
		"/boards":                     "https://board.example/api/boards",
		"boards":                      "https://board.example/api/boards",
		"https://cdn.example/file.png": "https://cdn.example/file.png",
	}
	for in, want := range cases {
		if got := g.URL(in); got != want {
			t.Fatalf("URL(%q) = %q, want %q", in, got, want)
		}
	}
}

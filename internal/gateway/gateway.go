// Package gateway wraps every outbound API call: it attaches the access
// token, renews it once on 401 and normalizes failures into *APIError.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
	"github.com/OhSeongHyeon/mocktalkfront/internal/metrics"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

// DefaultSkipRenewalPrefixes lists paths whose 401 never triggers renewal:
// the credential exchange endpoints themselves.
var DefaultSkipRenewalPrefixes = []string{"/auth/"}

// Renewer is satisfied by *renewal.Renewer.
type Renewer interface {
	Renew(ctx context.Context) (session.Credential, error)
}

// Terminator raises the session-ended signal.
type Terminator interface {
	Raise(ctx context.Context)
}

// Executor is the call surface the typed API wrappers depend on.
type Executor interface {
	Execute(ctx context.Context, path string, req Request) (*Result, error)
}

// Options configure a Gateway.
type Options struct {
	BaseURL             string
	Client              *http.Client
	Store               *session.State
	Renewer             Renewer
	Terminator          Terminator
	SkipRenewalPrefixes []string
}

// Gateway is the authenticated request path for REST calls.
type Gateway struct {
	baseURL    string
	client     *http.Client
	store      *session.State
	renewer    Renewer
	terminator Terminator
	skip       []string
}

// New builds a gateway.
func New(opts Options) *Gateway {
	httpClient := opts.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	skip := opts.SkipRenewalPrefixes
	if skip == nil {
		skip = DefaultSkipRenewalPrefixes
	}
	return &Gateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		client:     httpClient,
		store:      opts.Store,
		renewer:    opts.Renewer,
		terminator: opts.Terminator,
		skip:       skip,
	}
}

// URL resolves path against the base URL. Absolute URLs pass through.
func (g *Gateway) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.baseURL + path
}

// Execute performs the call. A 401 on a first attempt triggers one renewal
// and at most one retransmission; a failed renewal, or a 401 on the
// retransmission, ends the session.
func (g *Gateway) Execute(ctx context.Context, path string, req Request) (*Result, error) {
	return g.execute(ctx, path, req, false)
}

func (g *Gateway) execute(ctx context.Context, path string, req Request, retry bool) (*Result, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, g.URL(path), body)
	if err != nil {
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if httpReq.Header.Get("Authorization") == "" && g.store != nil {
		if cred := g.store.Credential(); cred.Valid() {
			httpReq.Header.Set("Authorization", cred.AuthorizationHeader())
		}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		metrics.ObserveRequest(method, 0, retry)
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveRequest(method, resp.StatusCode, retry)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return readResult(resp)
	}

	apiErr := readError(resp)
	if resp.StatusCode != http.StatusUnauthorized || !g.renewable(path) {
		return nil, apiErr
	}
	if retry {
		logutil.Warn("request rejected after renewal", apiErr, map[string]interface{}{"path": path})
		g.terminate(ctx)
		return nil, apiErr
	}
	if g.renewer != nil {
		_, err := g.renewer.Renew(ctx)
		if err == nil {
			return g.execute(ctx, path, req, true)
		}
		// The caller gave up; that says nothing about the session.
		if ctx.Err() != nil {
			apiErr.Err = ctx.Err()
			return nil, apiErr
		}
	}
	g.terminate(ctx)
	return nil, apiErr
}

func (g *Gateway) renewable(path string) bool {
	for _, prefix := range g.skip {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (g *Gateway) terminate(ctx context.Context) {
	if g.store != nil {
		g.store.Clear()
	}
	if g.terminator != nil {
		g.terminator.Raise(ctx)
	}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func readError(resp *http.Response) *APIError {
	raw, err := io.ReadAll(resp.Body)
	var details interface{}
	if err == nil && len(raw) > 0 {
		if isJSON(resp.Header.Get("Content-Type")) {
			if jsonErr := json.Unmarshal(raw, &details); jsonErr != nil {
				details = nil
			}
		} else {
			details = string(raw)
		}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Message: extractMessage(details, resp.Status),
		Details: details,
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Request describes one API call. Body is buffered so the call can be
// retransmitted after a renewal.
type Request struct {
	Method string
	Header http.Header
	Body   []byte
}

// JSON builds a request carrying payload as a JSON body.
func JSON(method string, payload interface{}) (Request, error) {
	req := Request{Method: method, Header: http.Header{}}
	req.Header.Set("Content-Type", "application/json")
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("gateway: encode body: %w", err)
	}
	req.Body = data
	return req, nil
}

// Kind classifies a successful response body.
type Kind int

const (
	KindNull Kind = iota
	KindJSON
	KindText
)

// Result is a successful response.
type Result struct {
	Status int
	Kind   Kind
	Body   []byte
}

// Null reports an empty-body success.
func (r *Result) Null() bool {
	return r == nil || r.Kind == KindNull
}

// Text returns the raw body.
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Decode unmarshals a JSON result into v. A null result leaves v untouched.
func (r *Result) Decode(v interface{}) error {
	if r.Null() {
		return nil
	}
	if r.Kind != KindJSON {
		return fmt.Errorf("gateway: response is not JSON")
	}
	return json.Unmarshal(r.Body, v)
}

func readResult(resp *http.Response) (*Result, error) {
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &Result{Status: resp.StatusCode, Kind: KindNull}, nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	if len(raw) == 0 {
		return &Result{Status: resp.StatusCode, Kind: KindNull}, nil
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		if !json.Valid(raw) {
			return nil, &APIError{Status: resp.StatusCode, Message: "invalid JSON response", Details: string(raw)}
		}
		return &Result{Status: resp.StatusCode, Kind: KindJSON, Body: raw}, nil
	}
	return &Result{Status: resp.StatusCode, Kind: KindText, Body: raw}, nil
}

// Do executes req and decodes the JSON result into T.
func Do[T any](ctx context.Context, exec Executor, path string, req Request) (T, error) {
	var out T
	res, err := exec.Execute(ctx, path, req)
	if err != nil {
		return out, err
	}
	if err := res.Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

// Package forum provides typed wrappers for the board REST API. Every call
// goes through the gateway, so renewal and session termination apply.
package forum

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/OhSeongHyeon/mocktalkfront/internal/gateway"
	"github.com/OhSeongHyeon/mocktalkfront/internal/session"
)

// Terminator raises the session-ended signal.
type Terminator interface {
	Raise(ctx context.Context)
}

// Options configure a Client.
type Options struct {
	Store      *session.State
	Terminator Terminator
	// FileBaseURL prefixes relative storage keys, e.g. https://cdn.example/uploads.
	FileBaseURL string
}

// Client is the typed API surface used by the shell.
type Client struct {
	exec        gateway.Executor
	store       *session.State
	terminator  Terminator
	fileBaseURL string
}

// New wraps an executor, normally a *gateway.Gateway.
func New(exec gateway.Executor, opts Options) *Client {
	return &Client{
		exec:        exec,
		store:       opts.Store,
		terminator:  opts.Terminator,
		fileBaseURL: strings.TrimRight(strings.TrimSpace(opts.FileBaseURL), "/"),
	}
}

// Envelope is the standard API wrapper.
type Envelope[T any] struct {
	Success bool        `json:"success"`
	Data    T           `json:"data"`
	Error   interface{} `json:"error,omitempty"`
}

// Page is a paginated list.
type Page[T any] struct {
	Items         []T   `json:"items"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	HasNext       bool  `json:"hasNext"`
	HasPrevious   bool  `json:"hasPrevious"`
}

// File is an uploaded file reference.
type File struct {
	ID          int64   `json:"id"`
	FileClassID int64   `json:"fileClassId"`
	FileName    string  `json:"fileName"`
	StorageKey  string  `json:"storageKey"`
	FileSize    int64   `json:"fileSize"`
	MimeType    string  `json:"mimeType"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	DeletedAt   *string `json:"deletedAt"`
}

// call executes req and unwraps the envelope. An envelope carrying an error
// object is reported as an *gateway.APIError even on a 2xx status.
func call[T any](ctx context.Context, exec gateway.Executor, path string, req gateway.Request) (T, error) {
	var zero T
	res, err := exec.Execute(ctx, path, req)
	if err != nil {
		return zero, err
	}
	var env Envelope[T]
	if err := res.Decode(&env); err != nil {
		return zero, &gateway.APIError{Status: res.Status, Message: "decode " + path + ": " + err.Error(), Err: err}
	}
	if !env.Success && env.Error != nil {
		return zero, &gateway.APIError{
			Status:  res.Status,
			Message: envelopeMessage(env.Error),
			Details: env.Error,
		}
	}
	return env.Data, nil
}

func envelopeMessage(detail interface{}) string {
	switch v := detail.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case map[string]interface{}:
		for _, key := range []string{"message", "reason", "code"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}
	return "request failed"
}

func get() gateway.Request {
	return gateway.Request{Method: "GET"}
}

func withMethod(method string) gateway.Request {
	return gateway.Request{Method: method}
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

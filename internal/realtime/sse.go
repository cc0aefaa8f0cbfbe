package realtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// frame is one dispatched server-sent event.
type frame struct {
	Event string
	ID    string
	Data  string
}

// readFrames parses an SSE stream and calls fn for every complete frame.
// Returning false from fn stops reading. A clean EOF returns io.EOF so the
// caller can treat a server-closed stream as a connection error.
func readFrames(r io.Reader, fn func(frame) bool) error {
	reader := bufio.NewReader(r)
	var (
		eventType string
		eventID   string
		dataLines []string
	)

	dispatch := func() bool {
		if len(dataLines) == 0 {
			eventType = ""
			eventID = ""
			return true
		}
		f := frame{Event: eventType, ID: eventID, Data: strings.Join(dataLines, "\n")}
		dataLines = dataLines[:0]
		eventType = ""
		eventID = ""
		if f.Event == "" {
			f.Event = "message"
		}
		return fn(f)
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !dispatch() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "id:"):
			eventID = strings.TrimSpace(line[len("id:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(line[len("data:"):], " "))
		}
	}
}

// Dialer opens a push stream. The returned body is closed by the channel.
type Dialer interface {
	Dial(ctx context.Context, url string) (io.ReadCloser, error)
}

// SSEDialer opens text/event-stream responses. Client must not set a
// Timeout; cancelling ctx is how a stream is torn down.
type SSEDialer struct {
	Client *http.Client
}

// Dial issues the streaming GET and returns the response body once the
// server accepted the subscription.
func (d *SSEDialer) Dial(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := d.Client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s failed: %s", redactedPath(rawURL), resp.Status)
	}
	return resp.Body, nil
}

// redactedPath drops the query string, which may carry the access token.
func redactedPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "stream"
	}
	return u.Path
}

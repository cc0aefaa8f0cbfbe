package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// APIError is returned for every failed call. Status is 0 when the request
// never produced an HTTP response.
type APIError struct {
	Status  int
	Message string
	// Details is the decoded error body: a JSON value, a string, or nil.
	Details interface{}
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Unauthorized reports whether the server answered 401.
func (e *APIError) Unauthorized() bool {
	return e.Status == 401
}

// messageStrategy extracts a human-readable message from a decoded JSON
// error body. The order of messageStrategies is a compatibility contract
// with the server's error shapes: first non-empty result wins.
type messageStrategy func(body map[string]interface{}) string

var messageStrategies = []messageStrategy{
	topLevel("message"),
	topLevel("reason"),
	nestedErrorReason,
}

func topLevel(key string) messageStrategy {
	return func(body map[string]interface{}) string {
		return scalarString(body[key])
	}
}

func nestedErrorReason(body map[string]interface{}) string {
	nested, ok := body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	return scalarString(nested["reason"])
}

func scalarString(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		if typed == 0 {
			return ""
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	case bool:
		if typed {
			return "true"
		}
	}
	return ""
}

// extractMessage picks the message for an error body, falling back to the
// HTTP status line.
func extractMessage(details interface{}, statusLine string) string {
	switch typed := details.(type) {
	case string:
		if msg := strings.TrimSpace(typed); msg != "" {
			return msg
		}
	case map[string]interface{}:
		for _, strategy := range messageStrategies {
			if msg := strategy(typed); msg != "" {
				return msg
			}
		}
	}
	return statusLine
}

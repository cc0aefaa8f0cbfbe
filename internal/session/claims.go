package session

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// RoleAdmin is the role claim value that unlocks admin screens.
const RoleAdmin = "ADMIN"

// Claim decodes a string claim from the token payload. The signature is not
// verified; the result is a display hint and the server re-checks every
// privileged call. Any decode failure reports no claim.
func (s *State) Claim(name string) (string, bool) {
	token, ok := s.Get()
	if !ok {
		return "", false
	}
	payload := parsePayload(token)
	if payload == nil {
		return "", false
	}
	value, ok := payload[name].(string)
	if !ok {
		return "", false
	}
	return value, true
}

// Role returns the role claim, or "" when absent.
func (s *State) Role() string {
	role, _ := s.Claim("role")
	return role
}

// IsAdmin reports whether the role claim is ADMIN.
func (s *State) IsAdmin() bool {
	return s.Role() == RoleAdmin
}

func parsePayload(token string) map[string]interface{} {
	parts := strings.Split(token, ".")
	if len(parts) < 2 || parts[1] == "" {
		return nil
	}
	segment := strings.NewReplacer("+", "-", "/", "_").Replace(strings.TrimRight(parts[1], "="))
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}

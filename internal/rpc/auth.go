package rpc

import (
	"maps"
	"strings"
)

const (
	AuthTypeBearer = "bearer"
	AuthTypeAPIKey = "api_key"
	AuthTypeBasic  = "basic"
	AuthTypeCustom = "custom"
)

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type     string            `json:"type"`
	Token    string            `json:"token"`
	Username string            `json:"username"`
	Password string            `json:"password"`
	Headers  map[string]string `json:"headers"`
}

// NodeAuth builds the auth for a node from its configured headers and API key.
// Providers that embed the key in the URL (Infura) need neither; in that case
// nil is returned.
func NodeAuth(headers map[string]string, apiKey string, keyInURL bool) *AuthConfig {
	if len(headers) > 0 {
		auth := &AuthConfig{Type: AuthTypeCustom, Headers: make(map[string]string, len(headers))}
		maps.Copy(auth.Headers, headers)
		return auth
	}
	if apiKey == "" || keyInURL {
		return nil
	}
	token := strings.TrimPrefix(strings.TrimPrefix(apiKey, "bearer "), "Bearer ")
	return &AuthConfig{Type: AuthTypeBearer, Token: token}
}

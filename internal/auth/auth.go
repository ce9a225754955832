// Package auth supplies the authenticated principal for live connections.
// Token issuance happens elsewhere; this package only performs a read-only
// lookup from a presented token to the principal it belongs to.
package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Principal is the authenticated identity behind a connection: a stable
// user id plus the role names it holds.
type Principal struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// Authenticator resolves an HTTP request to a principal.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// TokenDirectory is an injected read-only token→principal lookup. Tokens
// are presented as a bearer header or, for browser WebSocket clients that
// cannot set headers, an access_token query parameter.
type TokenDirectory struct {
	mu     sync.RWMutex
	tokens map[string]Principal
}

// Ensure TokenDirectory implements Authenticator.
var _ Authenticator = (*TokenDirectory)(nil)

// NewTokenDirectory creates a directory over the given token map.
func NewTokenDirectory(tokens map[string]Principal) *TokenDirectory {
	if tokens == nil {
		tokens = make(map[string]Principal)
	}
	return &TokenDirectory{tokens: tokens}
}

// LoadTokenDirectory reads a JSON file mapping tokens to principals.
func LoadTokenDirectory(path string) (*TokenDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	var tokens map[string]Principal
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}
	return NewTokenDirectory(tokens), nil
}

// Authenticate extracts the token from the request and looks it up.
func (d *TokenDirectory) Authenticate(r *http.Request) (Principal, error) {
	token := extractToken(r)
	if token == "" {
		return Principal{}, fmt.Errorf("no credentials presented")
	}

	d.mu.RLock()
	p, ok := d.tokens[token]
	d.mu.RUnlock()
	if !ok {
		return Principal{}, fmt.Errorf("unknown token")
	}
	return p, nil
}

// extractToken reads the bearer token from the Authorization header or the
// access_token query parameter.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	return r.URL.Query().Get("access_token")
}

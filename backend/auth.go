package backend

import (
	"context"
	"strings"

	"comicbot/types"
)

// LoginClient is the part of Client the token provider needs
type LoginClient interface {
	Login(ctx context.Context, creds types.Credentials) (*Response, error)
}

// TokenProvider exchanges admin credentials for a token.
// Tokens are never cached; every Acquire performs one login.
type TokenProvider struct {
	client LoginClient
	creds  types.Credentials
}

// NewTokenProvider creates a provider for the given credentials
func NewTokenProvider(client LoginClient, creds types.Credentials) *TokenProvider {
	return &TokenProvider{client: client, creds: creds}
}

// Acquire logs in once. A non-2xx reply yields *AuthError carrying the
// status and body; network failures yield *TransportError.
func (p *TokenProvider) Acquire(ctx context.Context) (string, error) {
	resp, err := p.client.Login(ctx, p.creds)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &AuthError{StatusCode: resp.StatusCode, Body: resp.Text()}
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Package auth turns a pre-issued GitHub access token into an authenticated HTTP client.
package auth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2"
)

// TokenEnv is consulted when no token is stored in the settings.
const TokenEnv = "GITHUB_TOKEN"

var ErrNoToken = errors.New("no GitHub access token configured")

// ResolveToken returns configured, or the token from $GITHUB_TOKEN when configured is blank.
func ResolveToken(configured string) (string, error) {
	if tok := strings.TrimSpace(configured); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

// NewHTTPClient returns a client that sends token as a bearer credential on every request.
// If base is not nil its transport carries the requests.
func NewHTTPClient(base *http.Client, token string) *http.Client {
	ctx := context.Background()
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	})
	return oauth2.NewClient(ctx, src)
}

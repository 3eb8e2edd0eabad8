package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewHTTPClientSendsBearerToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(srv.Client(), "ghp_secret").Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got != "Bearer ghp_secret" {
		t.Errorf("Expected bearer token header, got %q", got)
	}
}

func TestResolveToken(t *testing.T) {
	t.Setenv(TokenEnv, "from-env")
	if tok, err := ResolveToken(" stored "); err != nil || tok != "stored" {
		t.Errorf("Expected stored token, got %q (%v)", tok, err)
	}
	if tok, err := ResolveToken(""); err != nil || tok != "from-env" {
		t.Errorf("Expected env token, got %q (%v)", tok, err)
	}
	t.Setenv(TokenEnv, "")
	if _, err := ResolveToken(""); !errors.Is(err, ErrNoToken) {
		t.Errorf("Expected ErrNoToken, got %v", err)
	}
}

package middleware

import (
	"net/http"
	"strings"
)

// TokenSource yields the current access token.
type TokenSource interface {
	AccessToken() (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() (string, bool)

func (f TokenSourceFunc) AccessToken() (string, bool) { return f() }

// BearerTransport attaches "Authorization: Bearer <token>" to requests whose
// URL starts with APIURL.
type BearerTransport struct {
	// Base defaults to http.DefaultTransport.
	Base   http.RoundTripper
	Tokens TokenSource
	APIURL string
}

// NewBearerTransport wraps base.
func NewBearerTransport(base http.RoundTripper, tokens TokenSource, apiURL string) *BearerTransport {
	return &BearerTransport{Base: base, Tokens: tokens, APIURL: apiURL}
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.Tokens == nil || t.APIURL == "" || req.URL == nil {
		return base.RoundTrip(req)
	}
	token, ok := t.Tokens.AccessToken()
	if !ok || token == "" {
		return base.RoundTrip(req)
	}
	if !strings.HasPrefix(req.URL.String(), t.APIURL) {
		return base.RoundTrip(req)
	}

	next := req.Clone(req.Context())
	next.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(next)
}

// WrapClient returns a shallow copy of hc whose transport is wrapped with a
// BearerTransport. A nil hc wraps a zero http.Client.
func WrapClient(hc *http.Client, tokens TokenSource, apiURL string) *http.Client {
	var out http.Client
	if hc != nil {
		out = *hc
	}
	out.Transport = NewBearerTransport(out.Transport, tokens, apiURL)
	return &out
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

package fetch

import (
	"fmt"
	"net/http"
	"time"
)

const maxRedirects = 10

// NewHTTPClient returns an anonymous client: no cookie jar, no credentials,
// and a hard timeout covering the whole exchange.
//
// https://pkg.go.dev/net/http#Client
func NewHTTPClient(timeout time.Duration, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects: %s", maxRedirects, req.URL)
			}
			req.Header.Del("Authorization")
			req.Header.Del("Cookie")
			return nil
		},
	}
}

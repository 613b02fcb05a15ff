// Package http provides shared HTTP client construction with sane
// connection pooling and timeout defaults.
package http

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout is applied when no explicit timeout is requested.
// Every outbound provider call must be bounded; callers that talk to
// OAuth2 token endpoints should prefer NewClientWithTimeout.
const DefaultTimeout = 30 * time.Second

// NewClient creates an HTTP client with the default timeout
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout creates an HTTP client with an explicit overall timeout.
// The timeout covers connection setup, the request and reading the response body.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Package upstream talks to the third-party resolver and to media hosts.
package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// BrowserHeaders is the request header set sent on every upstream call.
// The resolver rejects requests that do not look like they come from a browser.
type BrowserHeaders struct {
	UserAgent      string
	AcceptLanguage string
}

func (h BrowserHeaders) apply(req *http.Request) {
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}
	if h.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", h.AcceptLanguage)
	}
	req.Header.Set("Accept", "*/*")
}

func newTransport(dialTimeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = dialTimeout
	return transport
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

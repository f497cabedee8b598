// Package transport builds the HTTP clients the vendor wrappers share.
package transport

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodySize    = 32 << 20 // 32MB
)

// Options configures a vendor HTTP client.
type Options struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// NewHTTPClient returns a client with its own cookie jar, so session cookies
// handed out by CUCM and CMS (JSESSIONID and friends) are replayed on later
// calls and the server does not re-authenticate every request.
func NewHTTPClient(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		// Lab CUCM/CMS nodes mostly run self-signed certificates.
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options struct.
		panic(fmt.Sprintf("creating cookie jar: %v", err))
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: tr,
		Jar:       jar,
	}
}

// ReadBody reads a response body up to a fixed cap.
func ReadBody(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return data, nil
}

// OK reports whether status is a 2xx code.
func OK(status int) bool {
	return status >= 200 && status < 300
}

package netutil

import (
	"net"
	"net/http"
	"time"
)

// ClientOptions tunes NewClient. Zero fields take the defaults below.
type ClientOptions struct {
	// Timeout bounds a whole request including retries.
	Timeout time.Duration
	// HeaderTimeout bounds the wait for response headers of one attempt.
	HeaderTimeout time.Duration
	// Retries is the number of extra attempts after a retryable failure.
	Retries int
	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration
}

const (
	defaultTimeout       = 30 * time.Second
	defaultHeaderTimeout = 5 * time.Second
	defaultBackoff       = 2 * time.Second
)

// TelegramClient returns options for long-lived Bot API traffic.
func TelegramClient() ClientOptions {
	return ClientOptions{Timeout: defaultTimeout, HeaderTimeout: defaultHeaderTimeout, Retries: 3, Backoff: defaultBackoff}
}

// NewClient builds an HTTP client with a pooled transport. Requests whose
// body cannot be replayed are never retried.
func NewClient(opts ClientOptions) *http.Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HeaderTimeout <= 0 || opts.HeaderTimeout > opts.Timeout {
		opts.HeaderTimeout = min(defaultHeaderTimeout, opts.Timeout)
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: opts.HeaderTimeout,
		ExpectContinueTimeout: time.Second,
	}
	if opts.Retries > 0 {
		rt = &retrying{next: rt, retries: opts.Retries, backoff: opts.Backoff}
	}
	return &http.Client{Timeout: opts.Timeout, Transport: rt}
}

type retrying struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (r *retrying) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := r.next.RoundTrip(req)
	for attempt := 1; attempt <= r.retries && ShouldRetry(err); attempt++ {
		again, ok := replay(req)
		if !ok {
			break
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(r.backoff * time.Duration(attempt)):
		}
		resp, err = r.next.RoundTrip(again)
	}
	return resp, err
}

func replay(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req.Clone(req.Context()), true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	again := req.Clone(req.Context())
	again.Body = body
	return again, true
}

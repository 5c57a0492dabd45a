package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync/atomic"
	"time"
)

// maxBodyBytes caps how much of a backend reply is buffered.
const maxBodyBytes = 4 << 20

// ErrBodyTooLarge is wrapped by the TransportError for a reply over maxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

// Response is a completed HTTP exchange. Error statuses are data here, not
// errors, so callers can branch on 401 versus 202.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Text returns the raw body.
func (r *Response) Text() string { return string(r.Body) }

// Decode unmarshals the body into v. A malformed or empty body reports false
// and leaves v untouched, which callers treat as an empty result.
func (r *Response) Decode(v any) bool {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return false
	}
	return json.Unmarshal(r.Body, v) == nil
}

type request struct {
	op      string
	method  string
	path    string
	query   url.Values
	payload any
	token   string
	timeout time.Duration
}

// do performs one request under its own timeout. The only error it returns
// is *TransportError.
func (c *Client) do(ctx context.Context, r request) (*Response, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.payload != nil {
		jsonData, err := json.Marshal(r.payload)
		if err != nil {
			return nil, &TransportError{Op: r.op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		body = bytes.NewReader(jsonData)
	}

	var connected atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if r.payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", c.authScheme+" "+r.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.op, 0, time.Since(start))
		return nil, &TransportError{Op: r.op, Err: err, Connected: connected.Load()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	c.observe(r.op, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: fmt.Errorf("failed to read response: %w", err), Connected: true}
	}
	if len(data) > maxBodyBytes {
		return nil, &TransportError{Op: r.op, Err: fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, maxBodyBytes), Connected: true}
	}

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, status, d)
	}
}

package annotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"comicbot/config"
)

// maxConnsPerHost caps open connections to the OpenRouter host. Requests
// beyond it queue for a free connection, bounded by the pool timeout.
const maxConnsPerHost = 100

// ErrPoolTimeout is returned when no connection could be acquired in time.
var ErrPoolTimeout = errors.New("timed out waiting for a pooled connection")

// newHTTPClient builds a client with per-phase timeouts. Connect covers the
// dial and TLS handshake; read and write bound each individual socket
// operation; pool bounds the wait for a free connection before dialing.
func newHTTPClient(cfg config.OpenRouterConfig) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, read: cfg.ReadTimeout, write: cfg.WriteTimeout}, nil
	}
	tr.TLSHandshakeTimeout = cfg.ConnectTimeout
	tr.ResponseHeaderTimeout = cfg.ReadTimeout
	tr.MaxConnsPerHost = maxConnsPerHost

	return &http.Client{Transport: &poolTimeoutTransport{base: tr, timeout: cfg.PoolTimeout}}
}

// poolTimeoutTransport fails a request whose connection is neither reused
// nor being dialed within timeout of asking for one.
type poolTimeoutTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *poolTimeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.timeout <= 0 {
		return t.base.RoundTrip(req)
	}

	ctx, cancel := context.WithCancelCause(req.Context())
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	// The transport may ask again when it retries on a stale connection.
	waiting := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(t.timeout, func() { cancel(ErrPoolTimeout) })
	}
	acquired := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	trace := &httptrace.ClientTrace{
		GetConn:      func(string) { waiting() },
		ConnectStart: func(string, string) { acquired() },
		GotConn:      func(httptrace.GotConnInfo) { acquired() },
	}

	resp, err := t.base.RoundTrip(req.WithContext(httptrace.WithClientTrace(ctx, trace)))
	acquired()
	if err != nil {
		cause := context.Cause(ctx)
		cancel(nil)
		if errors.Is(cause, ErrPoolTimeout) {
			return nil, fmt.Errorf("%w after %s", ErrPoolTimeout, t.timeout)
		}
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }}
	return resp, nil
}

// cancelOnClose releases the request context once the body is closed
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// deadlineConn refreshes the socket deadline before every read and write
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}

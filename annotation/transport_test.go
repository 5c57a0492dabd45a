package annotation

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolTimeoutWhileHostIsSaturated(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &poolTimeoutTransport{
		base:    &http.Transport{MaxConnsPerHost: 1},
		timeout: 50 * time.Millisecond,
	}}

	first := make(chan error, 1)
	go func() {
		resp, err := client.Get(srv.URL)
		if err == nil {
			_, _ = io.ReadAll(resp.Body)
			_ = resp.Body.Close()
		}
		first <- err
	}()
	<-entered

	start := time.Now()
	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPoolTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	assert.NoError(t, <-first)
}

func TestPoolTimeoutDoesNotLimitSlowResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &poolTimeoutTransport{
		base:    &http.Transport{MaxConnsPerHost: 1},
		timeout: 50 * time.Millisecond,
	}}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, "late", string(body))
	}
}

func TestPoolTimeoutReleasesContextOnClose(t *testing.T) {
	var canceled bool
	body := &cancelOnClose{ReadCloser: io.NopCloser(nil), cancel: func() { canceled = true }}

	require.NoError(t, body.Close())
	assert.True(t, canceled)
}

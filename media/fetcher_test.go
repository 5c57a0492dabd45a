package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"comicbot/backend"
	"comicbot/config"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type fakeSearcher struct {
	resp *backend.Response
	err  error
	got  string
}

func (s *fakeSearcher) Search(_ context.Context, phrase string, limit int) (*backend.Response, error) {
	s.got = phrase
	if limit != 1 {
		return nil, errors.New("limit must be 1")
	}
	return s.resp, s.err
}

func reply(code int, body string) *backend.Response {
	return &backend.Response{StatusCode: code, Body: []byte(body)}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		resp    *backend.Response
		err     error
		wantURL string
		wantID  string
		wantErr string
	}{
		{
			name:    "first comic wins",
			resp:    reply(200, `{"comics":[{"id":7,"url":"http://x/img.png"},{"id":8,"url":"http://x/b.png"}],"total":2}`),
			wantURL: "http://x/img.png",
			wantID:  "7",
		},
		{
			name:    "id is optional",
			resp:    reply(200, `{"comics":[{"url":"http://x/img.png"}]}`),
			wantURL: "http://x/img.png",
		},
		{name: "no comics", resp: reply(200, `{"comics":[],"total":0}`), wantErr: "no results"},
		{name: "malformed body degrades to empty", resp: reply(200, `<html>`), wantErr: "no results"},
		{name: "missing url", resp: reply(200, `{"comics":[{"id":3}]}`), wantErr: "search result has no url"},
		{name: "backend status", resp: reply(400, "bad request"), wantErr: "search failed: 400 bad request"},
		{
			name:    "transport",
			err:     &backend.TransportError{Op: "isearch", Err: errors.New("connection refused")},
			wantErr: "search failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(&fakeSearcher{resp: tt.resp, err: tt.err}, config.MediaConfig{}, testLog)
			res, err := f.Search(context.Background(), "cat")
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, res.URL)
			assert.Equal(t, tt.wantID, res.IDString())
		})
	}
}

func TestSearchSentinels(t *testing.T) {
	f := NewFetcher(&fakeSearcher{resp: reply(200, `{"comics":[]}`)}, config.MediaConfig{}, testLog)
	_, err := f.Search(context.Background(), "cat")
	assert.ErrorIs(t, err, ErrNoResults)

	f = NewFetcher(&fakeSearcher{resp: reply(200, `{"comics":[{"id":1,"url":""}]}`)}, config.MediaConfig{}, testLog)
	_, err = f.Search(context.Background(), "cat")
	assert.ErrorIs(t, err, ErrMissingURL)
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		header string
		want   string
		image  bool
	}{
		{"image/png", "image/png", true},
		{"IMAGE/JPEG; charset=binary", "image/jpeg", true},
		{"  image/gif  ", "image/gif", true},
		{"text/html; charset=utf-8", "text/html", false},
		{"application/octet-stream", "application/octet-stream", false},
		{"application/x-image/png", "application/x-image/png", false},
		{"", "", false},
		{";;;", "", false},
		{"; image/png", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got := NormalizeContentType(tt.header)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.image, IsImage(got))
		})
	}
}

func imageServer(t *testing.T, contentType []string, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = contentType
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload(t *testing.T) {
	srv := imageServer(t, []string{"image/PNG; q=1"}, http.StatusOK, "\x89PNG")
	f := NewFetcher(nil, config.MediaConfig{DownloadTimeout: time.Second}, testLog)

	asset, err := f.Download(context.Background(), srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", asset.ContentType)
	assert.Equal(t, []byte("\x89PNG"), asset.Data)
	assert.Equal(t, srv.URL+"/img.png", asset.SourceURL)
}

func TestDownloadRejectsNonImages(t *testing.T) {
	tests := []struct {
		name        string
		contentType []string
	}{
		{"html", []string{"text/html"}},
		{"missing header", nil},
		{"empty header", []string{""}},
		{"malformed", []string{";charset=utf-8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := imageServer(t, tt.contentType, http.StatusOK, "<html></html>")
			f := NewFetcher(nil, config.MediaConfig{DownloadTimeout: time.Second}, testLog)

			_, err := f.Download(context.Background(), srv.URL)
			var nie *NotAnImageError
			require.True(t, errors.As(err, &nie), "got %v", err)
			assert.True(t, strings.HasPrefix(err.Error(), "downloaded content is not an image: "))
		})
	}
}

func TestDownloadErrors(t *testing.T) {
	notFound := imageServer(t, []string{"text/plain"}, http.StatusNotFound, "nope")
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	big := imageServer(t, []string{"image/png"}, http.StatusOK, strings.Repeat("x", 64))

	tests := []struct {
		name string
		url  string
	}{
		{"status", notFound.URL},
		{"connection refused", closedURL},
		{"too large", big.URL},
		{"bad url", "://nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFetcher(nil, config.MediaConfig{DownloadTimeout: time.Second, MaxImageBytes: 16}, testLog)
			_, err := f.Download(context.Background(), tt.url)
			var de *DownloadError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.True(t, strings.HasPrefix(err.Error(), "failed to download image: "))
		})
	}
}

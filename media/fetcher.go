package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"comicbot/backend"
	"comicbot/config"
	"comicbot/types"

	"github.com/apex/log"
)

var (
	// ErrNoResults means the backend found no comic for the phrase
	ErrNoResults = errors.New("no results")
	// ErrMissingURL means the top result has no image url
	ErrMissingURL = errors.New("search result has no url")
)

// DownloadError is a transport failure or non-2xx reply from the image host
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string { return "failed to download image: " + e.Err.Error() }

func (e *DownloadError) Unwrap() error { return e.Err }

// NotAnImageError rejects a download whose content type is not image/*
type NotAnImageError struct {
	ContentType string
}

func (e *NotAnImageError) Error() string {
	return "downloaded content is not an image: " + e.ContentType
}

// Searcher is the part of backend.Client used for lookups
type Searcher interface {
	Search(ctx context.Context, phrase string, limit int) (*backend.Response, error)
}

// Fetcher resolves a phrase to a comic and downloads its image
type Fetcher struct {
	searcher   Searcher
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	log        log.Interface
}

// Option customises a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the client used for image downloads
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = hc }
}

// NewFetcher creates a fetcher. A nil logger falls back to the apex default.
func NewFetcher(s Searcher, cfg config.MediaConfig, logger log.Interface, opts ...Option) *Fetcher {
	if logger == nil {
		logger = log.Log
	}
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxImageBytes
	}
	f := &Fetcher{
		searcher:   s,
		httpClient: &http.Client{},
		timeout:    cfg.DownloadTimeout,
		maxBytes:   maxBytes,
		log:        logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Search returns the first comic matching phrase
func (f *Fetcher) Search(ctx context.Context, phrase string) (types.SearchResult, error) {
	resp, err := f.searcher.Search(ctx, phrase, 1)
	if err != nil {
		return types.SearchResult{}, fmt.Errorf("search failed: %w", err)
	}
	if !resp.OK() {
		return types.SearchResult{}, fmt.Errorf("search failed: %w", &backend.StatusError{StatusCode: resp.StatusCode, Body: resp.Text()})
	}

	var reply types.SearchReply
	resp.Decode(&reply)
	if len(reply.Comics) == 0 {
		return types.SearchResult{}, ErrNoResults
	}

	top := reply.Comics[0]
	if strings.TrimSpace(top.URL) == "" {
		return types.SearchResult{}, ErrMissingURL
	}
	return top, nil
}

// Download fetches url and checks that it is an image
func (f *Fetcher) Download(ctx context.Context, url string) (*types.MediaAsset, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("unexpected status %s for url: %s", resp.Status, url)}
	}

	contentType := NormalizeContentType(resp.Header.Get("Content-Type"))
	if !IsImage(contentType) {
		return nil, &NotAnImageError{ContentType: contentType}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("image exceeds %d bytes", f.maxBytes)}
	}

	f.log.WithFields(log.Fields{
		"url":          url,
		"content_type": contentType,
		"bytes":        len(data),
	}).Debug("image downloaded")

	return &types.MediaAsset{Data: data, ContentType: contentType, SourceURL: url}, nil
}

// NormalizeContentType lowercases a Content-Type header and drops parameters
func NormalizeContentType(header string) string {
	ct, _, _ := strings.Cut(strings.ToLower(header), ";")
	return strings.TrimSpace(ct)
}

// IsImage reports whether a normalized content type is image/*
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

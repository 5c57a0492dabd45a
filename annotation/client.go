package annotation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"comicbot/config"

	"github.com/apex/log"
)

// Fixed texts returned in place of an explanation
const (
	Prompt           = "объясни смысл этого комикса"
	TextNoCredential = "Пояснение недоступно: не задан `OPENROUTER_API_KEY`."
	TextUnexpected   = "OpenRouter вернул неожиданный ответ. Попробуйте позже."
	TextEmpty        = "OpenRouter вернул пустое пояснение."
	TextTimeout      = "OpenRouter timeout. Попробуйте позже."
)

// maxResponseBytes caps a buffered completion
const maxResponseBytes = 8 << 20

// Recorder counts annotation outcomes
type Recorder interface {
	ObserveAnnotation(outcome string, d time.Duration)
}

// Client asks a vision chat model to explain a comic.
type Client struct {
	cfg        config.OpenRouterConfig
	httpClient *http.Client
	cache      Cache
	recorder   Recorder
	log        log.Interface
}

// Option customises a Client
type Option func(*Client)

// WithCache serves repeated images from c
func WithCache(c Cache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRecorder attaches annotation metrics
func WithRecorder(r Recorder) Option {
	return func(cl *Client) { cl.recorder = r }
}

// WithHTTPClient replaces the per-phase timeout client, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(cl *Client) { cl.httpClient = hc }
}

// NewClient creates an OpenRouter client. A nil logger falls back to the apex default.
func NewClient(cfg config.OpenRouterConfig, logger log.Interface, opts ...Option) *Client {
	if logger == nil {
		logger = log.Log
	}
	c := &Client{
		cfg:        cfg,
		httpClient: newHTTPClient(cfg),
		log:        logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// result is the outcome of one exchange; explained is false for diagnostics
type result struct {
	text      string
	explained bool
	outcome   string
}

// Annotate returns an explanation of the image, or a fixed diagnostic text.
// It never fails: the caller always gets something to put in a caption.
func (c *Client) Annotate(ctx context.Context, image []byte, mime string) string {
	start := time.Now()

	if c.cfg.APIKey == "" {
		c.record("unconfigured", start)
		return TextNoCredential
	}

	key := CacheKey(c.cfg.Model, image)
	if text, ok := c.cached(ctx, key); ok {
		c.record("cached", start)
		return text
	}

	res := c.withDeadline(ctx, image, mime)
	c.record(res.outcome, start)

	if res.explained && c.cache != nil {
		if err := c.cache.Set(ctx, key, res.text); err != nil {
			c.log.WithError(err).Warn("failed to cache explanation")
		}
	}
	return res.text
}

// withDeadline runs the exchange under the outer request timeout. When the
// deadline passes first the caller stops waiting and gets TextTimeout.
func (c *Client) withDeadline(ctx context.Context, image []byte, mime string) result {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if ctx.Err() != nil {
		return result{text: TextTimeout, outcome: "timeout"}
	}

	done := make(chan result, 1)
	go func() { done <- c.exchange(ctx, image, mime) }()

	select {
	case res := <-done:
		if !res.explained && ctx.Err() != nil {
			return result{text: TextTimeout, outcome: "timeout"}
		}
		return res
	case <-ctx.Done():
		c.log.WithField("timeout", c.cfg.RequestTimeout).Warn("openrouter request abandoned")
		return result{text: TextTimeout, outcome: "timeout"}
	}
}

func (c *Client) exchange(ctx context.Context, image []byte, mime string) result {
	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: DataURI(image, mime)}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return result{text: fmt.Sprintf("OpenRouter error: %v", err), outcome: "error"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return result{text: fmt.Sprintf("OpenRouter error: %v", err), outcome: "error"}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result{text: fmt.Sprintf("OpenRouter network error: %v", err), outcome: "network_error"}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return result{text: fmt.Sprintf("OpenRouter network error: %v", err), outcome: "network_error"}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.log.WithFields(log.Fields{"status": resp.StatusCode}).Warn("openrouter returned an error")
		return result{
			text:    fmt.Sprintf("OpenRouter error %d: %s", resp.StatusCode, errorMessage(data)),
			outcome: "http_error",
		}
	}

	text, err := ExtractText(data)
	if err != nil {
		return result{text: TextUnexpected, outcome: "unexpected"}
	}
	if text == "" {
		return result{text: TextEmpty, outcome: "empty"}
	}
	return result{text: text, explained: true, outcome: "ok"}
}

func (c *Client) cached(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	text, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).Warn("explanation cache lookup failed")
		return "", false
	}
	return text, ok
}

func (c *Client) record(outcome string, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveAnnotation(outcome, time.Since(start))
	}
}

// DataURI inlines image bytes as a base64 data URI
func DataURI(image []byte, mime string) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

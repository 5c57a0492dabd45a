package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"comicbot/backend"
	"comicbot/config"
	"comicbot/orchestrator"
	"comicbot/pipeline"

	"github.com/apex/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RateLimitedText is the reply when /search is called too often
const RateLimitedText = "too many requests; try again later"

// HelpText lists the supported commands
const HelpText = `available commands:
/ping - check the search backend
/update_db - refresh the comics database
/search <phrase> - find a comic and explain it
/help - show this message`

// Command outcomes reported to the Recorder
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeUnknown     = "unknown"
)

// Pinger checks backend liveness
type Pinger interface {
	Ping(ctx context.Context) (*backend.Response, error)
}

// Updater runs one database update
type Updater interface {
	Run(ctx context.Context, notify orchestrator.Notifier) orchestrator.Result
}

// Searcher runs the search-and-explain pipeline
type Searcher interface {
	Run(ctx context.Context, phrase string, n pipeline.Notifier) pipeline.Result
}

// Recorder observes handled commands
type Recorder interface {
	ObserveCommand(command, outcome string, d time.Duration)
}

// Request is one inbound chat message
type Request struct {
	ID     string
	ChatID string
	Text   string
}

// NewRequestID returns a fresh id for an inbound command
func NewRequestID() string {
	return uuid.New().String()
}

// Router dispatches commands to the backend, the update orchestrator and
// the search pipeline. Every Handle call is independent, so transports may
// call it from many goroutines.
type Router struct {
	pinger   Pinger
	updater  Updater
	searcher Searcher
	limiter  *rate.Limiter
	recorder Recorder
	log      log.Interface
}

// Option customises a Router
type Option func(*Router)

// WithRecorder attaches command metrics
func WithRecorder(r Recorder) Option {
	return func(rt *Router) { rt.recorder = r }
}

// NewRouter creates a router. A non-positive SearchRate disables the
// /search limit.
func NewRouter(p Pinger, u Updater, s Searcher, cfg config.ServerConfig, logger log.Interface, opts ...Option) *Router {
	if logger == nil {
		logger = log.Log
	}

	limit := rate.Limit(cfg.SearchRate)
	burst := cfg.SearchBurst
	if cfg.SearchRate <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	r := &Router{
		pinger:   p,
		updater:  u,
		searcher: s,
		limiter:  rate.NewLimiter(limit, burst),
		log:      logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle runs the command in req and replies into conv. Text that is not a
// command is ignored. The returned error is a failure to deliver the final
// reply; command failures are replies themselves.
func (r *Router) Handle(ctx context.Context, req Request, conv Conversation) error {
	cmd, ok := ParseCommand(req.Text)
	if !ok {
		return nil
	}
	if req.ID == "" {
		req.ID = NewRequestID()
	}

	logger := r.log.WithFields(log.Fields{
		"request_id": req.ID,
		"chat_id":    req.ChatID,
		"command":    cmd.Name,
	})
	logger.Info("command received")

	start := time.Now()
	outcome, err := r.dispatch(ctx, cmd, conv, logger)
	d := time.Since(start)

	if r.recorder != nil {
		r.recorder.ObserveCommand(metricName(cmd.Name), outcome, d)
	}

	entry := logger.WithFields(log.Fields{"outcome": outcome, "duration": d.String()})
	if err != nil {
		entry.WithError(err).Error("failed to deliver reply")
		return err
	}
	entry.Info("command handled")
	return nil
}

func (r *Router) dispatch(ctx context.Context, cmd Command, conv Conversation, logger log.Interface) (string, error) {
	switch cmd.Name {
	case "ping":
		return r.ping(ctx, conv)
	case "update_db":
		return r.updateDB(ctx, conv, logger)
	case "search":
		return r.search(ctx, cmd.Args, conv)
	case "help", "start":
		_, err := conv.Send(ctx, HelpText)
		return OutcomeOK, err
	default:
		_, err := conv.Send(ctx, "unknown command: /"+cmd.Name)
		return OutcomeUnknown, err
	}
}

func (r *Router) ping(ctx context.Context, conv Conversation) (string, error) {
	resp, err := r.pinger.Ping(ctx)
	if err != nil {
		_, sendErr := conv.Send(ctx, fmt.Sprintf("ping failed: %v", err))
		return OutcomeError, sendErr
	}
	if !resp.OK() {
		_, sendErr := conv.Send(ctx, fmt.Sprintf("ping failed: %d %s", resp.StatusCode, resp.Text()))
		return OutcomeError, sendErr
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		text = "ok"
	}
	_, err = conv.Send(ctx, text)
	return OutcomeOK, err
}

func (r *Router) updateDB(ctx context.Context, conv Conversation, logger log.Interface) (string, error) {
	res := r.updater.Run(ctx, func(text string) {
		if _, err := conv.Send(ctx, text); err != nil {
			logger.WithError(err).Warn("failed to deliver progress message")
		}
	})

	outcome := OutcomeOK
	if res.State != orchestrator.StateIdle {
		outcome = OutcomeError
	}
	_, err := conv.Send(ctx, res.Message)
	return outcome, err
}

func (r *Router) search(ctx context.Context, phrase string, conv Conversation) (string, error) {
	if phrase != "" && !r.limiter.Allow() {
		_, err := conv.Send(ctx, RateLimitedText)
		return OutcomeRateLimited, err
	}

	res := r.searcher.Run(ctx, phrase, conv)
	if res.Photo == nil {
		_, err := conv.Send(ctx, res.Text)
		return OutcomeError, err
	}

	_, err := conv.SendPhoto(ctx, Photo{
		Data:        res.Photo.Data,
		ContentType: res.Photo.ContentType,
		Caption:     res.Caption,
	})
	return OutcomeOK, err
}

// metricName keeps label cardinality bounded for unknown commands
func metricName(name string) string {
	switch name {
	case "ping", "update_db", "search", "help", "start":
		return name
	default:
		return "other"
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"comicbot/backend"
	"comicbot/config"
	"comicbot/types"

	"github.com/apex/log"
)

// State represents the update job state machine
type State string

const (
	StateAuthenticating State = "authenticating"
	StateTriggering     State = "triggering"
	StatePolling        State = "polling"
	StateIdle           State = "idle"
	StateTimedOut       State = "timed_out"
	StateFailed         State = "failed"
)

// TokenSource yields a fresh admin token per run
type TokenSource interface {
	Acquire(ctx context.Context) (string, error)
}

// Backend is the subset of backend.Client used by the orchestrator
type Backend interface {
	TriggerUpdate(ctx context.Context, token string, timeout time.Duration) (*backend.Response, error)
	UpdateStatus(ctx context.Context, token string) (*backend.Response, error)
	UpdateStats(ctx context.Context, token string) (*backend.Response, error)
}

// Recorder counts status checks by outcome ("idle", "busy", "error")
type Recorder interface {
	ObservePoll(outcome string)
}

// Notifier receives progress messages emitted before polling starts
type Notifier func(text string)

// Result is the terminal outcome of one Run
type Result struct {
	State      State
	Trigger    types.TriggerOutcome
	LastStatus string
	Polls      int
	Stats      string
	// Message is the final user-facing text
	Message string
}

// Orchestrator drives authenticate → trigger → poll → stats.
// It holds no per-run state, so concurrent Runs are independent.
type Orchestrator struct {
	auth     TokenSource
	backend  Backend
	cfg      config.UpdateConfig
	log      log.Interface
	recorder Recorder

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises an Orchestrator
type Option func(*Orchestrator)

// WithRecorder attaches poll metrics
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New creates an orchestrator. A nil logger falls back to the apex default.
func New(auth TokenSource, b Backend, cfg config.UpdateConfig, logger log.Interface, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = log.Log
	}
	o := &Orchestrator{
		auth:    auth,
		backend: b,
		cfg:     cfg,
		log:     logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one update. It never returns an error: every failure ends
// in a Result whose Message describes it.
func (o *Orchestrator) Run(ctx context.Context, notify Notifier) Result {
	if notify == nil {
		notify = func(string) {}
	}
	res := Result{LastStatus: string(types.JobStatusUnknown)}

	// Step 1: authenticate
	o.enter(StateAuthenticating)
	token, err := o.auth.Acquire(ctx)
	if err != nil {
		return o.finish(res, StateFailed, fmt.Sprintf("auth error: %v", err))
	}

	// Step 2: trigger
	o.enter(StateTriggering)
	outcome, msg := o.trigger(ctx, token)
	res.Trigger = outcome
	switch outcome {
	case types.TriggerUnauthorized, types.TriggerFailed:
		return o.finish(res, StateFailed, msg)
	}
	notify(msg)

	// Step 3: poll until idle or the wait deadline passes
	o.enter(StatePolling)
	if !o.poll(ctx, token, &res) {
		if ctx.Err() != nil {
			return o.finish(res, StateFailed, fmt.Sprintf("update wait canceled; last status: %s", res.LastStatus))
		}
		return o.finish(res, StateTimedOut, fmt.Sprintf("update not finished within %ss; last status: %s",
			formatSeconds(o.cfg.WaitTimeout), res.LastStatus))
	}

	// Step 4: stats, a failure here is a degraded success
	resp, err := o.backend.UpdateStats(ctx, token)
	if err != nil {
		return o.finish(res, StateIdle, fmt.Sprintf("update done, but stats request failed: %v", err))
	}
	if !resp.OK() {
		return o.finish(res, StateIdle, fmt.Sprintf("update done, but stats failed: %d %s", resp.StatusCode, resp.Text()))
	}
	res.Stats = resp.Text()
	return o.finish(res, StateIdle, fmt.Sprintf("update done; stats: %s", res.Stats))
}

// trigger classifies the POST /api/db/update exchange. A read timeout is not
// fatal because the job may have started server-side.
func (o *Orchestrator) trigger(ctx context.Context, token string) (types.TriggerOutcome, string) {
	resp, err := o.backend.TriggerUpdate(ctx, token, o.cfg.PostTimeout)
	if err != nil {
		var te *backend.TransportError
		if errors.As(err, &te) && te.IsReadTimeout() {
			o.log.WithError(err).Warn("update request timed out, falling back to polling")
			return types.TriggerTimedOutAtRequest, "update request timeout; checking status..."
		}
		return types.TriggerFailed, fmt.Sprintf("update request failed: %v", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return types.TriggerUnauthorized, fmt.Sprintf("unauthorized (401): %s", resp.Text())
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return types.TriggerFailed, fmt.Sprintf("update failed: %d %s", resp.StatusCode, resp.Text())
	}

	var body types.StatusReply
	resp.Decode(&body)
	if body.Status == string(types.JobStatusAlreadyRunning) {
		return types.TriggerAlreadyRunning, "update already running; waiting for completion..."
	}
	return types.TriggerStarted, "update started; waiting for completion..."
}

// poll checks status at a constant interval. It reports true once the
// backend says idle; failed checks only update res.LastStatus. Sleeps never
// run past the deadline, so poll returns within the wait timeout plus one
// status call.
func (o *Orchestrator) poll(ctx context.Context, token string, res *Result) bool {
	deadline := o.now().Add(o.cfg.WaitTimeout)

	for o.now().Before(deadline) {
		res.Polls++
		res.LastStatus = o.checkStatus(ctx, token)
		if res.LastStatus == string(types.JobStatusIdle) {
			return true
		}
		remaining := deadline.Sub(o.now())
		if remaining <= 0 {
			break
		}
		if err := o.sleep(ctx, min(o.cfg.PollInterval, remaining)); err != nil {
			return false
		}
	}
	return false
}

func (o *Orchestrator) checkStatus(ctx context.Context, token string) string {
	resp, err := o.backend.UpdateStatus(ctx, token)
	if err != nil {
		o.record("error")
		o.log.WithError(err).Debug("status check failed")
		return fmt.Sprintf("status_request_failed: %v", err)
	}
	if !resp.OK() {
		o.record("error")
		return fmt.Sprintf("http_%d: %s", resp.StatusCode, resp.Text())
	}

	var st types.StatusReply
	if !resp.Decode(&st) || st.Status == "" {
		o.record("busy")
		return string(types.JobStatusUnknown)
	}
	if st.Status == string(types.JobStatusIdle) {
		o.record("idle")
	} else {
		o.record("busy")
	}
	return st.Status
}

func (o *Orchestrator) record(outcome string) {
	if o.recorder != nil {
		o.recorder.ObservePoll(outcome)
	}
}

func (o *Orchestrator) enter(s State) {
	o.log.WithField("state", s).Debug("update state")
}

func (o *Orchestrator) finish(res Result, s State, msg string) Result {
	res.State = s
	res.Message = msg
	o.log.WithFields(log.Fields{
		"state":       s,
		"trigger":     res.Trigger,
		"polls":       res.Polls,
		"last_status": res.LastStatus,
	}).Info("update finished")
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// formatSeconds renders 300s as "300" and 1.5s as "1.5"
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

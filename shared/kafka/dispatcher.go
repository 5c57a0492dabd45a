package kafka

import (
	"context"
	"strings"
	"sync"

	"comicbot/bot"
	"comicbot/shared/types"

	"github.com/apex/log"
)

// CommandRouter is the part of bot.Router the dispatcher drives
type CommandRouter interface {
	Handle(ctx context.Context, req bot.Request, conv bot.Conversation) error
}

// Dispatcher runs each consumed command on its own goroutine, at most
// limit at a time. Commands outlive the consumer session that delivered
// them; Wait blocks until every started command has finished.
type Dispatcher struct {
	base      context.Context
	router    CommandRouter
	publisher Publisher
	sem       chan struct{}
	wg        sync.WaitGroup
	log       log.Interface
}

// NewDispatcher creates a dispatcher. Commands run under base, so
// cancelling it aborts in-flight work.
func NewDispatcher(base context.Context, r CommandRouter, p Publisher, limit int, logger log.Interface) *Dispatcher {
	if logger == nil {
		logger = log.Log
	}
	if limit <= 0 {
		limit = 1
	}
	return &Dispatcher{
		base:      base,
		router:    r,
		publisher: p,
		sem:       make(chan struct{}, limit),
		log:       logger,
	}
}

// Handler decodes command messages and hands them to the dispatcher.
// Malformed and empty commands are marked and skipped.
func (d *Dispatcher) Handler() *TypedMessageHandler[types.CommandMessage] {
	return &TypedMessageHandler[types.CommandMessage]{
		Validate: func(msg *types.CommandMessage) bool {
			return strings.TrimSpace(msg.Text) != "" && strings.TrimSpace(msg.ChatID) != ""
		},
		Process:    d.Dispatch,
		AlwaysMark: true,
		Logger:     d.log,
	}
}

// Dispatch waits for a free slot, then starts the command. It returns once
// the command is running, or with ctx's error if no slot frees up in time.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *types.CommandMessage) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	cmd := *msg
	if cmd.RequestID == "" {
		cmd.RequestID = bot.NewRequestID()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()

		conv := NewReplyConversation(d.publisher, cmd)
		req := bot.Request{ID: cmd.RequestID, ChatID: cmd.ChatID, Text: cmd.Text}
		if err := d.router.Handle(d.base, req, conv); err != nil {
			d.log.WithError(err).WithField("request_id", cmd.RequestID).Error("command reply was not published")
		}
	}()
	return nil
}

// Wait blocks until all dispatched commands are done
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

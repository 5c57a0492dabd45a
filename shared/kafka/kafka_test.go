package kafka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"comicbot/bot"
	"comicbot/shared/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.ReplyEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev types.ReplyEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) snapshot() []types.ReplyEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.ReplyEvent(nil), p.events...)
}

func TestProducerPublishesKeyedJSON(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var ev types.ReplyEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.Action != types.ReplySend || ev.Text != "pong" {
			return errors.New("unexpected event")
		}
		return nil
	})

	p := NewProducerFrom(mp, "bot.replies")
	require.NoError(t, p.Publish(context.Background(), types.ReplyEvent{ChatID: "42", Action: types.ReplySend, Text: "pong"}))
	require.NoError(t, p.Close())
}

func TestProducerWrapsSendErrors(t *testing.T) {
	mp := mocks.NewSyncProducer(t, sarama.NewConfig())
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerFrom(mp, "bot.replies")
	err := p.Publish(context.Background(), types.ReplyEvent{ChatID: "42"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestReplyConversation(t *testing.T) {
	pub := &recordingPublisher{}
	conv := NewReplyConversation(pub, types.CommandMessage{RequestID: "req", ChatID: "42", MessageID: "m9"})
	ctx := context.Background()

	id1, err := conv.Send(ctx, "working")
	require.NoError(t, err)
	id2, err := conv.SendPhoto(ctx, bot.Photo{Data: []byte("img"), ContentType: "image/png", Caption: "cap"})
	require.NoError(t, err)
	require.NoError(t, conv.Delete(ctx, id1))

	assert.Equal(t, "req-1", id1)
	assert.Equal(t, "req-2", id2)

	events := pub.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, types.ReplyEvent{RequestID: "req", ChatID: "42", Action: types.ReplySend, MessageID: "req-1", ReplyToMessageID: "m9", Text: "working"}, events[0])
	assert.Equal(t, types.ReplySendPhoto, events[1].Action)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("img")), events[1].ImageBase64)
	assert.Equal(t, "cap", events[1].Caption)
	assert.Equal(t, types.ReplyEvent{RequestID: "req", ChatID: "42", Action: types.ReplyDelete, MessageID: "req-1"}, events[2])
}

func TestTypedMessageHandler(t *testing.T) {
	var processed []string
	h := &TypedMessageHandler[types.CommandMessage]{
		Validate: func(msg *types.CommandMessage) bool { return msg.Text != "" },
		Process: func(_ context.Context, msg *types.CommandMessage) error {
			if msg.Text == "/fail" {
				return errors.New("boom")
			}
			processed = append(processed, msg.Text)
			return nil
		},
		AlwaysMark: true,
		Logger:     testLog,
	}

	tests := []struct {
		name     string
		body     string
		wantMark bool
		wantErr  bool
	}{
		{"valid", `{"chat_id":"1","text":"/ping"}`, true, false},
		{"invalid json", `{not json`, true, false},
		{"fails validation", `{"chat_id":"1","text":""}`, true, false},
		{"process error", `{"chat_id":"1","text":"/fail"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mark, err := h.HandleMessage(context.Background(), []byte(tt.body))
			assert.Equal(t, tt.wantMark, mark)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
	assert.Equal(t, []string{"/ping"}, processed)
}

type blockingRouter struct {
	release  chan struct{}
	running  atomic.Int32
	peak     atomic.Int32
	requests chan bot.Request
}

func (r *blockingRouter) Handle(ctx context.Context, req bot.Request, conv bot.Conversation) error {
	n := r.running.Add(1)
	defer r.running.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	r.requests <- req
	<-r.release
	_, err := conv.Send(ctx, "done "+req.Text)
	return err
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	router := &blockingRouter{release: make(chan struct{}), requests: make(chan bot.Request, 10)}
	pub := &recordingPublisher{}
	d := NewDispatcher(context.Background(), router, pub, 2, testLog)

	for _, text := range []string{"/a", "/b"} {
		require.NoError(t, d.Dispatch(context.Background(), &types.CommandMessage{ChatID: "1", Text: text}))
	}

	// both slots are taken, so a third dispatch must give up when its ctx does
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Dispatch(ctx, &types.CommandMessage{ChatID: "1", Text: "/c"}), context.DeadlineExceeded)

	first := <-router.requests
	<-router.requests
	assert.NotEmpty(t, first.ID)

	close(router.release)
	d.Wait()

	assert.Equal(t, int32(2), router.peak.Load())
	assert.Len(t, pub.snapshot(), 2)
}

func TestDispatcherHandlerSkipsInvalid(t *testing.T) {
	router := &blockingRouter{release: make(chan struct{}), requests: make(chan bot.Request, 10)}
	close(router.release)
	d := NewDispatcher(context.Background(), router, &recordingPublisher{}, 1, testLog)
	h := d.Handler()

	for _, body := range []string{`{"chat_id":"1","text":"  "}`, `{"text":"/ping"}`, `oops`} {
		mark, err := h.HandleMessage(context.Background(), []byte(body))
		assert.True(t, mark)
		assert.NoError(t, err)
	}

	mark, err := h.HandleMessage(context.Background(), []byte(`{"request_id":"r1","chat_id":"1","text":"/ping"}`))
	assert.True(t, mark)
	assert.NoError(t, err)
	d.Wait()

	req := <-router.requests
	assert.Equal(t, bot.Request{ID: "r1", ChatID: "1", Text: "/ping"}, req)
	assert.Empty(t, router.requests)
}

func TestConnectWithRetry(t *testing.T) {
	var attempts int
	got, err := ConnectWithRetry("producer", time.Second, testLog, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("no brokers")
		}
		return "connected", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "connected", got)
	assert.Equal(t, 3, attempts)

	_, err = ConnectWithRetry("consumer", 40*time.Millisecond, testLog, func() (int, error) {
		return 0, errors.New("no brokers")
	})
	assert.ErrorContains(t, err, "failed to connect consumer to kafka after retries")
}

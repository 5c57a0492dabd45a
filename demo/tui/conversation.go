package tui

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"comicbot/bot"

	tea "github.com/charmbracelet/bubbletea"
)

// Conversation delivers bot replies to a tea program as messages.
// Replies produced before Attach are dropped.
type Conversation struct {
	mu   sync.RWMutex
	sink func(tea.Msg)
	seq  atomic.Int64
}

// NewConversation creates a detached conversation
func NewConversation() *Conversation {
	return &Conversation{}
}

// Attach routes replies to sink, usually (*tea.Program).Send
func (c *Conversation) Attach(sink func(tea.Msg)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *Conversation) Send(_ context.Context, text string) (bot.MessageID, error) {
	id := c.nextID()
	c.emit(ReplyMsg{Reply: bot.Reply{ID: id, Kind: bot.ReplyText, Text: text}})
	return id, nil
}

func (c *Conversation) SendPhoto(_ context.Context, photo bot.Photo) (bot.MessageID, error) {
	id := c.nextID()
	c.emit(ReplyMsg{Reply: bot.Reply{
		ID:          id,
		Kind:        bot.ReplyPhoto,
		Caption:     photo.Caption,
		ContentType: photo.ContentType,
		Data:        photo.Data,
	}})
	return id, nil
}

func (c *Conversation) Delete(_ context.Context, id bot.MessageID) error {
	c.emit(DeleteMsg{ID: id})
	return nil
}

func (c *Conversation) nextID() bot.MessageID {
	return strconv.FormatInt(c.seq.Add(1), 10)
}

func (c *Conversation) emit(msg tea.Msg) {
	c.mu.RLock()
	sink := c.sink
	c.mu.RUnlock()
	if sink != nil {
		sink(msg)
	}
}

package tui

import (
	"context"
	"time"

	"comicbot/bot"

	tea "github.com/charmbracelet/bubbletea"
)

// Handler is the part of bot.Router the console drives
type Handler interface {
	Handle(ctx context.Context, req bot.Request, conv bot.Conversation) error
}

// runCommand creates a command that handles text in the background.
// Replies arrive separately through the Conversation.
func runCommand(ctx context.Context, h Handler, conv bot.Conversation, text string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		req := bot.Request{ID: bot.NewRequestID(), ChatID: "console", Text: text}
		err := h.Handle(ctx, req, conv)
		return CommandDoneMsg{Text: text, Err: err, Duration: time.Since(start)}
	}
}

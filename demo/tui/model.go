package tui

import (
	"context"

	"comicbot/bot"

	tea "github.com/charmbracelet/bubbletea"
)

// maxLines bounds the scrollback kept in memory
const maxLines = 50

// Line is one entry of the chat log: either the user's input or a bot reply
type Line struct {
	FromUser bool
	Reply    bot.Reply
}

// Model is the console state
type Model struct {
	ctx     context.Context
	handler Handler
	conv    *Conversation

	Input   string
	Lines   []Line
	Running int
	Err     error
}

// NewModel creates a console bound to handler. Replies flow in through conv
// once it is attached to the program.
func NewModel(ctx context.Context, handler Handler, conv *Conversation) Model {
	return Model{ctx: ctx, handler: handler, conv: conv}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) addLine(l Line) Model {
	m.Lines = append(m.Lines, l)
	if len(m.Lines) > maxLines {
		m.Lines = m.Lines[len(m.Lines)-maxLines:]
	}
	return m
}

func (m Model) removeReply(id bot.MessageID) Model {
	lines := make([]Line, 0, len(m.Lines))
	for _, l := range m.Lines {
		if !l.FromUser && l.Reply.ID == id {
			continue
		}
		lines = append(lines, l)
	}
	m.Lines = lines
	return m
}

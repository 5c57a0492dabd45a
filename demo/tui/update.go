package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case ReplyMsg:
		return m.addLine(Line{Reply: msg.Reply}), nil
	case DeleteMsg:
		return m.removeReply(msg.ID), nil
	case CommandDoneMsg:
		return m.handleCommandDone(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		text := strings.TrimSpace(m.Input)
		m.Input = ""
		if text == "" {
			return m, nil
		}
		m = m.addLine(Line{FromUser: true, Reply: replyText(text)})
		m.Running++
		m.Err = nil
		return m, runCommand(m.ctx, m.handler, m.conv, text)
	case tea.KeyBackspace:
		if r := []rune(m.Input); len(r) > 0 {
			m.Input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.Input += " "
	case tea.KeyRunes:
		m.Input += string(msg.Runes)
	}
	return m, nil
}

// handleCommandDone processes command completion
func (m Model) handleCommandDone(msg CommandDoneMsg) (tea.Model, tea.Cmd) {
	if m.Running > 0 {
		m.Running--
	}
	m.Err = msg.Err
	return m, nil
}

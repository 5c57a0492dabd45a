package tui

import (
	"context"
	"testing"

	"comicbot/bot"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoHandler struct{}

func (echoHandler) Handle(ctx context.Context, req bot.Request, conv bot.Conversation) error {
	id, _ := conv.Send(ctx, "working")
	_ = conv.Delete(ctx, id)
	_, err := conv.SendPhoto(ctx, bot.Photo{Data: make([]byte, 2048), ContentType: "image/png", Caption: "echo " + req.Text})
	return err
}

func typeText(m Model, text string) Model {
	for _, r := range text {
		var next tea.Model
		if r == ' ' {
			next, _ = m.Update(tea.KeyMsg{Type: tea.KeySpace})
		} else {
			next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		}
		m = next.(Model)
	}
	return m
}

func TestEnterRunsCommandAndRendersReplies(t *testing.T) {
	var msgs []tea.Msg
	conv := NewConversation()
	conv.Attach(func(msg tea.Msg) { msgs = append(msgs, msg) })

	m := NewModel(context.Background(), echoHandler{}, conv)
	m = typeText(m, "/search cat")
	assert.Equal(t, "/search cat", m.Input)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Empty(t, m.Input)
	assert.Equal(t, 1, m.Running)

	done := cmd()
	require.IsType(t, CommandDoneMsg{}, done)
	assert.NoError(t, done.(CommandDoneMsg).Err)

	for _, msg := range append(msgs, done) {
		next, _ = m.Update(msg)
		m = next.(Model)
	}

	assert.Zero(t, m.Running)
	require.Len(t, m.Lines, 2)
	assert.True(t, m.Lines[0].FromUser)
	assert.Equal(t, bot.ReplyPhoto, m.Lines[1].Reply.Kind)

	view := m.View()
	assert.Contains(t, view, "[photo image/png, 2.0 KiB]")
	assert.Contains(t, view, "echo /search cat")
	assert.NotContains(t, view, "bot: working")
}

func TestKeyHandling(t *testing.T) {
	m := NewModel(context.Background(), echoHandler{}, NewConversation())
	m = typeText(m, "/pinf")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = typeText(next.(Model), "g")
	assert.Equal(t, "/ping", m.Input)

	m.Input = "   "
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, next.(Model).Lines)

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDetachedConversationDropsReplies(t *testing.T) {
	conv := NewConversation()
	id, err := conv.Send(context.Background(), "lost")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.NoError(t, conv.Delete(context.Background(), id))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "12 B", humanBytes(12))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
	assert.Equal(t, "3.0 MiB", humanBytes(3<<20))
}

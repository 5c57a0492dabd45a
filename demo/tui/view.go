package tui

import (
	"fmt"
	"strings"

	"comicbot/bot"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(TextTitle))
	b.WriteString("\n")

	if len(m.Lines) == 0 {
		b.WriteString(InfoStyle.Render(TextInstruction))
		b.WriteString("\n")
	}
	for _, l := range m.Lines {
		b.WriteString(renderLine(l))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.Running > 0 {
		b.WriteString(StatusStyle.Render(fmt.Sprintf(TextRunning, m.Running)))
		b.WriteString("\n")
	}
	if m.Err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("error: %v", m.Err)))
		b.WriteString("\n")
	}

	b.WriteString(PromptStyle.Render(">"))
	b.WriteString(" " + m.Input + "█\n\n")
	b.WriteString(InfoStyle.Render(TextFooter))
	return b.String()
}

func renderLine(l Line) string {
	if l.FromUser {
		return StatusStyle.Render("you: ") + l.Reply.Text
	}
	if l.Reply.Kind == bot.ReplyPhoto {
		body := InfoStyle.Render(photoPlaceholder(l.Reply.ContentType, len(l.Reply.Data))) + "\n" + l.Reply.Caption
		return BoxStyle.Render(body)
	}
	return "bot: " + l.Reply.Text
}

func replyText(text string) bot.Reply {
	return bot.Reply{Kind: bot.ReplyText, Text: text}
}

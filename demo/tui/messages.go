package tui

import (
	"time"

	"comicbot/bot"
)

// Messages for the tea program

// ReplyMsg is sent when the bot posts a message
type ReplyMsg struct {
	Reply bot.Reply
}

// DeleteMsg is sent when the bot retracts a message
type DeleteMsg struct {
	ID bot.MessageID
}

// CommandDoneMsg is sent once a command has been fully handled
type CommandDoneMsg struct {
	Text     string
	Err      error
	Duration time.Duration
}

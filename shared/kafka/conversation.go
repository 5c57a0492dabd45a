package kafka

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync/atomic"

	"comicbot/bot"
	"comicbot/shared/types"
)

// ReplyConversation turns bot replies into reply events for one inbound
// command. Message ids are "<request id>-<n>" and are local to the request.
type ReplyConversation struct {
	publisher Publisher
	requestID string
	chatID    string
	replyTo   string
	seq       atomic.Int64
}

// NewReplyConversation creates the conversation for one command message
func NewReplyConversation(p Publisher, msg types.CommandMessage) *ReplyConversation {
	return &ReplyConversation{
		publisher: p,
		requestID: msg.RequestID,
		chatID:    msg.ChatID,
		replyTo:   msg.MessageID,
	}
}

func (c *ReplyConversation) Send(ctx context.Context, text string) (bot.MessageID, error) {
	ev := c.event(types.ReplySend)
	ev.Text = text
	return ev.MessageID, c.publisher.Publish(ctx, ev)
}

func (c *ReplyConversation) SendPhoto(ctx context.Context, photo bot.Photo) (bot.MessageID, error) {
	ev := c.event(types.ReplySendPhoto)
	ev.Caption = photo.Caption
	ev.ContentType = photo.ContentType
	ev.ImageBase64 = base64.StdEncoding.EncodeToString(photo.Data)
	return ev.MessageID, c.publisher.Publish(ctx, ev)
}

func (c *ReplyConversation) Delete(ctx context.Context, id bot.MessageID) error {
	ev := types.ReplyEvent{
		RequestID: c.requestID,
		ChatID:    c.chatID,
		Action:    types.ReplyDelete,
		MessageID: id,
	}
	return c.publisher.Publish(ctx, ev)
}

func (c *ReplyConversation) event(action types.ReplyAction) types.ReplyEvent {
	return types.ReplyEvent{
		RequestID:        c.requestID,
		ChatID:           c.chatID,
		Action:           action,
		MessageID:        fmt.Sprintf("%s-%d", c.requestID, c.seq.Add(1)),
		ReplyToMessageID: c.replyTo,
	}
}

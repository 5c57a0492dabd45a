package types

// CommandMessage is an inbound chat command delivered over Kafka or HTTP
type CommandMessage struct {
	RequestID string `json:"request_id,omitempty"`
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text"`
}

// ReplyAction is what a transport should do with a ReplyEvent
type ReplyAction string

const (
	ReplySend      ReplyAction = "send"
	ReplySendPhoto ReplyAction = "send_photo"
	ReplyDelete    ReplyAction = "delete"
)

// ReplyEvent is published for every message the bot sends or retracts
type ReplyEvent struct {
	RequestID        string      `json:"request_id"`
	ChatID           string      `json:"chat_id"`
	Action           ReplyAction `json:"action"`
	MessageID        string      `json:"message_id"`
	ReplyToMessageID string      `json:"reply_to_message_id,omitempty"`
	Text             string      `json:"text,omitempty"`
	Caption          string      `json:"caption,omitempty"`
	ContentType      string      `json:"content_type,omitempty"`
	ImageBase64      string      `json:"image_base64,omitempty"`
}

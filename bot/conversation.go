package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MessageID identifies a message posted into a conversation
type MessageID = string

// Photo is an image reply with its caption
type Photo struct {
	Data        []byte
	ContentType string
	Caption     string
}

// Conversation is the chat a command came from. Transports implement it.
type Conversation interface {
	Send(ctx context.Context, text string) (MessageID, error)
	SendPhoto(ctx context.Context, photo Photo) (MessageID, error)
	Delete(ctx context.Context, id MessageID) error
}

// ErrMessageNotFound is returned when deleting an unknown message
var ErrMessageNotFound = errors.New("message to delete not found")

// ReplyKind distinguishes text from photo replies
type ReplyKind string

const (
	ReplyText  ReplyKind = "text"
	ReplyPhoto ReplyKind = "photo"
)

// Reply is one message recorded by a Transcript
type Reply struct {
	ID          MessageID
	Kind        ReplyKind
	Text        string
	Caption     string
	ContentType string
	Data        []byte
	Deleted     bool
}

// Transcript is an in-memory Conversation. It is safe for concurrent use.
type Transcript struct {
	mu      sync.Mutex
	replies []Reply
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

func (t *Transcript) Send(_ context.Context, text string) (MessageID, error) {
	return t.add(Reply{Kind: ReplyText, Text: text}), nil
}

func (t *Transcript) SendPhoto(_ context.Context, photo Photo) (MessageID, error) {
	return t.add(Reply{
		Kind:        ReplyPhoto,
		Caption:     photo.Caption,
		ContentType: photo.ContentType,
		Data:        photo.Data,
	}), nil
}

// Delete marks a message deleted. The reply stays in the transcript.
func (t *Transcript) Delete(_ context.Context, id MessageID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.replies {
		if t.replies[i].ID == id && !t.replies[i].Deleted {
			t.replies[i].Deleted = true
			return nil
		}
	}
	return ErrMessageNotFound
}

// Replies returns a copy of everything sent so far, in order
func (t *Transcript) Replies() []Reply {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Reply, len(t.replies))
	copy(out, t.replies)
	return out
}

// Visible returns the replies that were not deleted
func (t *Transcript) Visible() []Reply {
	var out []Reply
	for _, r := range t.Replies() {
		if !r.Deleted {
			out = append(out, r)
		}
	}
	return out
}

func (t *Transcript) add(r Reply) MessageID {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.ID = strconv.Itoa(len(t.replies) + 1)
	t.replies = append(t.replies, r)
	return r.ID
}

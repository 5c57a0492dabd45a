package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"comicbot/bot"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// CommandRequest is the body of POST /api/commands
type CommandRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// ReplyView is one message the bot sent while handling a command
type ReplyView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Text        string `json:"text,omitempty"`
	Caption     string `json:"caption,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Deleted     bool   `json:"deleted"`
}

// CommandResponse lists every reply in the order it was sent
type CommandResponse struct {
	RequestID string      `json:"request_id"`
	Replies   []ReplyView `json:"replies"`
}

// RegisterCommandRoutes registers the command endpoint.
func RegisterCommandRoutes(r *gin.Engine, h CommandHandler, logger log.Interface) {
	r.POST("/api/commands", handleCommand(h, logger))
}

// handleCommand runs one command synchronously and returns its transcript.
func handleCommand(h CommandHandler, logger log.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body CommandRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if strings.TrimSpace(body.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
			return
		}

		req := bot.Request{ID: bot.NewRequestID(), ChatID: body.ChatID, Text: body.Text}
		transcript := bot.NewTranscript()
		if err := h.Handle(c.Request.Context(), req, transcript); err != nil {
			logger.WithError(err).WithField("request_id", req.ID).Error("command failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "request_id": req.ID})
			return
		}

		c.JSON(http.StatusOK, CommandResponse{RequestID: req.ID, Replies: views(transcript.Replies())})
	}
}

func views(replies []bot.Reply) []ReplyView {
	out := make([]ReplyView, 0, len(replies))
	for _, r := range replies {
		v := ReplyView{
			ID:          r.ID,
			Kind:        string(r.Kind),
			Text:        r.Text,
			Caption:     r.Caption,
			ContentType: r.ContentType,
			Deleted:     r.Deleted,
		}
		if len(r.Data) > 0 {
			v.ImageBase64 = base64.StdEncoding.EncodeToString(r.Data)
		}
		out = append(out, v)
	}
	return out
}

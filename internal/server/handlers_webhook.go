package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"telemetry-bridge/internal/chat"
)

// LINE-style webhook payload. Only text message events are answered.
type webhookRequest struct {
	Events []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Message    struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type webhookReply struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
	Kind       chat.Kind     `json:"kind"`
}

// handleWebhook answers chat messages. Delivering the reply to the chat
// vendor is left to the caller; the rendered replies are returned in the
// response body.
// POST /webhook
func (s *Server) handleWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()

	replies := make([]webhookReply, 0, len(req.Events))
	for _, ev := range req.Events {
		if ev.Message.Type != "" && ev.Message.Type != "text" {
			continue
		}
		if ev.Type != "" && ev.Type != "message" {
			continue
		}

		reply := s.deps.Responder.Respond(ctx, ev.Message.Text)
		replies = append(replies, webhookReply{
			ReplyToken: ev.ReplyToken,
			Messages:   []textMessage{{Type: "text", Text: reply.Text}},
			Kind:       reply.Kind,
		})
	}

	c.JSON(http.StatusOK, gin.H{"replies": replies})
}

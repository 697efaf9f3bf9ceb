package api

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"coffee-fleet-backend/internal/conversation"
	"coffee-fleet-backend/internal/parse"
)

type eventRequest struct {
	ActorID   int64  `json:"actor_id" binding:"required"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Token     string `json:"token"`
	MachineID int64  `json:"machine_id"`
	Item      string `json:"item"`
	Text      string `json:"text"`
}

// event turns the request into a conversation event. A token such as
// "sub_item:3:milk" takes precedence over the explicit fields.
func (r eventRequest) event() (conversation.Event, error) {
	ev := conversation.Event{
		ActorID:   r.ActorID,
		Username:  r.Username,
		Action:    conversation.Action(r.Action),
		MachineID: r.MachineID,
		Item:      r.Item,
		Text:      r.Text,
	}

	token := r.Token
	if token == "" && r.Action == "" && strings.TrimSpace(r.Text) == "/start" {
		token = r.Text
	}
	if token != "" {
		tok, err := parse.ParseToken(token)
		if err != nil {
			return conversation.Event{}, err
		}
		ev.Action = conversation.Action(tok.Verb)
		ev.MachineID = tok.MachineID
		ev.Item = tok.Item
		ev.Text = ""
		return ev, nil
	}

	if ev.Action == "" {
		ev.Action = conversation.ActionText
	}
	return ev, nil
}

// PostEvent handles one operator event: a button press or a text message.
func (h *Handler) PostEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ev, err := req.event()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.conversation.Handle(c.Request.Context(), ev)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Printf("Error handling %s from operator %d: %v", ev.Action, ev.ActorID, err)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if res.Tag == conversation.TagDenied {
		c.JSON(http.StatusForbidden, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

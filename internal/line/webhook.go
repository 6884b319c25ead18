package line

import (
	"net/http"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

var ErrInvalidSignature = webhook.ErrInvalidSignature

// TextEvent is a user text message taken from a webhook delivery, with the
// chat it came from.
type TextEvent struct {
	ReplyToken string
	Text       string
	UserID     string
	// GroupID is the group id, or the room id for multi-person chats, or ""
	// for one-to-one chats.
	GroupID string
}

// ParseRequest verifies the X-Line-Signature header and returns the text
// message events of the delivery in order. Other event and message types are
// dropped.
func ParseRequest(channelSecret string, r *http.Request) ([]TextEvent, error) {
	if channelSecret == "" {
		return nil, ErrInvalidSignature
	}
	cb, err := webhook.ParseRequest(channelSecret, r)
	if err != nil {
		return nil, err
	}

	var events []TextEvent
	for _, ev := range cb.Events {
		msg, ok := ev.(webhook.MessageEvent)
		if !ok {
			continue
		}
		text, ok := msg.Message.(webhook.TextMessageContent)
		if !ok {
			continue
		}
		te := TextEvent{ReplyToken: msg.ReplyToken, Text: text.Text}
		switch s := msg.Source.(type) {
		case webhook.UserSource:
			te.UserID = s.UserId
		case webhook.GroupSource:
			te.UserID, te.GroupID = s.UserId, s.GroupId
		case webhook.RoomSource:
			te.UserID, te.GroupID = s.UserId, s.RoomId
		}
		te.UserID = strings.TrimSpace(te.UserID)
		te.GroupID = strings.TrimSpace(te.GroupID)
		events = append(events, te)
	}
	return events, nil
}

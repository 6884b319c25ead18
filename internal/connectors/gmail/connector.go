package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"slices"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"pccmo/internal"
	"pccmo/internal/config"
)

// Connector reads an order inbox through the Gmail API with a stored
// refresh token.
type Connector struct {
	service  *gmail.Service
	markRead bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GMAIL_CLIENT_ID", cfg.GmailClientID); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_CLIENT_SECRET", cfg.GmailClientSecret); err != nil {
		return nil, err
	}
	if err := cfg.Require("GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken); err != nil {
		return nil, err
	}

	scope := gmail.GmailReadonlyScope
	if cfg.GmailMarkRead {
		scope = gmail.GmailModifyScope
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{scope},
	}

	ctx := context.Background()
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}

	return &Connector{service: svc, markRead: cfg.GmailMarkRead}, nil
}

func (c *Connector) Provider() string { return "gmail" }

// FetchUnread returns up to max unread messages under label, oldest first.
func (c *Connector) FetchUnread(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).Q("is:unread").MaxResults(int64(max)).Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		msg, err := c.fetchOne(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		out = append(out, *msg)

		if c.markRead {
			req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
			if _, err := c.service.Users.Messages.Modify("me", ref.Id, req).Context(ctx).Do(); err != nil {
				return nil, err
			}
		}
	}

	// The API lists newest first.
	slices.Reverse(out)
	return out, nil
}

func (c *Connector) fetchOne(ctx context.Context, id string) (*internal.FetchedMailMessage, error) {
	rawResp, err := c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if rawResp.Raw == "" {
		return nil, nil
	}
	raw, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return nil, err
	}

	msg := internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  id,
		ReceivedAt: time.UnixMilli(rawResp.InternalDate).UTC().Format(time.RFC3339),
		Raw:        raw,
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return &msg, nil
	}
	if v := parsed.Header.Get("Message-ID"); v != "" {
		msg.MessageID = v
	}
	msg.Subject = decodeHeader(parsed.Header.Get("Subject"))
	msg.From = parsed.Header.Get("From")
	if t, err := parsed.Header.Date(); err == nil {
		msg.ReceivedAt = t.UTC().Format(time.RFC3339)
	}
	return &msg, nil
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	if out, err := dec.DecodeHeader(v); err == nil {
		return out
	}
	return v
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

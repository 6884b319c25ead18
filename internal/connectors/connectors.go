package connectors

import (
	"context"
	"fmt"
	"strings"

	"pccmo/internal"
	"pccmo/internal/config"
	gmailconnector "pccmo/internal/connectors/gmail"
	imapconnector "pccmo/internal/connectors/imap"
)

// Mailbox is an inbox that site offices send order emails to.
type Mailbox interface {
	Provider() string
	FetchUnread(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

func NewMailbox(provider string, cfg config.Config) (Mailbox, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}

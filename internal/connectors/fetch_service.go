package connectors

import (
	"context"
	"log"

	"pccmo/internal/storage"
)

type FetchService struct {
	mailbox Mailbox
	store   *RawMailStore
}

type FetchResult struct {
	Fetched int
	Stored  int
	Known   int
}

func NewFetchService(db *storage.DB, rawMailDir string, mailbox Mailbox) *FetchService {
	return &FetchService{
		mailbox: mailbox,
		store:   NewRawMailStore(db, rawMailDir),
	}
}

// FetchAndStore pulls unread messages and records the ones not seen before
// with status "fetched".
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.mailbox.FetchUnread(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		_, created, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if created {
			res.Stored++
		} else {
			res.Known++
		}
	}
	if res.Fetched > 0 {
		log.Printf("mail: %s fetched=%d stored=%d known=%d", s.mailbox.Provider(), res.Fetched, res.Stored, res.Known)
	}
	return res, nil
}

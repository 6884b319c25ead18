package listener

import (
	"context"
	"log"
	"strings"
	"time"

	"pccmo/internal/config"
	"pccmo/internal/connectors"
	"pccmo/internal/pipeline"
	"pccmo/internal/storage"
)

// Service polls the order mailbox and feeds new mail through ingestion.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	mailbox   connectors.Mailbox
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService) *Service {
	return &Service{db: db, cfg: cfg, processor: processor}
}

// WithMailbox replaces the mailbox built from configuration.
func (s *Service) WithMailbox(mailbox connectors.Mailbox) *Service {
	s.mailbox = mailbox
	return s
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if err := s.RunCycle(ctx); err != nil {
			log.Printf("listener cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// RunCycle fetches unread mail once and ingests everything pending.
func (s *Service) RunCycle(ctx context.Context) error {
	mailbox := s.mailbox
	if mailbox == nil {
		var err error
		mailbox, err = connectors.NewMailbox(s.cfg.MailListenerProvider, s.cfg)
		if err != nil {
			return err
		}
	}
	provider := strings.ToLower(mailbox.Provider())

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailbox)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processedEmails, savedOrders, err := s.processor.ProcessPendingEmails(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	_ = s.db.SetMetadata("mail.last_cycle_at", time.Now().UTC().Format(time.RFC3339))
	log.Printf("listener cycle done provider=%s fetched=%d stored=%d processed=%d saved=%d",
		provider, fetchResult.Fetched, fetchResult.Stored, processedEmails, savedOrders)
	return nil
}

package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"os"
	"strings"

	"pccmo/internal"
	"pccmo/internal/storage"
	"pccmo/internal/util"
)

// ProcessingService feeds stored raw emails through ingestion and maintains
// previously stored orders.
type ProcessingService struct {
	db     *storage.DB
	ingest *IngestService
}

func NewProcessingService(db *storage.DB, ingest *IngestService) *ProcessingService {
	return &ProcessingService{db: db, ingest: ingest}
}

type ProcessResult struct {
	EmailID int
	Status  IngestStatus
	Saved   int
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPendingEmails ingests fetched emails, optionally restricted to one
// provider. It returns the number of emails handled and orders saved.
func (s *ProcessingService) ProcessPendingEmails(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	savedOrders := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, savedOrders, err
		}
		processedEmails++
		savedOrders += res.Saved
	}
	return processedEmails, savedOrders, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	text, err := ExtractMailText(raw)
	if err != nil {
		_ = s.db.UpdateEmailStatus(email.ID, "failed")
		return ProcessResult{}, fmt.Errorf("read email %d: %w", email.ID, err)
	}

	sender := senderAddress(firstNonEmpty(text.From, email.Sender))
	res, err := s.ingest.Ingest(ctx, Message{
		Text:    text.Body,
		Source:  internal.SourceMail,
		UserID:  util.StringPtr(sender),
		GroupID: util.StringPtr("mail:" + email.Provider),
	})
	if err != nil {
		return ProcessResult{}, err
	}

	status := "processed"
	if res.Status == StatusRejected {
		status = "skipped"
	}
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return ProcessResult{}, err
	}

	return ProcessResult{EmailID: email.ID, Status: res.Status, Saved: len(res.SavedIDs)}, nil
}

// BackfillProductQuantities re-parses the product quantity of stored orders
// that were saved before quantities were extracted. It returns the number of
// rows examined and updated.
func (s *ProcessingService) BackfillProductQuantities(ctx context.Context) (int, int, error) {
	pending, err := s.db.ListOrdersMissingQuantity(ctx)
	if err != nil {
		return 0, 0, err
	}
	updated := 0
	for _, p := range pending {
		qty, unit := ParseProductQuantity(p.RawMessage)
		if !qty.Valid {
			continue
		}
		if err := s.db.UpdateProductQuantity(ctx, p.ID, qty, unit); err != nil {
			return len(pending), updated, err
		}
		updated++
		log.Printf("migrate: order #%d quantity=%s %s", p.ID, util.FormatDecimal(qty), util.Deref(unit))
	}
	return len(pending), updated, nil
}

func senderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

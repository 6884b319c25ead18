package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pccmo/internal"
	"pccmo/internal/config"
	"pccmo/internal/dedup"
	"pccmo/internal/pipeline"
	"pccmo/internal/storage"
)

type staticMailbox struct {
	messages []internal.FetchedMailMessage
}

func (m *staticMailbox) Provider() string { return "imap" }

func (m *staticMailbox) FetchUnread(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return m.messages, nil
}

func TestRunCycleIngestsNewMail(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	raw, err := os.ReadFile(filepath.Join("..", "pipeline", "testdata", "sample_order.eml"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
	}
	ingest := pipeline.NewIngestService(db, dedup.NewGuard(db), nil, cfg)
	svc := NewService(db, cfg, pipeline.NewProcessingService(db, ingest)).WithMailbox(&staticMailbox{
		messages: []internal.FetchedMailMessage{{
			Provider:   "imap",
			MessageID:  "<fixture-1@example.com>",
			From:       "Site Office <site.office@example.com>",
			ReceivedAt: "2025-12-15T01:30:00Z",
			Raw:        raw,
		}},
	})

	ctx := context.Background()
	if err := svc.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	n, err := db.CountOrders(ctx, internal.OrderFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("orders=%d", n)
	}

	// A second cycle sees the same message as already known.
	if err := svc.RunCycle(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ = db.CountOrders(ctx, internal.OrderFilter{})
	if n != 2 {
		t.Fatalf("orders after second cycle=%d", n)
	}
}

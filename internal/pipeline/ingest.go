package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"pccmo/internal"
	"pccmo/internal/config"
	"pccmo/internal/dedup"
	"pccmo/internal/util"
)

type IngestStatus string

const (
	StatusRejected      IngestStatus = "rejected"
	StatusDuplicate     IngestStatus = "duplicate"
	StatusSaved         IngestStatus = "saved"
	StatusAllDuplicates IngestStatus = "all_duplicates"
)

// Message is one inbound chat or mail text with its sender identity.
type Message struct {
	Text    string
	Source  internal.MessageSource
	UserID  *string
	GroupID *string
}

type SkippedItem struct {
	Index       int
	DuplicateOf int64
}

type IngestResult struct {
	TraceID     string
	Status      IngestStatus
	DuplicateOf *int64
	SavedIDs    []int64
	Saved       []internal.OrderItem
	Skipped     []SkippedItem
}

type OrderStore interface {
	InsertOrder(ctx context.Context, item internal.OrderItem, source internal.MessageSource, traceID string) (int64, error)
	InsertRun(traceID, source, status string, counts map[string]int) error
}

type DuplicateChecker interface {
	IsDuplicateMessage(ctx context.Context, rawText string, id dedup.Identity, windowMinutes int) (*int64, error)
	IsDuplicateItem(ctx context.Context, item internal.OrderItem, windowMinutes int) (*int64, error)
}

// SheetSyncer pushes stored orders to the spreadsheet.
type SheetSyncer interface {
	SyncUnsynced(ctx context.Context) (int, error)
}

type IngestService struct {
	store  OrderStore
	guard  DuplicateChecker
	syncer SheetSyncer

	messageWindow int
	itemWindow    int
	syncTimeout   time.Duration
}

// NewIngestService wires the parser, guard and store. syncer may be nil when
// no spreadsheet is configured.
func NewIngestService(store OrderStore, guard DuplicateChecker, syncer SheetSyncer, cfg config.Config) *IngestService {
	messageWindow := cfg.DuplicateMessageWindowMin
	if messageWindow <= 0 {
		messageWindow = dedup.DefaultMessageWindowMin
	}
	itemWindow := cfg.DuplicateItemWindowMin
	if itemWindow <= 0 {
		itemWindow = dedup.DefaultItemWindowMin
	}
	return &IngestService{
		store:         store,
		guard:         guard,
		syncer:        syncer,
		messageWindow: messageWindow,
		itemWindow:    itemWindow,
		syncTimeout:   2 * time.Minute,
	}
}

// Ingest parses a message, drops it when the same text was stored recently,
// skips items whose shape was stored recently and saves the rest. Guard read
// errors are logged and treated as "not a duplicate".
func (s *IngestService) Ingest(ctx context.Context, msg Message) (IngestResult, error) {
	res := IngestResult{TraceID: uuid.NewString()}

	items := ParseMessage(msg.Text)
	if len(items) == 0 {
		res.Status = StatusRejected
		log.Printf("ingest[%s]: rejected %s message %q", res.TraceID, msg.Source, util.Preview(msg.Text, 60))
		s.recordRun(res, msg.Source, 0)
		return res, nil
	}

	id := dedup.NewIdentity(msg.GroupID, msg.UserID)
	dup, err := s.guard.IsDuplicateMessage(ctx, msg.Text, id, s.messageWindow)
	if err != nil {
		log.Printf("ingest[%s]: message duplicate check failed: %v", res.TraceID, err)
	} else if dup != nil {
		res.Status = StatusDuplicate
		res.DuplicateOf = dup
		log.Printf("ingest[%s]: duplicate of order #%d", res.TraceID, *dup)
		s.recordRun(res, msg.Source, len(items))
		return res, nil
	}

	for i, item := range items {
		item.LineUserID = msg.UserID
		item.LineGroupID = msg.GroupID

		dupItem, err := s.guard.IsDuplicateItem(ctx, item, s.itemWindow)
		if err != nil {
			log.Printf("ingest[%s]: item %d duplicate check failed: %v", res.TraceID, i+1, err)
		} else if dupItem != nil {
			res.Skipped = append(res.Skipped, SkippedItem{Index: i, DuplicateOf: *dupItem})
			log.Printf("ingest[%s]: item %d/%d duplicates order #%d", res.TraceID, i+1, len(items), *dupItem)
			continue
		}

		orderID, err := s.store.InsertOrder(ctx, item, msg.Source, res.TraceID)
		if err != nil {
			return res, err
		}
		res.SavedIDs = append(res.SavedIDs, orderID)
		res.Saved = append(res.Saved, item)
	}

	if len(res.SavedIDs) == 0 {
		res.Status = StatusAllDuplicates
		log.Printf("ingest[%s]: all %d items were duplicates", res.TraceID, len(items))
		s.recordRun(res, msg.Source, len(items))
		return res, nil
	}

	res.Status = StatusSaved
	log.Printf("ingest[%s]: saved %d/%d items from %s", res.TraceID, len(res.SavedIDs), len(items), msg.Source)
	s.recordRun(res, msg.Source, len(items))
	s.triggerSync(res.TraceID)
	return res, nil
}

func (s *IngestService) recordRun(res IngestResult, source internal.MessageSource, parsed int) {
	counts := map[string]int{
		"parsed":  parsed,
		"saved":   len(res.SavedIDs),
		"skipped": len(res.Skipped),
	}
	if err := s.store.InsertRun(res.TraceID, string(source), string(res.Status), counts); err != nil {
		log.Printf("ingest[%s]: record run: %v", res.TraceID, err)
	}
}

func (s *IngestService) triggerSync(traceID string) {
	if s.syncer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()
		n, err := s.syncer.SyncUnsynced(ctx)
		if err != nil {
			log.Printf("ingest[%s]: sheets sync: %v", traceID, err)
			return
		}
		if n > 0 {
			log.Printf("ingest[%s]: synced %d rows to sheets", traceID, n)
		}
	}()
}

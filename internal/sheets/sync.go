package sheets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pccmo/internal"
	"pccmo/internal/config"
)

var ErrSyncInProgress = errors.New("sheets sync already in progress")

const (
	metaLastSync    = "sheets.last_sync"
	metaLastSyncErr = "sheets.last_sync_error"
	batchSize       = 500
)

// Writer is the subset of the Sheets API the sync needs.
type Writer interface {
	SheetName(ctx context.Context) (string, error)
	ReadCell(ctx context.Context, rng string) (string, error)
	UpdateRow(ctx context.Context, rng string, row []any) error
	AppendRows(ctx context.Context, rng string, rows [][]any) error
}

type Store interface {
	ListUnsyncedOrders(ctx context.Context, limit int) ([]internal.StoredOrder, error)
	MarkSynced(ctx context.Context, ids []int64) error
	SetMetadata(key, value string) error
}

type SyncService struct {
	writer Writer
	store  Store
	mu     sync.Mutex
}

// NewSyncService returns a service that reports ErrNotConfigured when writer
// is nil.
func NewSyncService(writer Writer, store Store) *SyncService {
	return &SyncService{writer: writer, store: store}
}

func (s *SyncService) Configured() bool { return s.writer != nil }

// EnsureHeader writes the header row unless A1 already holds it.
func (s *SyncService) EnsureHeader(ctx context.Context) error {
	if s.writer == nil {
		return ErrNotConfigured
	}
	sheetName, err := s.writer.SheetName(ctx)
	if err != nil {
		return fmt.Errorf("resolve sheet: %w", err)
	}
	return s.ensureHeader(ctx, sheetName)
}

func (s *SyncService) ensureHeader(ctx context.Context, sheetName string) error {
	a1, err := s.writer.ReadCell(ctx, BuildRange(sheetName, "A1"))
	if err == nil && a1 == HeaderMarker {
		return nil
	}
	row := make([]any, len(Headers))
	for i, h := range Headers {
		row[i] = h
	}
	if err := s.writer.UpdateRow(ctx, BuildRange(sheetName, "A1:L1"), row); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	log.Printf("sheets: header row written to %s", sheetName)
	return nil
}

// SyncUnsynced appends every unsynced order and marks it synced. A sweep
// started while another is running returns ErrSyncInProgress without work.
func (s *SyncService) SyncUnsynced(ctx context.Context) (int, error) {
	if s.writer == nil {
		return 0, ErrNotConfigured
	}
	if !s.mu.TryLock() {
		return 0, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	n, err := s.sync(ctx)
	if err != nil {
		_ = s.store.SetMetadata(metaLastSyncErr, err.Error())
		return n, err
	}
	_ = s.store.SetMetadata(metaLastSync, time.Now().UTC().Format(time.RFC3339))
	return n, nil
}

func (s *SyncService) sync(ctx context.Context) (int, error) {
	sheetName, err := s.writer.SheetName(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve sheet: %w", err)
	}

	total := 0
	headerChecked := false
	for {
		orders, err := s.store.ListUnsyncedOrders(ctx, batchSize)
		if err != nil {
			return total, err
		}
		if len(orders) == 0 {
			return total, nil
		}
		if !headerChecked {
			if err := s.ensureHeader(ctx, sheetName); err != nil {
				return total, err
			}
			headerChecked = true
		}

		rows := make([][]any, 0, len(orders))
		ids := make([]int64, 0, len(orders))
		for _, o := range orders {
			rows = append(rows, BuildRow(o))
			ids = append(ids, o.ID)
		}
		if err := s.writer.AppendRows(ctx, BuildRange(sheetName, "A:L"), rows); err != nil {
			return total, fmt.Errorf("append rows: %w", err)
		}
		if err := s.store.MarkSynced(ctx, ids); err != nil {
			return total, fmt.Errorf("mark synced: %w", err)
		}
		total += len(orders)
		log.Printf("sheets: synced %d orders to %s", len(orders), sheetName)

		if len(orders) < batchSize {
			return total, nil
		}
	}
}

// Run sweeps on every tick until ctx is done.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	if s.writer == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncUnsynced(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				log.Printf("sheets: scheduled sync: %v", err)
			}
		}
	}
}

// TestConnection reports the spreadsheet title and tabs when the writer can
// describe them.
func (s *SyncService) TestConnection(ctx context.Context) (Info, error) {
	if s.writer == nil {
		return Info{}, ErrNotConfigured
	}
	d, ok := s.writer.(interface {
		Info(ctx context.Context) (Info, error)
	})
	if !ok {
		name, err := s.writer.SheetName(ctx)
		if err != nil {
			return Info{}, err
		}
		return Info{Sheets: []string{name}}, nil
	}
	return d.Info(ctx)
}

// NewFromConfig builds the Sheets client when credentials are present and
// falls back to an unconfigured service otherwise.
func NewFromConfig(ctx context.Context, cfg config.Config, store Store) *SyncService {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			log.Printf("sheets: %v; sync disabled", err)
		} else {
			log.Printf("sheets: no credentials, sync disabled")
		}
		return NewSyncService(nil, store)
	}
	return NewSyncService(client, store)
}

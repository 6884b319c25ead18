package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"pccmo/internal"
	"pccmo/internal/storage"
)

// RawMailStore keeps each raw message on disk, named by its content hash,
// and indexes it in the emails table.
type RawMailStore struct {
	db         *storage.DB
	rawMailDir string
}

func NewRawMailStore(db *storage.DB, rawMailDir string) *RawMailStore {
	return &RawMailStore{db: db, rawMailDir: rawMailDir}
}

// Store returns the email row and whether it was new. A known message keeps
// its processing status.
func (s *RawMailStore) Store(msg internal.FetchedMailMessage) (internal.EmailRow, bool, error) {
	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.EmailRow{}, false, err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, false, err
		}
	}

	row, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	return row, err == nil, err
}

package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tomassen/halcyon/internal/analysis"
	"github.com/tomassen/halcyon/internal/storage"
)

// EntryStore is the storage slice the importer writes through.
type EntryStore interface {
	CreateJournalEntry(e storage.JournalEntry) error
	EnqueueJob(job storage.Job) error
}

// Importer turns exported files into journal entries and queues each one
// for background analysis.
type Importer struct {
	store  EntryStore
	logger *slog.Logger
}

// New creates an Importer writing to the given store.
func New(store EntryStore) *Importer {
	return &Importer{store: store, logger: slog.Default()}
}

// Import extracts text from the named file, splits it into entries, and
// stores each one for the user. Returns the number of entries created.
// Entries already stored when a later one fails stay stored; the count
// tells the caller how far the import got.
func (im *Importer) Import(ctx context.Context, userID, path string, r io.Reader) (int, error) {
	text, err := ExtractFile(path, r)
	if err != nil {
		return 0, err
	}

	blocks := SplitEntries(text)
	if len(blocks) == 0 {
		return 0, fmt.Errorf("no usable entries found in %s", path)
	}

	created := 0
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		entry := storage.JournalEntry{
			ID:      uuid.NewString(),
			UserID:  userID,
			Type:    storage.EntryTypeText,
			Content: block,
		}
		if err := im.store.CreateJournalEntry(entry); err != nil {
			return created, fmt.Errorf("storing imported entry: %w", err)
		}
		created++

		// Analysis is best-effort on import; the entry itself is already safe.
		if err := analysis.Enqueue(im.store, entry.ID); err != nil {
			im.logger.Warn("failed to queue analysis for imported entry", "entry_id", entry.ID, "error", err)
		}
	}

	im.logger.Info("import finished", "path", path, "user_id", userID, "entries", created)
	return created, nil
}

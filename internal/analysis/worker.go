// Package analysis runs journal entries through the extraction model in the
// background. Entries are queued as jobs; the worker claims them, extracts
// an insight, and indexes the entry for recall.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomassen/halcyon/internal/insight"
	"github.com/tomassen/halcyon/internal/storage"
)

// JobTypeAnalyzeEntry is the queue type for entry analysis jobs.
const JobTypeAnalyzeEntry = "analyze_entry"

// JobStore abstracts the job queue and entry/insight persistence.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetJournalEntry(id string) (storage.JournalEntry, error)
	SaveInsight(ins storage.Insight) error
}

// EntryAnalyzer extracts a validated insight from entry text.
type EntryAnalyzer interface {
	Analyze(ctx context.Context, entryText string) (insight.Record, error)
}

// EntryIndexer makes an entry recallable by semantic search.
type EntryIndexer interface {
	IndexEntry(ctx context.Context, entry storage.JournalEntry) error
}

// Enqueuer is the store slice needed to queue an analysis job.
type Enqueuer interface {
	EnqueueJob(job storage.Job) error
}

type analyzePayload struct {
	EntryID string `json:"entry_id"`
}

// Enqueue queues background analysis for a journal entry.
func Enqueue(store Enqueuer, entryID string) error {
	payload, err := json.Marshal(analyzePayload{EntryID: entryID})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeAnalyzeEntry,
		PayloadJSON: string(payload),
		MaxAttempts: 3,
	}
	if err := store.EnqueueJob(job); err != nil {
		return fmt.Errorf("enqueueing analysis job: %w", err)
	}
	return nil
}

// Worker processes analyze_entry jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	analyzer EntryAnalyzer
	indexer  EntryIndexer
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, analyzer EntryAnalyzer, indexer EntryIndexer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		analyzer: analyzer,
		indexer:  indexer,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single analyze_entry job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeAnalyzeEntry})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("analysis job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload analyzePayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	entry, err := w.store.GetJournalEntry(payload.EntryID)
	if err != nil {
		return fmt.Errorf("loading entry %s: %w", payload.EntryID, err)
	}

	rec, err := w.analyzer.Analyze(ctx, entry.Content)
	if err != nil {
		return fmt.Errorf("analyzing entry %s: %w", entry.ID, err)
	}

	ins := storage.Insight{
		ID:         uuid.NewString(),
		EntryID:    entry.ID,
		UserID:     entry.UserID,
		Emotions:   rec.Emotions,
		Activities: rec.Activities,
		Comments:   rec.Comments,
	}
	if err := w.store.SaveInsight(ins); err != nil {
		return fmt.Errorf("saving insight for entry %s: %w", entry.ID, err)
	}

	// Re-running after a partial failure re-saves the insight; latest-wins
	// reads make that harmless.
	if err := w.indexer.IndexEntry(ctx, entry); err != nil {
		return fmt.Errorf("indexing entry %s: %w", entry.ID, err)
	}

	return nil
}

package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomassen/halcyon/internal/insight"
	"github.com/tomassen/halcyon/internal/storage"
)

type mockAnalyzer struct {
	analyzeFn func(ctx context.Context, text string) (insight.Record, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, text string) (insight.Record, error) {
	return m.analyzeFn(ctx, text)
}

type mockIndexer struct {
	mu      sync.Mutex
	indexed []storage.JournalEntry
	indexFn func(ctx context.Context, entry storage.JournalEntry) error
}

func (m *mockIndexer) IndexEntry(ctx context.Context, entry storage.JournalEntry) error {
	if m.indexFn != nil {
		return m.indexFn(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed = append(m.indexed, entry)
	return nil
}

func happyAnalyzer() *mockAnalyzer {
	return &mockAnalyzer{
		analyzeFn: func(_ context.Context, _ string) (insight.Record, error) {
			return insight.Record{
				Emotions:   []string{"happy"},
				Activities: []string{"surfing"},
				Comments:   []string{"Great energy after the session"},
			}, nil
		},
	}
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createEntryAndJob(t *testing.T, store *storage.Store, entryID, content string) {
	t.Helper()
	entry := storage.JournalEntry{
		ID:      entryID,
		UserID:  "u1",
		Type:    storage.EntryTypeText,
		Content: content,
	}
	if err := store.CreateJournalEntry(entry); err != nil {
		t.Fatalf("CreateJournalEntry: %v", err)
	}
	if err := Enqueue(store, entryID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
}

// resetRunAfter clears the FailJob backoff so the job is immediately claimable.
func resetRunAfter(t *testing.T, store *storage.Store) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ?`, now); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobState(t *testing.T, store *storage.Store) (status string, attempts int) {
	t.Helper()
	err := store.DB().QueryRow(`SELECT status, attempts FROM jobs LIMIT 1`).Scan(&status, &attempts)
	if err != nil {
		t.Fatalf("querying job state: %v", err)
	}
	return status, attempts
}

func TestWorker_ProcessesJob(t *testing.T) {
	store := openTestStore(t)
	createEntryAndJob(t, store, "e1", "surfed all morning, felt amazing")

	indexer := &mockIndexer{}
	w := NewWorker(store, happyAnalyzer(), indexer, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false, expected true")
	}

	ins, err := store.GetInsight("e1")
	if err != nil {
		t.Fatalf("GetInsight: %v", err)
	}
	if ins.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", ins.UserID)
	}
	if len(ins.Emotions) != 1 || ins.Emotions[0] != "happy" {
		t.Errorf("Emotions = %v", ins.Emotions)
	}

	indexer.mu.Lock()
	defer indexer.mu.Unlock()
	if len(indexer.indexed) != 1 || indexer.indexed[0].ID != "e1" {
		t.Fatalf("indexed entries = %+v, want e1", indexer.indexed)
	}

	status, _ := jobState(t, store)
	if status != "completed" {
		t.Errorf("job status = %q, want completed", status)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, happyAnalyzer(), &mockIndexer{}, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if didWork {
		t.Fatal("RunOnce returned true with empty queue")
	}
}

func TestWorker_RetryOnAnalyzerFailure(t *testing.T) {
	store := openTestStore(t)
	createEntryAndJob(t, store, "e1", "rough day")

	calls := 0
	analyzer := &mockAnalyzer{
		analyzeFn: func(_ context.Context, _ string) (insight.Record, error) {
			calls++
			if calls == 1 {
				return insight.Record{}, fmt.Errorf("%w: missing key", insight.ErrExtraction)
			}
			return insight.Record{Emotions: []string{"sad"}}, nil
		},
	}
	w := NewWorker(store, analyzer, &mockIndexer{}, 0)
	ctx := context.Background()

	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 1: didWork=%v err=%v", didWork, err)
	}
	status, attempts := jobState(t, store)
	if status != "pending" || attempts != 1 {
		t.Fatalf("after 1st fail: status=%q attempts=%d, want pending/1", status, attempts)
	}

	resetRunAfter(t, store)

	if didWork, err := w.RunOnce(ctx); err != nil || !didWork {
		t.Fatalf("RunOnce 2: didWork=%v err=%v", didWork, err)
	}
	status, _ = jobState(t, store)
	if status != "completed" {
		t.Errorf("after retry: status=%q, want completed", status)
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	createEntryAndJob(t, store, "e1", "content")

	analyzer := &mockAnalyzer{
		analyzeFn: func(_ context.Context, _ string) (insight.Record, error) {
			return insight.Record{}, fmt.Errorf("permanent error")
		},
	}
	w := NewWorker(store, analyzer, &mockIndexer{}, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce %d error: %v", i, err)
		}
		if !didWork {
			t.Fatalf("RunOnce %d returned false", i)
		}
		if i < 3 {
			resetRunAfter(t, store)
		}
	}

	status, _ := jobState(t, store)
	if status != "failed" {
		t.Errorf("final status = %q, want failed", status)
	}
}

func TestWorker_MissingEntryFailsJob(t *testing.T) {
	store := openTestStore(t)
	if err := Enqueue(store, "ghost"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	w := NewWorker(store, happyAnalyzer(), &mockIndexer{}, 0)

	didWork, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if !didWork {
		t.Fatal("RunOnce returned false")
	}
	status, attempts := jobState(t, store)
	if status != "pending" || attempts != 1 {
		t.Errorf("status=%q attempts=%d, want pending/1", status, attempts)
	}
}

func TestWorker_IndexerFailureRetries(t *testing.T) {
	store := openTestStore(t)
	createEntryAndJob(t, store, "e1", "a fine day")

	indexer := &mockIndexer{
		indexFn: func(_ context.Context, _ storage.JournalEntry) error {
			return fmt.Errorf("vector store locked")
		},
	}
	w := NewWorker(store, happyAnalyzer(), indexer, 0)

	if didWork, err := w.RunOnce(context.Background()); err != nil || !didWork {
		t.Fatalf("RunOnce: didWork=%v err=%v", didWork, err)
	}

	// The insight is already saved; only the job retries.
	if _, err := store.GetInsight("e1"); err != nil {
		t.Fatalf("GetInsight after indexer failure: %v", err)
	}
	status, _ := jobState(t, store)
	if status != "pending" {
		t.Errorf("status = %q, want pending", status)
	}
}

func TestWorker_ConcurrentEnqueue(t *testing.T) {
	store := openTestStore(t)

	const goroutines = 5
	const jobsPerGoroutine = 10
	const total = goroutines * jobsPerGoroutine

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < jobsPerGoroutine; j++ {
				entryID := fmt.Sprintf("e-%d-%d", g, j)
				entry := storage.JournalEntry{
					ID:      entryID,
					UserID:  "u1",
					Type:    storage.EntryTypeText,
					Content: fmt.Sprintf("entry %d-%d", g, j),
				}
				if err := store.CreateJournalEntry(entry); err != nil {
					t.Errorf("CreateJournalEntry %s: %v", entryID, err)
					return
				}
				if err := Enqueue(store, entryID); err != nil {
					t.Errorf("Enqueue %s: %v", entryID, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	w := NewWorker(store, happyAnalyzer(), &mockIndexer{}, 0)

	ctx := context.Background()
	deadline := time.After(5 * time.Second)
	processed := 0
	for processed < total {
		select {
		case <-deadline:
			t.Fatalf("timed out after processing %d/%d jobs", processed, total)
		default:
		}
		didWork, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce error at job %d: %v", processed, err)
		}
		if didWork {
			processed++
		}
	}

	for g := 0; g < goroutines; g++ {
		for j := 0; j < jobsPerGoroutine; j++ {
			entryID := fmt.Sprintf("e-%d-%d", g, j)
			if _, err := store.GetInsight(entryID); err != nil {
				t.Errorf("GetInsight %s: %v", entryID, err)
			}
		}
	}
}

//go:build integration

package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomassen/halcyon/internal/ollama"
	"github.com/tomassen/halcyon/internal/storage"
)

// setupIntegrationRetriever creates an in-memory store and a retriever backed
// by a running Ollama instance. It skips the test if Ollama is not available.
func setupIntegrationRetriever(t *testing.T) *Retriever {
	t.Helper()

	client := ollama.New("http://localhost:11434")
	if !client.IsRunning(context.Background()) {
		t.Skip("Ollama is not running, skipping integration test")
	}
	if !client.HasModel(context.Background(), "nomic-embed-text") {
		t.Skip("nomic-embed-text model not available, skipping integration test")
	}

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := NewEmbedder(client, "nomic-embed-text")
	return NewRetriever(embedder, NewVectorStore(store.DB()))
}

func TestRecallSemanticMatch(t *testing.T) {
	retriever := setupIntegrationRetriever(t)

	entryText := "Went bouldering at the new climbing gym with Priya, my forearms are destroyed but it was so much fun"
	entry := storage.JournalEntry{
		ID:        uuid.New().String(),
		UserID:    "u1",
		Type:      storage.EntryTypeText,
		Content:   entryText,
		CreatedAt: time.Now().UTC(),
	}
	if err := retriever.IndexEntry(context.Background(), entry); err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}

	memories, err := retriever.Recall(context.Background(), "u1", "climbing with friends", 5)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}

	if len(memories) == 0 {
		t.Fatal("expected at least one result")
	}
	if memories[0].Score < 0.5 {
		t.Errorf("score = %f, want > 0.5", memories[0].Score)
	}
	if memories[0].Text != entryText {
		t.Errorf("text = %q, want %q", memories[0].Text, entryText)
	}
}

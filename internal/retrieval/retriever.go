package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomassen/halcyon/internal/storage"
)

// maxChunkLen caps chunk size in runes. Journal entries are usually short
// enough to embed whole; long imports get split on paragraph boundaries.
const maxChunkLen = 1200

// Memory is a recalled journal fragment with its similarity score.
type Memory struct {
	EntryID   string    `json:"entry_id"`
	Text      string    `json:"text"`
	Score     float32   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Retriever combines embedding and vector search to recall past journal
// entries related to a query.
type Retriever struct {
	embedder *Embedder
	store    *VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store *VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// IndexEntry chunks, embeds, and stores one journal entry's text so it can
// be recalled later. Blank entries index nothing.
func (r *Retriever) IndexEntry(ctx context.Context, entry storage.JournalEntry) error {
	chunks := splitChunks(entry.Content)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := r.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return err
	}

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = Record{
			ID:        uuid.NewString(),
			EntryID:   entry.ID,
			UserID:    entry.UserID,
			TextChunk: chunk,
			Embedding: vectors[i],
			CreatedAt: entry.CreatedAt,
		}
	}
	return r.store.Insert(records)
}

// Recall embeds the query and returns the user's top-K most similar
// journal fragments.
func (r *Retriever) Recall(ctx context.Context, userID, query string, topK int) ([]Memory, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(userID, vec, topK)
	if err != nil {
		return nil, err
	}

	memories := make([]Memory, len(scored))
	for i, s := range scored {
		memories[i] = Memory{
			EntryID:   s.EntryID,
			Text:      s.TextChunk,
			Score:     s.Score,
			CreatedAt: s.CreatedAt,
		}
	}
	return memories, nil
}

// Forget removes all indexed fragments of a deleted entry.
func (r *Retriever) Forget(entryID string) error {
	return r.store.DeleteByEntry(entryID)
}

// splitChunks breaks text into paragraph-aligned chunks no longer than
// maxChunkLen runes. Paragraphs that fit together are merged; an oversized
// single paragraph is split on rune boundaries.
func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitLong(para) {
			if current.Len() > 0 && current.Len()+len(piece)+2 > maxChunkLen {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitLong(para string) []string {
	runes := []rune(para)
	if len(runes) <= maxChunkLen {
		return []string{para}
	}
	var pieces []string
	for len(runes) > 0 {
		n := maxChunkLen
		if n > len(runes) {
			n = len(runes)
		}
		pieces = append(pieces, string(runes[:n]))
		runes = runes[n:]
	}
	return pieces
}

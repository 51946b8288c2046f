package importer

import (
	"context"
	"strings"
	"testing"

	"github.com/tomassen/halcyon/internal/storage"
)

func TestExtractHTML_StripsMarkup(t *testing.T) {
	page := `<html><head><style>p { color: red }</style></head><body>
		<h1>March journal</h1>
		<p>Went hiking with the photography club, felt energized.</p>
		<p>Quiet Sunday, mostly reading on the balcony.</p>
		<script>track();</script>
	</body></html>`

	text, err := extractHTML(strings.NewReader(page))
	if err != nil {
		t.Fatalf("extractHTML: %v", err)
	}
	if strings.Contains(text, "color: red") || strings.Contains(text, "track()") {
		t.Errorf("style/script leaked into text: %q", text)
	}
	if !strings.Contains(text, "hiking with the photography club") {
		t.Errorf("paragraph text missing: %q", text)
	}

	entries := SplitEntries(text)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (heading + two paragraphs): %q", len(entries), entries)
	}
}

func TestSplitEntries(t *testing.T) {
	text := "First day at the climbing gym, arms are jelly.\n\n" +
		"42\n\n" + // page number noise
		"   \n\n" +
		"Met Ana for coffee,\nwe talked for hours."

	entries := SplitEntries(text)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %q", len(entries), entries)
	}
	if entries[1] != "Met Ana for coffee, we talked for hours." {
		t.Errorf("intra-entry newline not collapsed: %q", entries[1])
	}
}

func TestSplitEntries_Empty(t *testing.T) {
	if got := SplitEntries("\n\n  \n\n"); got != nil {
		t.Fatalf("expected nil, got %q", got)
	}
}

type mockEntryStore struct {
	entries []storage.JournalEntry
	jobs    []storage.Job

	entryErr error
	jobErr   error
}

func (m *mockEntryStore) CreateJournalEntry(e storage.JournalEntry) error {
	if m.entryErr != nil {
		return m.entryErr
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockEntryStore) EnqueueJob(job storage.Job) error {
	if m.jobErr != nil {
		return m.jobErr
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func TestImport_TextFile(t *testing.T) {
	store := &mockEntryStore{}
	im := New(store)

	content := "Spent the evening at the board game night.\n\nSlept in, lazy start but a good one."
	n, err := im.Import(context.Background(), "u1", "journal.txt", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("created %d entries, want 2", n)
	}
	if len(store.entries) != 2 || len(store.jobs) != 2 {
		t.Fatalf("stored %d entries, %d jobs; want 2 and 2", len(store.entries), len(store.jobs))
	}
	for _, e := range store.entries {
		if e.UserID != "u1" || e.Type != storage.EntryTypeText || e.ID == "" {
			t.Errorf("bad entry: %+v", e)
		}
	}
}

func TestImport_EmptyFile(t *testing.T) {
	im := New(&mockEntryStore{})

	if _, err := im.Import(context.Background(), "u1", "empty.txt", strings.NewReader("")); err == nil {
		t.Fatal("expected error for file with no entries")
	}
}

func TestImport_StoreFailureReportsProgress(t *testing.T) {
	store := &mockEntryStore{}
	im := New(store)

	content := "A solid first entry to keep.\n\nA second entry that will not land."
	store.entryErr = nil
	n, err := im.Import(context.Background(), "u1", "journal.txt", strings.NewReader(content))
	if err != nil || n != 2 {
		t.Fatalf("control import failed: n=%d err=%v", n, err)
	}

	failing := &mockEntryStore{entryErr: context.DeadlineExceeded}
	n, err = New(failing).Import(context.Background(), "u1", "journal.txt", strings.NewReader(content))
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if n != 0 {
		t.Fatalf("reported %d created entries, want 0", n)
	}
}

func TestImport_JobFailureNonFatal(t *testing.T) {
	store := &mockEntryStore{jobErr: context.DeadlineExceeded}
	im := New(store)

	n, err := im.Import(context.Background(), "u1", "journal.txt", strings.NewReader("One fine entry about the farmers market."))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 1 || len(store.entries) != 1 {
		t.Fatalf("entries not stored despite job failure: n=%d", n)
	}
}

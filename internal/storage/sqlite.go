package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding journal entries, insights, and
// activity signals. It is the single authority on record identity.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "halcyon.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for components that share the
// database file (vector search).
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Journal entries ---

func (s *Store) CreateJournalEntry(e JournalEntry) error {
	entryType := e.Type
	if entryType == "" {
		entryType = EntryTypeText
	}
	_, err := s.db.Exec(`
		INSERT INTO journal_entries (id, user_id, type, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, entryType, e.Content, e.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetJournalEntry(id string) (JournalEntry, error) {
	var e JournalEntry
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, user_id, type, content, created_at
		FROM journal_entries WHERE id = ?`, id,
	).Scan(&e.ID, &e.UserID, &e.Type, &e.Content, &createdAt)
	if err == sql.ErrNoRows {
		return JournalEntry{}, ErrNotFound
	}
	if err != nil {
		return JournalEntry{}, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return JournalEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}

// ListJournalEntries returns the user's entries, newest first. limit <= 0
// returns all entries.
func (s *Store) ListJournalEntries(userID string, limit int) ([]JournalEntry, error) {
	query := `SELECT id, user_id, type, content, created_at
		FROM journal_entries WHERE user_id = ? ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Content, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// DeleteJournalEntry removes an entry and everything derived from it.
func (s *Store) DeleteJournalEntry(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM journal_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(`DELETE FROM insights WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("deleting insights for entry %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM entry_vectors WHERE entry_id = ?`, id); err != nil {
		return fmt.Errorf("deleting vectors for entry %s: %w", id, err)
	}

	return tx.Commit()
}

// --- Insights ---

// SaveInsight stores the extraction result for an entry. A re-analysis
// inserts a fresh row; GetInsight returns the latest one.
func (s *Store) SaveInsight(ins Insight) error {
	emotions, err := marshalList(ins.Emotions)
	if err != nil {
		return fmt.Errorf("marshalling emotions: %w", err)
	}
	activities, err := marshalList(ins.Activities)
	if err != nil {
		return fmt.Errorf("marshalling activities: %w", err)
	}
	comments, err := marshalList(ins.Comments)
	if err != nil {
		return fmt.Errorf("marshalling comments: %w", err)
	}

	createdAt := ins.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO insights (id, entry_id, user_id, emotions, activities, comments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ins.ID, ins.EntryID, ins.UserID, emotions, activities, comments,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// GetInsight returns the latest insight stored for the given entry.
func (s *Store) GetInsight(entryID string) (Insight, error) {
	row := s.db.QueryRow(`
		SELECT id, entry_id, user_id, emotions, activities, comments, created_at
		FROM insights WHERE entry_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, entryID)
	return scanInsight(row)
}

func scanInsight(row *sql.Row) (Insight, error) {
	var ins Insight
	var emotions, activities, comments, createdAt string
	err := row.Scan(&ins.ID, &ins.EntryID, &ins.UserID, &emotions, &activities, &comments, &createdAt)
	if err == sql.ErrNoRows {
		return Insight{}, ErrNotFound
	}
	if err != nil {
		return Insight{}, err
	}
	if ins.Emotions, err = unmarshalList(emotions); err != nil {
		return Insight{}, fmt.Errorf("parsing emotions: %w", err)
	}
	if ins.Activities, err = unmarshalList(activities); err != nil {
		return Insight{}, fmt.Errorf("parsing activities: %w", err)
	}
	if ins.Comments, err = unmarshalList(comments); err != nil {
		return Insight{}, fmt.Errorf("parsing comments: %w", err)
	}
	if ins.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Insight{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return ins, nil
}

// --- Mood samples ---

func (s *Store) AddMoodSample(m MoodSample) error {
	recordedAt := m.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO mood_samples (id, user_id, mood, recorded_at)
		VALUES (?, ?, ?, ?)`,
		m.ID, m.UserID, m.Mood, recordedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// MoodHistory returns the user's mood samples in chronological order,
// oldest first.
func (s *Store) MoodHistory(userID string) ([]MoodSample, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, mood, recorded_at
		FROM mood_samples WHERE user_id = ? ORDER BY recorded_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MoodSample
	for rows.Next() {
		var m MoodSample
		var recordedAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Mood, &recordedAt); err != nil {
			return nil, err
		}
		if m.RecordedAt, err = time.Parse(time.RFC3339, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// --- Activity signals ---

func (s *Store) AddEventAttendance(e EventAttendance) error {
	attendedAt := e.AttendedAt
	if attendedAt.IsZero() {
		attendedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO event_attendance (id, user_id, event_name, attended_at)
		VALUES (?, ?, ?, ?)`,
		e.ID, e.UserID, e.EventName, attendedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) AttendedEvents(userID string) ([]EventAttendance, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, event_name, attended_at
		FROM event_attendance WHERE user_id = ? ORDER BY attended_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []EventAttendance
	for rows.Next() {
		var e EventAttendance
		var attendedAt string
		if err := rows.Scan(&e.ID, &e.UserID, &e.EventName, &attendedAt); err != nil {
			return nil, err
		}
		if e.AttendedAt, err = time.Parse(time.RFC3339, attendedAt); err != nil {
			return nil, fmt.Errorf("parsing attended_at: %w", err)
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *Store) AddCommunityMembership(c CommunityMembership) error {
	joinedAt := c.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO community_memberships (id, user_id, community_name, joined_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.CommunityName, joinedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) JoinedCommunities(userID string) ([]CommunityMembership, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, community_name, joined_at
		FROM community_memberships WHERE user_id = ? ORDER BY joined_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CommunityMembership
	for rows.Next() {
		var c CommunityMembership
		var joinedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &c.CommunityName, &joinedAt); err != nil {
			return nil, err
		}
		if c.JoinedAt, err = time.Parse(time.RFC3339, joinedAt); err != nil {
			return nil, fmt.Errorf("parsing joined_at: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *Store) AddPointsAward(p PointsAward) error {
	earnedAt := p.EarnedAt
	if earnedAt.IsZero() {
		earnedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO points_awards (id, user_id, points, reason, earned_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Points, p.Reason, earnedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// Points returns the user's cumulative points total.
func (s *Store) Points(userID string) (int, error) {
	var total int
	err := s.db.QueryRow(`SELECT COALESCE(SUM(points), 0) FROM points_awards WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// --- Jobs ---

func (s *Store) EnqueueJob(job Job) error {
	now := time.Now().UTC().Format(time.RFC3339)
	runAfter := now
	if !job.RunAfter.IsZero() {
		runAfter = job.RunAfter.UTC().Format(time.RFC3339)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
	)
	return err
}

// ClaimNextJob atomically claims the oldest runnable pending job of the
// given types. Returns (nil, nil) when no job is due.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	placeholders := strings.Repeat(",?", len(types)-1)
	query := `SELECT id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error
		FROM jobs
		WHERE status = 'pending' AND run_after <= ? AND type IN (?` + placeholders + `)
		ORDER BY run_after ASC, created_at ASC
		LIMIT 1`

	args := make([]any, 0, len(types)+1)
	args = append(args, now)
	for _, t := range types {
		args = append(args, t)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var runAfter, createdAt, updatedAt string
	var lastError sql.NullString
	err = tx.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &createdAt, &updatedAt, &lastError,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'running', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = "running"
	j.LastError = lastError.String
	if j.RunAfter, err = time.Parse(time.RFC3339, runAfter); err != nil {
		return nil, fmt.Errorf("parsing run_after for job %s: %w", j.ID, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	return &j, nil
}

func (s *Store) CompleteJob(id string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = 'completed', updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailJob records a failure. The job goes back to pending with exponential
// backoff until max_attempts is reached, then stays failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	attempts++

	if attempts >= maxAttempts {
		_, err = tx.Exec(`UPDATE jobs SET status = 'failed', attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, now.Format(time.RFC3339), id)
	} else {
		backoff := time.Duration(math.Pow(2, float64(attempts))) * time.Second
		runAfter := now.Add(backoff)
		_, err = tx.Exec(`UPDATE jobs SET status = 'pending', attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
			attempts, errMsg, runAfter.Format(time.RFC3339), now.Format(time.RFC3339), id)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// --- helpers ---

// marshalList stores string slices as JSON text. nil marshals to "[]" so a
// stored insight never has a null field.
func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

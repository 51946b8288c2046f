package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Entry types.
const (
	EntryTypeText  = "text"
	EntryTypeVoice = "voice"
)

// JournalEntry is one user submission. Immutable once created; removed only
// by explicit user action.
type JournalEntry struct {
	ID        string
	UserID    string
	Type      string // "text" or "voice" (transcribed)
	Content   string
	CreatedAt time.Time
}

// Insight is the validated extraction result for one journal entry.
// Re-analysis inserts a new row; reads return the latest row per entry.
type Insight struct {
	ID         string
	EntryID    string
	UserID     string
	Emotions   []string
	Activities []string
	Comments   []string
	CreatedAt  time.Time
}

// MoodSample is a point-in-time self-reported mood.
type MoodSample struct {
	ID         string
	UserID     string
	Mood       string
	RecordedAt time.Time
}

// EventAttendance records one attended (or RSVP'd) event.
type EventAttendance struct {
	ID         string
	UserID     string
	EventName  string
	AttendedAt time.Time
}

// CommunityMembership records one joined community.
type CommunityMembership struct {
	ID            string
	UserID        string
	CommunityName string
	JoinedAt      time.Time
}

// PointsAward is one append-only points grant. A user's total is the sum
// over all awards.
type PointsAward struct {
	ID       string
	UserID   string
	Points   int
	Reason   string
	EarnedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

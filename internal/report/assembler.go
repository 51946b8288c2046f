// Package report assembles monthly wellbeing reports from a user's stored
// signals. Assembly itself is a pure function; the Generator wraps it with
// the store reads.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomassen/halcyon/internal/storage"
	"github.com/tomassen/halcyon/internal/trend"
)

// ErrSignalSource indicates a required signal collection could not be read
// from the store. The report is not partially assembled; callers get no
// report rather than one with silently zeroed sections.
var ErrSignalSource = errors.New("signal source unavailable")

// socialConnectionsPerCommunity is the fixed per-community estimate factor
// behind the socialConnections figure. Policy, not a measurement.
const socialConnectionsPerCommunity = 5

// pointsMilestone is the points total above which a milestone moment is
// highlighted.
const pointsMilestone = 300

// MonthlyReport is a derived, recomputable artifact. It is never the source
// of truth; identical input signals always produce an identical report.
type MonthlyReport struct {
	Month             time.Month `json:"month"`
	Year              int        `json:"year"`
	UserID            string     `json:"user_id"`
	EventsAttended    int        `json:"events_attended"`
	CommunitiesJoined int        `json:"communities_joined"`
	PointsEarned      int        `json:"points_earned"`
	JournalEntries    int        `json:"journal_entries"`
	MoodTrend         string     `json:"mood_trend"`
	TopMoments        []string   `json:"top_moments"`
	EmotionalSummary  string     `json:"emotional_summary"`
	SocialConnections int        `json:"social_connections"`
	Recommendations   []string   `json:"recommendations"`
}

// Inputs is the read-only snapshot of signals a report derives from.
type Inputs struct {
	MoodHistory []storage.MoodSample
	Entries     []storage.JournalEntry
	Events      []storage.EventAttendance
	Communities []storage.CommunityMembership
	Points      int
}

// Assemble derives one MonthlyReport from the snapshot. Pure: no storage or
// network calls, no randomness.
func Assemble(userID string, month time.Month, year int, in Inputs) MonthlyReport {
	moods := make([]string, len(in.MoodHistory))
	for i, m := range in.MoodHistory {
		moods[i] = m.Mood
	}

	r := MonthlyReport{
		Month:             month,
		Year:              year,
		UserID:            userID,
		EventsAttended:    len(in.Events),
		CommunitiesJoined: len(in.Communities),
		PointsEarned:      in.Points,
		JournalEntries:    len(in.Entries),
		MoodTrend:         string(trend.Classify(moods)),
		EmotionalSummary:  trend.Summarize(moods),
		SocialConnections: len(in.Communities) * socialConnectionsPerCommunity,
	}
	r.TopMoments = topMoments(r.EventsAttended, r.PointsEarned)
	r.Recommendations = recommendations(r.JournalEntries, r.EventsAttended)
	return r
}

// topMoments applies the fixed rule order; each rule appends at most one
// moment and the closing moment is unconditional, so the result holds 1–3
// strings.
func topMoments(eventsAttended, points int) []string {
	moments := make([]string, 0, 3)
	if eventsAttended > 0 {
		moments = append(moments, fmt.Sprintf("Attended %d events this month", eventsAttended))
	}
	if points > pointsMilestone {
		moments = append(moments, fmt.Sprintf("Crossed %d points, a real milestone", pointsMilestone))
	}
	moments = append(moments, "Built meaningful connections in your communities")
	return moments
}

// recommendations applies the fixed rule order, terminating with the
// unconditional closing recommendation.
func recommendations(journalEntries, eventsAttended int) []string {
	recs := make([]string, 0, 3)
	if journalEntries < 15 {
		recs = append(recs, "Try a daily mood check-in to build a richer picture of your weeks")
	}
	if eventsAttended < 4 {
		recs = append(recs, "Attend a few more community events, they tend to lift the rest of the week")
	}
	recs = append(recs, "Explore a new interest or hobby this month")
	return recs
}

// SignalSource is the store adapter the Generator reads through. Implemented
// by *storage.Store.
type SignalSource interface {
	MoodHistory(userID string) ([]storage.MoodSample, error)
	ListJournalEntries(userID string, limit int) ([]storage.JournalEntry, error)
	AttendedEvents(userID string) ([]storage.EventAttendance, error)
	JoinedCommunities(userID string) ([]storage.CommunityMembership, error)
	Points(userID string) (int, error)
}

// Generator produces monthly reports for users from a signal store.
type Generator struct {
	store SignalSource
}

// NewGenerator creates a Generator reading from the given store.
func NewGenerator(store SignalSource) *Generator {
	return &Generator{store: store}
}

// Monthly pulls the user's full signal history and assembles one report.
// Any store failure aborts: a partially assembled report would be
// indistinguishable from a genuinely quiet month.
func (g *Generator) Monthly(ctx context.Context, userID string, month time.Month, year int) (MonthlyReport, error) {
	if err := ctx.Err(); err != nil {
		return MonthlyReport{}, err
	}

	moods, err := g.store.MoodHistory(userID)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("%w: mood history: %v", ErrSignalSource, err)
	}
	entries, err := g.store.ListJournalEntries(userID, 0)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("%w: journal entries: %v", ErrSignalSource, err)
	}
	events, err := g.store.AttendedEvents(userID)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("%w: attended events: %v", ErrSignalSource, err)
	}
	communities, err := g.store.JoinedCommunities(userID)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("%w: joined communities: %v", ErrSignalSource, err)
	}
	points, err := g.store.Points(userID)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("%w: points: %v", ErrSignalSource, err)
	}

	return Assemble(userID, month, year, Inputs{
		MoodHistory: moods,
		Entries:     entries,
		Events:      events,
		Communities: communities,
		Points:      points,
	}), nil
}

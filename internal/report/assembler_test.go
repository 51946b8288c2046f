package report

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tomassen/halcyon/internal/storage"
)

func entries(n int) []storage.JournalEntry {
	out := make([]storage.JournalEntry, n)
	for i := range out {
		out[i] = storage.JournalEntry{ID: "e", UserID: "u1", Type: storage.EntryTypeText, Content: "day"}
	}
	return out
}

func events(n int) []storage.EventAttendance {
	out := make([]storage.EventAttendance, n)
	for i := range out {
		out[i] = storage.EventAttendance{ID: "ev", UserID: "u1", EventName: "meetup"}
	}
	return out
}

func communities(n int) []storage.CommunityMembership {
	out := make([]storage.CommunityMembership, n)
	for i := range out {
		out[i] = storage.CommunityMembership{ID: "c", UserID: "u1", CommunityName: "club"}
	}
	return out
}

func TestAssemble_Counts(t *testing.T) {
	in := Inputs{
		MoodHistory: []storage.MoodSample{{Mood: "happy"}, {Mood: "neutral"}},
		Entries:     entries(10),
		Events:      events(2),
		Communities: communities(3),
		Points:      120,
	}

	r := Assemble("u1", time.March, 2026, in)

	if r.UserID != "u1" || r.Month != time.March || r.Year != 2026 {
		t.Fatalf("report identity wrong: %+v", r)
	}
	if r.JournalEntries != 10 {
		t.Errorf("JournalEntries = %d, want 10", r.JournalEntries)
	}
	if r.EventsAttended != 2 {
		t.Errorf("EventsAttended = %d, want 2", r.EventsAttended)
	}
	if r.CommunitiesJoined != 3 {
		t.Errorf("CommunitiesJoined = %d, want 3", r.CommunitiesJoined)
	}
	if r.PointsEarned != 120 {
		t.Errorf("PointsEarned = %d, want 120", r.PointsEarned)
	}
}

func TestAssemble_SocialConnectionsScaleWithCommunities(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		r := Assemble("u1", time.January, 2026, Inputs{Communities: communities(n)})
		if r.SocialConnections != n*5 {
			t.Errorf("communities=%d: SocialConnections = %d, want %d", n, r.SocialConnections, n*5)
		}
	}
}

func TestTopMoments(t *testing.T) {
	tests := []struct {
		name   string
		events int
		points int
		want   int
	}{
		{"quiet month still gets closing moment", 0, 50, 1},
		{"events only", 2, 50, 2},
		{"milestone only", 0, 350, 2},
		{"events and milestone", 5, 350, 3},
		{"milestone boundary is exclusive", 0, 300, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := topMoments(tt.events, tt.points)
			if len(got) != tt.want {
				t.Fatalf("topMoments(%d, %d) = %v, want %d moments", tt.events, tt.points, got, tt.want)
			}
			if got[len(got)-1] != "Built meaningful connections in your communities" {
				t.Errorf("closing moment missing or out of order: %v", got)
			}
		})
	}
}

func TestRecommendations_OrderAndCount(t *testing.T) {
	got := recommendations(10, 2)
	want := []string{
		"Try a daily mood check-in to build a richer picture of your weeks",
		"Attend a few more community events, they tend to lift the rest of the week",
		"Explore a new interest or hobby this month",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("recommendations(10, 2) = %v, want %v", got, want)
	}
}

func TestRecommendations_Thresholds(t *testing.T) {
	tests := []struct {
		name    string
		entries int
		events  int
		want    int
	}{
		{"busy month keeps only closing", 20, 6, 1},
		{"entry threshold is exclusive at 15", 15, 6, 1},
		{"event threshold is exclusive at 4", 20, 4, 1},
		{"few entries", 5, 6, 2},
		{"few events", 20, 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recommendations(tt.entries, tt.events)
			if len(got) != tt.want {
				t.Fatalf("recommendations(%d, %d) = %v, want %d", tt.entries, tt.events, got, tt.want)
			}
		})
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	in := Inputs{
		MoodHistory: []storage.MoodSample{{Mood: "sad"}, {Mood: "happy"}, {Mood: "happy"}},
		Entries:     entries(3),
		Events:      events(1),
		Communities: communities(2),
		Points:      310,
	}

	first := Assemble("u1", time.June, 2026, in)
	for i := 0; i < 5; i++ {
		if got := Assemble("u1", time.June, 2026, in); !reflect.DeepEqual(got, first) {
			t.Fatalf("assembly not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestAssemble_EmptySignals(t *testing.T) {
	r := Assemble("u1", time.February, 2026, Inputs{})

	if r.MoodTrend != "stable" {
		t.Errorf("MoodTrend = %q, want stable", r.MoodTrend)
	}
	if r.EmotionalSummary == "" {
		t.Error("EmotionalSummary empty for fresh user")
	}
	if len(r.TopMoments) != 1 || len(r.Recommendations) != 3 {
		t.Errorf("fresh user moments/recs = %d/%d, want 1/3", len(r.TopMoments), len(r.Recommendations))
	}
}

type mockSignals struct {
	moods       []storage.MoodSample
	entries     []storage.JournalEntry
	events      []storage.EventAttendance
	communities []storage.CommunityMembership
	points      int

	moodErr   error
	pointsErr error
}

func (m *mockSignals) MoodHistory(string) ([]storage.MoodSample, error) {
	return m.moods, m.moodErr
}

func (m *mockSignals) ListJournalEntries(string, int) ([]storage.JournalEntry, error) {
	return m.entries, nil
}

func (m *mockSignals) AttendedEvents(string) ([]storage.EventAttendance, error) {
	return m.events, nil
}

func (m *mockSignals) JoinedCommunities(string) ([]storage.CommunityMembership, error) {
	return m.communities, nil
}

func (m *mockSignals) Points(string) (int, error) {
	return m.points, m.pointsErr
}

func TestGenerator_Monthly(t *testing.T) {
	src := &mockSignals{
		moods:       []storage.MoodSample{{Mood: "happy"}},
		entries:     entries(4),
		events:      events(5),
		communities: communities(1),
		points:      350,
	}

	r, err := NewGenerator(src).Monthly(context.Background(), "u1", time.April, 2026)
	if err != nil {
		t.Fatalf("Monthly: %v", err)
	}
	if r.EventsAttended != 5 || r.PointsEarned != 350 {
		t.Fatalf("unexpected report: %+v", r)
	}
	if len(r.TopMoments) != 3 {
		t.Errorf("TopMoments = %v, want 3 entries", r.TopMoments)
	}
}

func TestGenerator_Monthly_StoreFailure(t *testing.T) {
	src := &mockSignals{moodErr: errors.New("disk gone")}

	_, err := NewGenerator(src).Monthly(context.Background(), "u1", time.April, 2026)
	if !errors.Is(err, ErrSignalSource) {
		t.Fatalf("err = %v, want ErrSignalSource", err)
	}
}

func TestGenerator_Monthly_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGenerator(&mockSignals{}).Monthly(ctx, "u1", time.April, 2026)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestGenerator_Monthly_SignalSourceWrapsCause(t *testing.T) {
	src := &mockSignals{pointsErr: errors.New("locked")}

	_, err := NewGenerator(src).Monthly(context.Background(), "u1", time.April, 2026)
	if err == nil || !errors.Is(err, ErrSignalSource) {
		t.Fatalf("err = %v, want ErrSignalSource", err)
	}
}

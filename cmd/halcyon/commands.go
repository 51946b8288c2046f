package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomassen/halcyon/internal/config"
)

// --- journal ---

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage journal entries",
}

var journalAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a journal entry",
	Long: `Add a journal entry and queue it for analysis.

Examples:
  halcyon journal add "Went surfing with Maya, felt amazing afterwards"
  halcyon journal add --sync "Rough day at work"
  halcyon journal add --voice "transcribed voice memo text"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		voice, _ := cmd.Flags().GetBool("voice")
		sync, _ := cmd.Flags().GetBool("sync")

		entryType := "text"
		if voice {
			entryType = "voice"
		}
		analyze := "async"
		if sync {
			analyze = "sync"
		}

		req := map[string]any{
			"user_id": user,
			"type":    entryType,
			"content": strings.Join(args, " "),
			"analyze": analyze,
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/journal", req)
		if err != nil {
			return err
		}

		var result struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Insight *struct {
				Emotions   []string `json:"emotions"`
				Activities []string `json:"activities"`
				Comments   []string `json:"comments"`
			} `json:"insight"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Insight != nil {
			printSuccess("Saved entry %s", result.ID)
			printInsight(result.Insight.Emotions, result.Insight.Activities, result.Insight.Comments)
			return nil
		}
		printSuccess("Saved entry %s (analysis queued)", result.ID)
		return nil
	},
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/journal?user_id=%s&limit=%d", url.QueryEscape(user), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var entries []struct {
			ID        string    `json:"id"`
			Type      string    `json:"type"`
			Content   string    `json:"content"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No journal entries found.")
			return nil
		}

		for _, e := range entries {
			content := e.Content
			if len(content) > 80 {
				content = content[:80] + "..."
			}
			fmt.Printf("%s  %s  %s\n",
				colorize(colorCyan, e.ID[:8]),
				e.CreatedAt.Format("2006-01-02 15:04"),
				content,
			)
		}
		return nil
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/journal/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var entry any
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var journalDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a journal entry and its derived data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/journal/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted entry %s", args[0])
		return nil
	},
}

var journalInsightCmd = &cobra.Command{
	Use:   "insight <id>",
	Short: "Show the extracted insight for an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/journal/"+url.PathEscape(args[0])+"/insight")
		if err != nil {
			return err
		}

		var ins struct {
			Emotions   []string `json:"emotions"`
			Activities []string `json:"activities"`
			Comments   []string `json:"comments"`
		}
		if err := decodeJSON(resp, &ins); err != nil {
			return err
		}

		printInsight(ins.Emotions, ins.Activities, ins.Comments)
		return nil
	},
}

func printInsight(emotions, activities, comments []string) {
	printStatus("Emotions", "%s", strings.Join(emotions, ", "))
	printStatus("Activities", "%s", strings.Join(activities, ", "))
	for _, c := range comments {
		fmt.Printf("  %s\n", colorize(colorCyan, "• "+c))
	}
}

func init() {
	journalAddCmd.Flags().String("user", localUserID, "user the entry belongs to")
	journalAddCmd.Flags().Bool("voice", false, "mark the entry as a transcribed voice memo")
	journalAddCmd.Flags().Bool("sync", false, "wait for analysis instead of queueing it")
	journalListCmd.Flags().String("user", localUserID, "user whose entries to list")
	journalListCmd.Flags().Int("limit", 20, "maximum number of entries to list")

	journalCmd.AddCommand(journalAddCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalDeleteCmd)
	journalCmd.AddCommand(journalInsightCmd)
}

// --- mood ---

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Log and review self-reported moods",
}

var moodLogCmd = &cobra.Command{
	Use:   "log <mood>",
	Short: "Log your current mood (stressed, sad, neutral, happy, amazing)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/moods", map[string]string{
			"user_id": user,
			"mood":    args[0],
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Logged mood %q", args[0])
		return nil
	},
}

var moodHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded moods, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/moods?user_id="+url.QueryEscape(user))
		if err != nil {
			return err
		}

		var samples []struct {
			Mood       string    `json:"mood"`
			RecordedAt time.Time `json:"recorded_at"`
		}
		if err := decodeJSON(resp, &samples); err != nil {
			return err
		}

		if len(samples) == 0 {
			fmt.Println("No moods recorded yet.")
			return nil
		}

		for _, s := range samples {
			fmt.Printf("%s  %s\n", s.RecordedAt.Format("2006-01-02 15:04"), colorize(colorBold, s.Mood))
		}
		return nil
	},
}

func init() {
	moodLogCmd.Flags().String("user", localUserID, "user the mood belongs to")
	moodHistoryCmd.Flags().String("user", localUserID, "user whose moods to show")

	moodCmd.AddCommand(moodLogCmd)
	moodCmd.AddCommand(moodHistoryCmd)
}

// --- event / community / points ---

var eventCmd = &cobra.Command{
	Use:   "event <name>",
	Short: "Record an attended event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/events", map[string]string{
			"user_id":    user,
			"event_name": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded event %q", strings.Join(args, " "))
		return nil
	},
}

var communityCmd = &cobra.Command{
	Use:   "community <name>",
	Short: "Record joining a community",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/communities", map[string]string{
			"user_id":        user,
			"community_name": strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Joined community %q", strings.Join(args, " "))
		return nil
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points <amount>",
	Short: "Award engagement points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		reason, _ := cmd.Flags().GetString("reason")

		amount, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("amount must be a number: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/points", map[string]any{
			"user_id": user,
			"points":  amount,
			"reason":  reason,
		})
		if err != nil {
			return err
		}

		var result struct {
			Total int `json:"total"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Awarded %d points (total %d)", amount, result.Total)
		return nil
	},
}

func init() {
	eventCmd.Flags().String("user", localUserID, "user who attended the event")
	communityCmd.Flags().String("user", localUserID, "user who joined the community")
	pointsCmd.Flags().String("user", localUserID, "user to award points to")
	pointsCmd.Flags().String("reason", "", "why the points were awarded")
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <year> <month>",
	Short: "Show the monthly wellbeing report",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/reports/%s/%s?user_id=%s",
			url.PathEscape(args[0]), url.PathEscape(args[1]), url.QueryEscape(user))
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var rep struct {
			Month             int      `json:"month"`
			Year              int      `json:"year"`
			EventsAttended    int      `json:"events_attended"`
			CommunitiesJoined int      `json:"communities_joined"`
			PointsEarned      int      `json:"points_earned"`
			JournalEntries    int      `json:"journal_entries"`
			MoodTrend         string   `json:"mood_trend"`
			TopMoments        []string `json:"top_moments"`
			EmotionalSummary  string   `json:"emotional_summary"`
			SocialConnections int      `json:"social_connections"`
			Recommendations   []string `json:"recommendations"`
		}
		if err := decodeJSON(resp, &rep); err != nil {
			return err
		}

		fmt.Println(colorize(colorBold, fmt.Sprintf("Wellbeing report for %s %d", time.Month(rep.Month), rep.Year)))
		printStatus("Mood trend", "%s", rep.MoodTrend)
		printStatus("Summary", "%s", rep.EmotionalSummary)
		printStatus("Journal entries", "%d", rep.JournalEntries)
		printStatus("Events attended", "%d", rep.EventsAttended)
		printStatus("Communities joined", "%d", rep.CommunitiesJoined)
		printStatus("Points earned", "%d", rep.PointsEarned)
		printStatus("Social connections", "%d", rep.SocialConnections)

		fmt.Println(colorize(colorBold, "Top moments"))
		for _, m := range rep.TopMoments {
			fmt.Printf("  • %s\n", m)
		}
		fmt.Println(colorize(colorBold, "Recommendations"))
		for _, r := range rep.Recommendations {
			fmt.Printf("  • %s\n", r)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().String("user", localUserID, "user to build the report for")
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Semantic search over past journal entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/recall?user_id=%s&query=%s&limit=%d",
			url.QueryEscape(user), url.QueryEscape(query), limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var results []struct {
			EntryID   string    `json:"entry_id"`
			Text      string    `json:"text"`
			Score     float32   `json:"score"`
			CreatedAt time.Time `json:"created_at"`
		}
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No matching entries found.")
			return nil
		}

		for i, r := range results {
			fmt.Printf("\n%s [score: %.3f, %s]\n",
				colorize(colorBold, fmt.Sprintf("Memory %d", i+1)),
				r.Score,
				r.CreatedAt.Format("2006-01-02"),
			)
			text := r.Text
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			fmt.Printf("  %s\n", text)
		}
		return nil
	},
}

func init() {
	recallCmd.Flags().String("user", localUserID, "user whose entries to search")
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import journal entries from a text, HTML, or PDF file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s (%d bytes)", args[0], len(data))
		resp, err := client.post(cmd.Context(), "/import", map[string]string{
			"user_id":  user,
			"filename": filepath.Base(args[0]),
			"content":  base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return err
		}

		var result struct {
			Entries int `json:"entries"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Imported %d entries, analysis queued", result.Entries)
		return nil
	},
}

func init() {
	importCmd.Flags().String("user", localUserID, "user to import entries for")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

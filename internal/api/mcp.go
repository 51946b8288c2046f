package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tomassen/halcyon/internal/analysis"
	"github.com/tomassen/halcyon/internal/storage"
	"github.com/tomassen/halcyon/internal/trend"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store    *storage.Store
	Reports  ReportGenerator
	Recaller Recaller // optional; if nil, recall returns an error
	UserID   string   // the local default user served over MCP
	TopK     int
}

// NewMCPServer creates an MCP server with all halcyon tools and resources
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"halcyon",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("halcyon is a local wellbeing journal: store entries and moods, recall past days, and build monthly reports."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("add_journal_entry",
			mcp.WithDescription("Store a journal entry describing the user's day and queue it for emotion and activity extraction."),
			mcp.WithString("content", mcp.Description("The journal text"), mcp.Required()),
			mcp.WithString("type", mcp.Description("Entry type: text (default) or voice for transcribed speech")),
		),
		mcpAddJournalEntry(deps),
	)

	s.AddTool(
		mcp.NewTool("log_mood",
			mcp.WithDescription("Record the user's current mood. Known moods: stressed, sad, neutral, happy, amazing."),
			mcp.WithString("mood", mcp.Description("Mood label"), mcp.Required()),
		),
		mcpLogMood(deps),
	)

	s.AddTool(
		mcp.NewTool("monthly_report",
			mcp.WithDescription("Build the wellbeing report for a given month: counts, mood trend, top moments, and recommendations."),
			mcp.WithNumber("year", mcp.Description("Report year"), mcp.Required()),
			mcp.WithNumber("month", mcp.Description("Report month (1-12)"), mcp.Required()),
		),
		mcpMonthlyReport(deps),
	)

	s.AddTool(
		mcp.NewTool("recall",
			mcp.WithDescription("Semantically search past journal entries and return the most relevant fragments."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpRecall(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"wellbeing://mood",
			"Mood Summary",
			mcp.WithResourceDescription("Current mood trend and emotional summary as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceMood(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"wellbeing://recent",
			"Recent Journal Entries",
			mcp.WithResourceDescription("Last 10 journal entries (truncated)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpAddJournalEntry(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}

		entryType := req.GetString("type", storage.EntryTypeText)
		if entryType != storage.EntryTypeText && entryType != storage.EntryTypeVoice {
			return mcpError(fmt.Sprintf("unknown entry type %q", entryType)), nil
		}

		entry := storage.JournalEntry{
			ID:      uuid.New().String(),
			UserID:  deps.UserID,
			Type:    entryType,
			Content: content,
		}
		if err := deps.Store.CreateJournalEntry(entry); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}

		if err := analysis.Enqueue(deps.Store, entry.ID); err != nil {
			return mcpError(fmt.Sprintf("saved entry but failed to queue analysis: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Stored journal entry %s", entry.ID)), nil
	}
}

func mcpLogMood(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mood, err := req.RequireString("mood")
		if err != nil {
			return mcpError("mood is required"), nil
		}

		sample := storage.MoodSample{
			ID:     uuid.New().String(),
			UserID: deps.UserID,
			Mood:   mood,
		}
		if err := deps.Store.AddMoodSample(sample); err != nil {
			return mcpError(fmt.Sprintf("failed to log mood: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Logged mood %q", mood)), nil
	}
}

func mcpMonthlyReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		year, err := req.RequireInt("year")
		if err != nil {
			return mcpError("year is required"), nil
		}
		month, err := req.RequireInt("month")
		if err != nil {
			return mcpError("month is required"), nil
		}
		if month < 1 || month > 12 {
			return mcpError("month must be between 1 and 12"), nil
		}

		rep, err := deps.Reports.Monthly(ctx, deps.UserID, time.Month(month), year)
		if err != nil {
			return mcpError(fmt.Sprintf("report unavailable: %v", err)), nil
		}

		b, err := json.Marshal(rep)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecall(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Recaller == nil {
			return mcpError("recall not available: no embedding model configured"), nil
		}

		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", deps.TopK)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		memories, err := deps.Recaller.Recall(ctx, deps.UserID, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("recall failed: %v", err)), nil
		}

		if len(memories) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(memories)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceMood(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		samples, err := deps.Store.MoodHistory(deps.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load mood history: %w", err)
		}

		moods := make([]string, len(samples))
		for i, s := range samples {
			moods[i] = s.Mood
		}

		b, err := json.Marshal(map[string]string{
			"trend":   string(trend.Classify(moods)),
			"summary": trend.Summarize(moods),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal mood summary: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListJournalEntries(deps.UserID, 10)
		if err != nil {
			return nil, fmt.Errorf("failed to load recent entries: %w", err)
		}

		type entrySummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Content   string `json:"content"`
		}

		summaries := make([]entrySummary, len(entries))
		for i, e := range entries {
			content := e.Content
			if utf8.RuneCountInString(content) > 200 {
				runes := []rune(content)
				content = string(runes[:200]) + "..."
			}
			summaries[i] = entrySummary{
				ID:        e.ID,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
				Content:   content,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal entries: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

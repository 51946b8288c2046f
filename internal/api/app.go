package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tomassen/halcyon/internal/analysis"
	"github.com/tomassen/halcyon/internal/insight"
	"github.com/tomassen/halcyon/internal/report"
	"github.com/tomassen/halcyon/internal/retrieval"
	"github.com/tomassen/halcyon/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB
const maxImportBodySize = 20 << 20 // 20MB

// EntryAnalyzer runs synchronous extraction for the API layer.
type EntryAnalyzer interface {
	Analyze(ctx context.Context, entryText string) (insight.Record, error)
}

// ReportGenerator assembles monthly reports.
type ReportGenerator interface {
	Monthly(ctx context.Context, userID string, month time.Month, year int) (report.MonthlyReport, error)
}

// Recaller abstracts semantic recall and vector cleanup.
type Recaller interface {
	Recall(ctx context.Context, userID, query string, topK int) ([]retrieval.Memory, error)
	Forget(entryID string) error
}

// FileImporter bulk-loads journal entries from an uploaded file.
type FileImporter interface {
	Import(ctx context.Context, userID, path string, r io.Reader) (int, error)
}

type AppDeps struct {
	Store    *storage.Store
	Analyzer EntryAnalyzer
	Reports  ReportGenerator
	Recaller Recaller // optional; if nil, recall returns 503 and vector cleanup is skipped
	Importer FileImporter
	Token    string
	TopK     int
}

func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/journal", handleCreateEntry(deps))
		r.Get("/journal", handleListEntries(deps))
		r.Get("/journal/{id}", handleGetEntry(deps))
		r.Delete("/journal/{id}", handleDeleteEntry(deps))
		r.Get("/journal/{id}/insight", handleGetInsight(deps))

		r.Post("/moods", handleLogMood(deps))
		r.Get("/moods", handleMoodHistory(deps))
		r.Post("/events", handleLogEvent(deps))
		r.Post("/communities", handleJoinCommunity(deps))
		r.Post("/points", handleAwardPoints(deps))

		r.Get("/reports/{year}/{month}", handleMonthlyReport(deps))
		r.Get("/recall", handleRecall(deps))
		r.Post("/import", handleImport(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type createEntryRequest struct {
	UserID  string `json:"user_id"`
	Type    string `json:"type"`
	Content string `json:"content"`
	Analyze string `json:"analyze"` // "sync" or "async" (default)
}

type entryResponse struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      string           `json:"type"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Insight   *insightResponse `json:"insight,omitempty"`
	Status    string           `json:"status,omitempty"`
}

type insightResponse struct {
	Emotions   []string `json:"emotions"`
	Activities []string `json:"activities"`
	Comments   []string `json:"comments"`
}

func handleCreateEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "content is required")
			return
		}
		if req.Type == "" {
			req.Type = storage.EntryTypeText
		}
		if req.Type != storage.EntryTypeText && req.Type != storage.EntryTypeVoice {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "type must be %q or %q", storage.EntryTypeText, storage.EntryTypeVoice)
			return
		}

		entry := storage.JournalEntry{
			ID:      uuid.New().String(),
			UserID:  req.UserID,
			Type:    req.Type,
			Content: req.Content,
		}
		if err := deps.Store.CreateJournalEntry(entry); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save entry: %v", err)
			return
		}

		resp := entryResponse{
			ID:      entry.ID,
			UserID:  entry.UserID,
			Type:    entry.Type,
			Content: entry.Content,
		}

		if req.Analyze == "sync" {
			rec, err := deps.Analyzer.Analyze(r.Context(), entry.Content)
			if err != nil {
				// The entry itself is stored; only the analysis is unavailable.
				httpError(w, http.StatusBadGateway, "api_error", "analysis unavailable: %v", err)
				return
			}
			ins := storage.Insight{
				ID:         uuid.New().String(),
				EntryID:    entry.ID,
				UserID:     entry.UserID,
				Emotions:   rec.Emotions,
				Activities: rec.Activities,
				Comments:   rec.Comments,
			}
			if err := deps.Store.SaveInsight(ins); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to save insight: %v", err)
				return
			}
			resp.Insight = &insightResponse{
				Emotions:   rec.Emotions,
				Activities: rec.Activities,
				Comments:   rec.Comments,
			}
			resp.Status = "analyzed"
		} else {
			if err := analysis.Enqueue(deps.Store, entry.ID); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue analysis: %v", err)
				return
			}
			resp.Status = "queued"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleListEntries(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		entries, err := deps.Store.ListJournalEntries(userID, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list entries: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.JournalEntry{}
		}

		resp := make([]entryResponse, len(entries))
		for i, e := range entries {
			resp[i] = entryResponse{
				ID:        e.ID,
				UserID:    e.UserID,
				Type:      e.Type,
				Content:   e.Content,
				CreatedAt: e.CreatedAt,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleGetEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		entry, err := deps.Store.GetJournalEntry(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get entry: %v", err)
			return
		}

		resp := entryResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Type:      entry.Type,
			Content:   entry.Content,
			CreatedAt: entry.CreatedAt,
		}
		if ins, err := deps.Store.GetInsight(id); err == nil {
			resp.Insight = &insightResponse{
				Emotions:   ins.Emotions,
				Activities: ins.Activities,
				Comments:   ins.Comments,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleDeleteEntry(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if deps.Recaller != nil {
			// Dropping vectors before the entry keeps recall from surfacing
			// fragments of a deleted entry.
			_ = deps.Recaller.Forget(id)
		}

		err := deps.Store.DeleteJournalEntry(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete entry: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func handleGetInsight(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		ins, err := deps.Store.GetInsight(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "no insight for entry")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get insight: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(insightResponse{
			Emotions:   ins.Emotions,
			Activities: ins.Activities,
			Comments:   ins.Comments,
		})
	}
}

type logMoodRequest struct {
	UserID string `json:"user_id"`
	Mood   string `json:"mood"`
}

func handleLogMood(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req logMoodRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.Mood == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and mood are required")
			return
		}

		sample := storage.MoodSample{
			ID:     uuid.New().String(),
			UserID: req.UserID,
			Mood:   req.Mood,
		}
		if err := deps.Store.AddMoodSample(sample); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log mood: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": sample.ID, "status": "logged"})
	}
}

type moodSampleResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Mood       string    `json:"mood"`
	RecordedAt time.Time `json:"recorded_at"`
}

func handleMoodHistory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		samples, err := deps.Store.MoodHistory(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load mood history: %v", err)
			return
		}

		resp := make([]moodSampleResponse, len(samples))
		for i, s := range samples {
			resp[i] = moodSampleResponse{
				ID:         s.ID,
				UserID:     s.UserID,
				Mood:       s.Mood,
				RecordedAt: s.RecordedAt,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

type logEventRequest struct {
	UserID    string `json:"user_id"`
	EventName string `json:"event_name"`
}

func handleLogEvent(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req logEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.EventName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and event_name are required")
			return
		}

		att := storage.EventAttendance{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			EventName: req.EventName,
		}
		if err := deps.Store.AddEventAttendance(att); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to log event: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": att.ID, "status": "logged"})
	}
}

type joinCommunityRequest struct {
	UserID        string `json:"user_id"`
	CommunityName string `json:"community_name"`
}

func handleJoinCommunity(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req joinCommunityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.CommunityName == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and community_name are required")
			return
		}

		m := storage.CommunityMembership{
			ID:            uuid.New().String(),
			UserID:        req.UserID,
			CommunityName: req.CommunityName,
		}
		if err := deps.Store.AddCommunityMembership(m); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to record membership: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": m.ID, "status": "joined"})
	}
}

type awardPointsRequest struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

func handleAwardPoints(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req awardPointsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Points <= 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "points must be positive")
			return
		}

		award := storage.PointsAward{
			ID:     uuid.New().String(),
			UserID: req.UserID,
			Points: req.Points,
			Reason: req.Reason,
		}
		if err := deps.Store.AddPointsAward(award); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to award points: %v", err)
			return
		}

		total, err := deps.Store.Points(req.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to read points total: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": award.ID, "total": total})
	}
}

func handleMonthlyReport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		year, err := strconv.Atoi(chi.URLParam(r, "year"))
		if err != nil || year < 1970 || year > 9999 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid year")
			return
		}
		monthNum, err := strconv.Atoi(chi.URLParam(r, "month"))
		if err != nil || monthNum < 1 || monthNum > 12 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid month")
			return
		}

		rep, err := deps.Reports.Monthly(r.Context(), userID, time.Month(monthNum), year)
		if errors.Is(err, report.ErrSignalSource) {
			httpError(w, http.StatusBadGateway, "api_error", "report unavailable: %v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to build report: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rep)
	}
}

func handleRecall(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Recaller == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "recall not available")
			return
		}

		userID := r.URL.Query().Get("user_id")
		query := r.URL.Query().Get("query")
		if userID == "" || query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id and query are required")
			return
		}
		limit := parseIntParam(r, "limit", deps.TopK, 50)
		if limit <= 0 {
			limit = 5
		}

		memories, err := deps.Recaller.Recall(r.Context(), userID, query, limit)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "recall failed: %v", err)
			return
		}
		if memories == nil {
			memories = []retrieval.Memory{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(memories)
	}
}

type importRequest struct {
	UserID   string `json:"user_id"`
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64-encoded file body
}

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" || req.Filename == "" || req.Content == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id, filename, and content are required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content")
			return
		}

		// PDF extraction needs a seekable file on disk.
		path, cleanup, err := spoolUpload(req.Filename, decoded)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to stage upload: %v", err)
			return
		}
		defer cleanup()

		count, err := deps.Importer.Import(r.Context(), req.UserID, path, bytes.NewReader(decoded))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "import failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"entries": count, "status": "imported"})
	}
}

func spoolUpload(filename string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "halcyon-import-*"+filepath.Ext(filename))
	if err != nil {
		return "", nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

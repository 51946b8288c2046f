package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tomassen/halcyon/internal/ollama"
)

// Chatter is the interface for chat completion against the local model
// runtime. Implemented by *ollama.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonSchema *ollama.Schema) (string, error)
}

// requiredKeys are the only keys a valid extraction response may need.
// Anything beyond these is tolerated but logged as policy drift.
var requiredKeys = []string{"detected_emotions", "detected_activities", "comments"}

// excludedActivities maps each generic routine term to its lexical variants.
// The instruction already tells the model to exclude these; this filter is
// the in-code safety net against a non-compliant response.
var excludedActivities = map[string]struct{}{
	"work":            {},
	"working":         {},
	"worked":          {},
	"study":           {},
	"studying":        {},
	"studied":         {},
	"code":            {},
	"coding":          {},
	"coded":           {},
	"class":           {},
	"attending class": {},
	"attended class":  {},
	"lunch":           {},
	"having lunch":    {},
	"had lunch":       {},
}

// Analyzer converts one journal entry's raw text into a validated Record
// via the extraction service. It performs no retries; retry policy belongs
// to the caller, as does the timeout on ctx.
type Analyzer struct {
	client Chatter
	model  string
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer using the given chat client and model name.
func NewAnalyzer(client Chatter, model string) *Analyzer {
	return &Analyzer{client: client, model: model, logger: slog.Default()}
}

// Analyze runs extraction on the entry text and validates the response into
// a Record. A malformed response (unparseable, missing key, wrong value
// type) fails with ErrExtraction; a well-formed response with empty lists is
// valid. On failure no Record is returned, so nothing partial can be stored.
func (a *Analyzer) Analyze(ctx context.Context, entryText string) (Record, error) {
	if strings.TrimSpace(entryText) == "" {
		return Record{}, fmt.Errorf("entry text is empty")
	}

	raw, err := a.client.Chat(ctx, a.model, BuildPrompt(entryText), responseSchema())
	if err != nil {
		return Record{}, fmt.Errorf("extraction call: %w", err)
	}

	return a.validate(raw)
}

// validate enforces the three-key contract on a raw service response.
func (a *Analyzer) validate(raw string) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Record{}, fmt.Errorf("%w: parsing response: %v", ErrExtraction, err)
	}

	lists := make(map[string][]string, len(requiredKeys))
	for _, key := range requiredKeys {
		val, ok := fields[key]
		if !ok {
			return Record{}, fmt.Errorf("%w: missing key %q", ErrExtraction, key)
		}
		if bytes.Equal(bytes.TrimSpace(val), []byte("null")) {
			return Record{}, fmt.Errorf("%w: key %q is null", ErrExtraction, key)
		}
		var list []string
		if err := json.Unmarshal(val, &list); err != nil {
			return Record{}, fmt.Errorf("%w: key %q is not a list of strings", ErrExtraction, key)
		}
		lists[key] = list
	}

	if len(fields) > len(requiredKeys) {
		extra := make([]string, 0, len(fields)-len(requiredKeys))
		for k := range fields {
			if k != "detected_emotions" && k != "detected_activities" && k != "comments" {
				extra = append(extra, k)
			}
		}
		a.logger.Warn("extraction returned unexpected keys", "keys", extra)
	}

	return Record{
		Emotions:   normalizeLabels(lists["detected_emotions"]),
		Activities: filterActivities(normalizeLabels(lists["detected_activities"])),
		Comments:   normalizeComments(lists["comments"]),
	}, nil
}

// normalizeLabels lowercases, trims, and deduplicates while preserving order.
func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// normalizeComments trims and deduplicates but keeps the original casing;
// comments are user-facing sentences, not labels.
func normalizeComments(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// filterActivities drops exact matches of the exclusion set. Specific
// phrases that merely contain a routine word ("lunch with friends") pass.
func filterActivities(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, excluded := excludedActivities[s]; excluded {
			continue
		}
		out = append(out, s)
	}
	return out
}

package insight

import (
	"github.com/tomassen/halcyon/internal/ollama"
)

const systemPrompt = `You are an emotional-signal extraction engine for a personal wellbeing journal. Analyze the journal entry and respond with ONLY a single valid JSON object conforming to the provided schema. No prose, no markdown.

The object has exactly three keys, all lowercase, all lists of strings:

"detected_emotions":
- Only emotions explicitly stated or strongly implied by the text.
- Never fabricate an emotion that is not in the text.
- Lowercase single words or short phrases, no duplicates.

"detected_activities":
- Only social activities, specific recreational or physical activities, or notable non-routine experiences.
- EXCLUDE generic routine terms: working, studying, coding, attending class, having lunch.
- Prefer specific phrasing: "dinner with friends" over "dinner".
- No duplicates.

"comments":
- Only when at least one detected activity is clearly positive, energizing, socially fulfilling, or emotionally beneficial.
- Each comment is short, encouraging, and actionable (e.g. suggest making the activity a tracked habit).
- If no such activity was detected, return an empty list. Never pad with filler.`

// BuildPrompt constructs the chat messages for analyzing one journal entry.
func BuildPrompt(entryText string) []ollama.Message {
	return []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: entryText},
	}
}

// responseSchema constrains the model to the three-key structured output.
func responseSchema() *ollama.Schema {
	stringList := ollama.SchemaProperty{Type: "array", Items: &ollama.Items{Type: "string"}}
	return &ollama.Schema{
		Type: "object",
		Properties: map[string]ollama.SchemaProperty{
			"detected_emotions":   stringList,
			"detected_activities": stringList,
			"comments":            stringList,
		},
		Required: []string{"detected_emotions", "detected_activities", "comments"},
	}
}

package insight

import (
	"strings"
	"testing"
)

func TestBuildPrompt_Shape(t *testing.T) {
	msgs := BuildPrompt("went climbing after work")

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Errorf("roles = %s, %s; want system, user", msgs[0].Role, msgs[1].Role)
	}
	if msgs[1].Content != "went climbing after work" {
		t.Errorf("entry text altered: %q", msgs[1].Content)
	}
}

func TestSystemPrompt_StatesExclusions(t *testing.T) {
	// The exclusion list is part of the service contract; the instruction
	// must carry it even though validation also enforces it.
	for _, term := range []string{"working", "studying", "coding", "attending class", "having lunch"} {
		if !strings.Contains(systemPrompt, term) {
			t.Errorf("system prompt missing exclusion term %q", term)
		}
	}
}

func TestResponseSchema_RequiresAllKeys(t *testing.T) {
	s := responseSchema()

	if len(s.Required) != 3 {
		t.Fatalf("got %d required keys, want 3", len(s.Required))
	}
	for _, key := range []string{"detected_emotions", "detected_activities", "comments"} {
		prop, ok := s.Properties[key]
		if !ok {
			t.Errorf("schema missing property %q", key)
			continue
		}
		if prop.Type != "array" || prop.Items == nil || prop.Items.Type != "string" {
			t.Errorf("property %q is not a string array", key)
		}
	}
}

package adapter

import (
	"testing"

	"github.com/tmanole/chatgate/internal/types"
)

func history() []types.Message {
	return []types.Message{
		types.NewTextMessage(types.RoleUser, "hello"),
		types.NewTextMessage(types.RoleAssistant, "hi there"),
	}
}

func TestSystemRoleDefault(t *testing.T) {
	a := New()

	out := a.Format("anthropic/claude-3.5-sonnet", "be brief", history())
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if out[0].Role != types.RoleSystem || out[0].Content.Text != "be brief" {
		t.Errorf("expected leading system message, got %+v", out[0])
	}
	if out[1].Content.Text != "hello" {
		t.Errorf("history should be unchanged, got %+v", out[1])
	}
}

func TestSystemRoleEmptyPrompt(t *testing.T) {
	a := New()

	out := a.Format("anthropic/claude-3.5-sonnet", "", history())
	if len(out) != 2 {
		t.Fatalf("expected history unchanged, got %d messages", len(out))
	}
}

func TestExactMatchBeatsPrefix(t *testing.T) {
	marker := stubStrategy{}
	a := NewWithRules(
		map[string]Strategy{"openai/o1-mini": marker},
		[]PrefixStrategy{{Prefix: "openai/", Strategy: SystemRole{}}},
		SystemRole{},
	)

	out := a.Format("openai/o1-mini", "sys", history())
	if len(out) != 0 {
		t.Error("expected exact-match strategy to be selected")
	}
}

func TestLongestPrefixWins(t *testing.T) {
	short := stubStrategy{}
	long := NoSystemRole{}
	a := NewWithRules(nil,
		[]PrefixStrategy{
			{Prefix: "google/", Strategy: short},
			{Prefix: "google/gemma", Strategy: long},
		},
		SystemRole{},
	)

	out := a.Format("google/gemma-2-9b", "sys", history())
	// NoSystemRole splices rather than returning nothing.
	if len(out) != 2 || out[0].Content.Text != "sys\n\nhello" {
		t.Errorf("expected longest prefix (splice) strategy, got %+v", out)
	}
}

func TestNoSystemRoleSplicesPlainText(t *testing.T) {
	out := NoSystemRole{}.Format("be brief", history())
	if out[0].Content.Text != "be brief\n\nhello" {
		t.Errorf("expected spliced prompt, got %q", out[0].Content.Text)
	}
	// Input history must not be mutated.
	h := history()
	NoSystemRole{}.Format("x", h)
	if h[0].Content.Text != "hello" {
		t.Error("input slice was mutated")
	}
}

func TestNoSystemRoleSplicesMultimodal(t *testing.T) {
	msgs := []types.Message{
		{Role: types.RoleUser, Content: types.Content{Parts: []types.ContentPart{
			{Type: types.ContentTypeText, Text: "what is this?"},
			{Type: types.ContentTypeImageURL, ImageURL: &types.ImageURL{URL: "https://example.com/cat.png"}},
		}}},
	}

	out := NoSystemRole{}.Format("be brief", msgs)
	parts := out[0].Content.Parts
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(parts))
	}
	if parts[0].Type != types.ContentTypeText || parts[0].Text != "be brief" {
		t.Errorf("expected leading text part with system prompt, got %+v", parts[0])
	}
	if parts[2].ImageURL == nil {
		t.Error("image part should be preserved")
	}
}

func TestNoSystemRoleDropsPromptWhenFirstNotUser(t *testing.T) {
	msgs := []types.Message{
		types.NewTextMessage(types.RoleAssistant, "welcome!"),
		types.NewTextMessage(types.RoleUser, "hi"),
	}

	// Documented behavior: the system prompt is dropped silently.
	out := NoSystemRole{}.Format("be brief", msgs)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if out[0].Content.Text != "welcome!" || out[1].Content.Text != "hi" {
		t.Errorf("expected history untouched, got %+v", out)
	}
}

// stubStrategy returns an empty message list so tests can detect selection.
type stubStrategy struct{}

func (stubStrategy) Format(string, []types.Message) []types.Message { return nil }

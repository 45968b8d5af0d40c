package types

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestSceneOutlineParsedViews(t *testing.T) {
	outline := &SceneOutline{
		Raw:      strPtr("## Scene 1\nFiona slips out before dawn.\n## Scene 2\nThe willow is waiting.\n"),
		Improved: strPtr("## Scene 1\nFiona slips out before dawn, gem in hand.\n"),
	}

	raw, err := outline.RawParsed()
	if err != nil {
		t.Fatalf("RawParsed: %v", err)
	}
	if len(raw) != 2 || raw[0].Number != 1 || raw[1].Number != 2 {
		t.Fatalf("raw records = %#v", raw)
	}
	if raw[1].Content != "The willow is waiting." {
		t.Fatalf("raw scene 2 content = %q", raw[1].Content)
	}

	improved, err := outline.ImprovedParsed()
	if err != nil {
		t.Fatalf("ImprovedParsed: %v", err)
	}
	if len(improved) != 1 || !strings.Contains(improved[0].Content, "gem in hand") {
		t.Fatalf("improved records = %#v", improved)
	}
}

func TestSceneTextViews(t *testing.T) {
	scene := &Scene{
		Raw:      strPtr("### Paragraph: Dawn\nThe courtyard hummed with green light.\n\n### Dialogue: The question\n\"Tell me,\" she said.\n"),
		Improved: strPtr("### Paragraph: Dawn\nThe courtyard glowed.\n"),
	}

	rawText, err := scene.RawText()
	if err != nil {
		t.Fatalf("RawText: %v", err)
	}
	if strings.Contains(rawText, "### ") {
		t.Fatalf("raw text keeps headings: %q", rawText)
	}
	if !strings.Contains(rawText, "The courtyard hummed with green light.") ||
		!strings.Contains(rawText, "\"Tell me,\" she said.") {
		t.Fatalf("raw text = %q", rawText)
	}

	improvedText, err := scene.ImprovedText()
	if err != nil {
		t.Fatalf("ImprovedText: %v", err)
	}
	if improvedText != "The courtyard glowed." {
		t.Fatalf("improved text = %q", improvedText)
	}
}

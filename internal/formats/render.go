package formats

import (
	"fmt"
	"strings"
)

// Canonical renderers for each grammar. These emit exactly what the parsers
// accept, which keeps regenerated context blocks and test fixtures honest.

func FormatStoryBase(b StoryBase) string {
	var sb strings.Builder
	sb.WriteString("# Setting\n")
	sb.WriteString(b.Setting)
	sb.WriteString("\n\n# Main Characters\n")
	sb.WriteString(b.MainCharacters)
	sb.WriteString("\n\n# Summary\n")
	sb.WriteString(b.Summary)
	sb.WriteString("\n\n# Tags\n")
	sb.WriteString(strings.Join(b.Tags, ", "))
	sb.WriteString("\n")
	return sb.String()
}

func FormatOutlineSimple(stubs []ChapterStub) string {
	var sb strings.Builder
	for _, c := range stubs {
		if c.PartLabel != "" {
			fmt.Fprintf(&sb, "## %s\n", c.PartLabel)
		}
		fmt.Fprintf(&sb, "### Chapter %d — %s\n%s\n", c.Number, c.Title, c.Sentence)
	}
	return sb.String()
}

func FormatOutlineMedium(records []ChapterRecord) string {
	var sb strings.Builder
	for _, c := range records {
		if c.PartLabel != "" {
			fmt.Fprintf(&sb, "## %s\n", c.PartLabel)
		}
		fmt.Fprintf(&sb, "### Chapter %d — %s\n", c.Number, c.Title)
		fmt.Fprintf(&sb, "#### Chapter Purpose\n%s\n", c.Purpose)
		fmt.Fprintf(&sb, "#### Main Events\n%s\n", c.MainEvents)
		if c.Summary != "" {
			fmt.Fprintf(&sb, "#### Chapter Summary\n%s\n", c.Summary)
		}
		fmt.Fprintf(&sb, "#### Chapter Notes\n%s\n", c.Notes)
	}
	return sb.String()
}

func FormatOutlineComplex(records []ChapterRecord) string {
	var sb strings.Builder
	for _, c := range records {
		if c.PartLabel != "" {
			fmt.Fprintf(&sb, "## %s\n", c.PartLabel)
		}
		fmt.Fprintf(&sb, "### Chapter %d — %s\n", c.Number, c.Title)
		fmt.Fprintf(&sb, "#### Chapter Purpose\n%s\n", c.Purpose)
		fmt.Fprintf(&sb, "#### Main Events\n%s\n", c.MainEvents)
		fmt.Fprintf(&sb, "#### Chapter Summary\n%s\n", c.Summary)
		fmt.Fprintf(&sb, "#### Chapter Notes\n%s\n", c.Notes)
	}
	return sb.String()
}

func FormatChapterOutline(records []SceneRecord) string {
	var sb strings.Builder
	for _, s := range records {
		fmt.Fprintf(&sb, "### Scene %d\n", s.Number)
		fmt.Fprintf(&sb, "#### Setting\n%s\n", s.Setting)
		fmt.Fprintf(&sb, "#### Primary Function\n%s\n", s.PrimaryFunction)
		fmt.Fprintf(&sb, "#### Secondary Function\n%s\n", s.SecondaryFunction)
		fmt.Fprintf(&sb, "#### Summary\n%s\n", s.Summary)
		fmt.Fprintf(&sb, "#### Context\n%s\n", s.Context)
	}
	return sb.String()
}

func FormatSceneOutline(records []SceneOutlineRecord) string {
	var sb strings.Builder
	for _, s := range records {
		fmt.Fprintf(&sb, "## Scene %d\n%s\n", s.Number, s.Content)
	}
	return sb.String()
}

func FormatSceneText(sections []SceneSection) string {
	var sb strings.Builder
	for _, sec := range sections {
		label := "Paragraph"
		if sec.Kind == SectionDialogue {
			label = "Dialogue"
		}
		fmt.Fprintf(&sb, "### %s %s\n%s\n", label, sec.Description, sec.Text)
	}
	return sb.String()
}

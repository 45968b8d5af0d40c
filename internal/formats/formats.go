package formats

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The parsers below enforce the markdown section grammar each stage's prompt
// instructs the model to follow. They tolerate a fixed set of near-miss
// variants observed in real model output: one extra or missing heading hash,
// en/em dash vs hyphen in chapter titles, and an optional colon after
// Paragraph/Dialogue labels. Anything else is a ParsingError.

type StoryBase struct {
	Setting        string
	MainCharacters string
	Summary        string
	Tags           []string
}

type ChapterStub struct {
	Number    int
	PartLabel string
	Title     string
	Sentence  string
}

type ChapterRecord struct {
	Number     int
	PartLabel  string
	Title      string
	Purpose    string
	MainEvents string
	Summary    string
	Notes      string
}

type SceneRecord struct {
	Number            int
	Setting           string
	PrimaryFunction   string
	SecondaryFunction string
	Summary           string
	Context           string
}

type SceneOutlineRecord struct {
	Number  int
	Content string
}

type SceneSectionKind string

const (
	SectionParagraph SceneSectionKind = "paragraph"
	SectionDialogue  SceneSectionKind = "dialogue"
)

type SceneSection struct {
	Kind        SceneSectionKind
	Description string
	Text        string
}

var (
	storyBaseHeadingRe = regexp.MustCompile(`(?m)^# (Setting|Main Characters|Summary|Tags)\s*$`)
	chapterHeadingRe   = regexp.MustCompile(`(?m)^#{2,3} Chapter (\d+)\s*[—–-]+\s*(.+?)\s*$`)
	partHeadingRe      = regexp.MustCompile(`(?m)^#{1,3}\s+((?:Part|Arc)\b.*?)\s*$`)
	chapterFieldRe     = regexp.MustCompile(`(?m)^#{3,4} (Chapter Purpose|Main Events|Chapter Notes|Notes|Chapter Summary):?\s*$`)
	sceneHeadingRe     = regexp.MustCompile(`(?m)^#{2,3} Scene (\d+)\s*$`)
	sceneFieldRe       = regexp.MustCompile(`(?m)^#{3,4} (Setting|Primary Function|Secondary Function|Summary|Context):?\s*$`)
	sceneOutlineRe     = regexp.MustCompile(`(?m)^#{1,3} Scene (\d+)\s*$`)
	sceneSectionRe     = regexp.MustCompile(`(?m)^#{2,3} (Paragraph|Dialogue):?[ \t]+(.+?)\s*$`)
)

// ParseStoryBase parses the stage-one response: setting, main characters,
// summary and a comma-separated tag list, all under level-one headings.
func ParseStoryBase(s string) (StoryBase, error) {
	fields, err := fieldMap("story base", s, storyBaseHeadingRe, []string{"Setting", "Main Characters", "Summary", "Tags"})
	if err != nil {
		return StoryBase{}, err
	}
	return StoryBase{
		Setting:        fields["Setting"],
		MainCharacters: fields["Main Characters"],
		Summary:        fields["Summary"],
		Tags:           splitTags(fields["Tags"]),
	}, nil
}

func splitTags(s string) []string {
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// ParseOutlineSimple parses the one-sentence-per-chapter outline.
func ParseOutlineSimple(s string) ([]ChapterStub, error) {
	blocks, err := chapterBlocks("one sentence outline", s)
	if err != nil {
		return nil, err
	}
	stubs := make([]ChapterStub, 0, len(blocks))
	for _, b := range blocks {
		stubs = append(stubs, ChapterStub{
			Number:    b.number,
			PartLabel: b.partLabel,
			Title:     b.title,
			Sentence:  strings.TrimSpace(b.body),
		})
	}
	return stubs, nil
}

// ParseOutlineMedium parses the main-events outline: per chapter a purpose, a
// main-events list and notes. A chapter summary is captured when present but
// not required; ParseOutlineComplex requires it.
func ParseOutlineMedium(s string) ([]ChapterRecord, error) {
	return parseChapterRecords("main events outline", s, false)
}

// ParseOutlineComplex parses the expanded outline, which additionally carries
// a paragraph-length chapter summary per chapter.
func ParseOutlineComplex(s string) ([]ChapterRecord, error) {
	return parseChapterRecords("expanded outline", s, true)
}

func parseChapterRecords(format, s string, requireSummary bool) ([]ChapterRecord, error) {
	blocks, err := chapterBlocks(format, s)
	if err != nil {
		return nil, err
	}
	records := make([]ChapterRecord, 0, len(blocks))
	for _, b := range blocks {
		fields, err := fieldMap(format, b.body, chapterFieldRe, []string{"Chapter Purpose", "Main Events"})
		if err != nil {
			return nil, newParsingError(format, "chapter %d: %v", b.number, err)
		}
		notes, ok := fields["Chapter Notes"]
		if !ok {
			notes, ok = fields["Notes"]
		}
		if !ok {
			return nil, newParsingError(format, "chapter %d: missing required field %q", b.number, "Chapter Notes")
		}
		summary := fields["Chapter Summary"]
		if requireSummary && summary == "" {
			return nil, newParsingError(format, "chapter %d: missing required field %q", b.number, "Chapter Summary")
		}
		records = append(records, ChapterRecord{
			Number:     b.number,
			PartLabel:  b.partLabel,
			Title:      b.title,
			Purpose:    fields["Chapter Purpose"],
			MainEvents: fields["Main Events"],
			Summary:    summary,
			Notes:      notes,
		})
	}
	return records, nil
}

// ParseChapterOutline parses a chapter's scene-by-scene outline.
func ParseChapterOutline(s string) ([]SceneRecord, error) {
	const format = "chapter outline"
	locs := sceneHeadingRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, newParsingError(format, "no %q headings found", "Scene N")
	}
	records := make([]SceneRecord, 0, len(locs))
	for i, loc := range locs {
		number, _ := strconv.Atoi(s[loc[2]:loc[3]])
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		body := s[loc[1]:end]
		fields, err := fieldMap(format, body, sceneFieldRe, []string{"Setting", "Primary Function", "Secondary Function", "Summary", "Context"})
		if err != nil {
			return nil, newParsingError(format, "scene %d: %v", number, err)
		}
		records = append(records, SceneRecord{
			Number:            number,
			Setting:           fields["Setting"],
			PrimaryFunction:   fields["Primary Function"],
			SecondaryFunction: fields["Secondary Function"],
			Summary:           fields["Summary"],
			Context:           fields["Context"],
		})
	}
	return records, nil
}

// ParseSceneOutline parses a scene's paragraph/dialogue outline. Content under
// each scene heading is free-form.
func ParseSceneOutline(s string) ([]SceneOutlineRecord, error) {
	const format = "scene outline"
	locs := sceneOutlineRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, newParsingError(format, "no %q headings found", "Scene N")
	}
	records := make([]SceneOutlineRecord, 0, len(locs))
	for i, loc := range locs {
		number, _ := strconv.Atoi(s[loc[2]:loc[3]])
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		records = append(records, SceneOutlineRecord{
			Number:  number,
			Content: strings.TrimSpace(s[loc[1]:end]),
		})
	}
	return records, nil
}

// ParseSceneText parses drafted prose into ordered paragraph and dialogue
// sections.
func ParseSceneText(s string) ([]SceneSection, error) {
	const format = "scene text"
	locs := sceneSectionRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, newParsingError(format, "no %q or %q headings found", "Paragraph", "Dialogue")
	}
	sections := make([]SceneSection, 0, len(locs))
	for i, loc := range locs {
		kind := SectionParagraph
		if s[loc[2]:loc[3]] == "Dialogue" {
			kind = SectionDialogue
		}
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections = append(sections, SceneSection{
			Kind:        kind,
			Description: strings.TrimSpace(s[loc[4]:loc[5]]),
			Text:        strings.TrimSpace(s[loc[1]:end]),
		})
	}
	return sections, nil
}

// JoinSectionText renders parsed scene sections as plain prose, sections
// separated by blank lines.
func JoinSectionText(sections []SceneSection) string {
	parts := make([]string, 0, len(sections))
	for _, sec := range sections {
		parts = append(parts, sec.Text)
	}
	return strings.Join(parts, "\n\n")
}

// ---- internal scanning helpers ----

type chapterBlock struct {
	number    int
	partLabel string
	title     string
	body      string
}

func chapterBlocks(format, s string) ([]chapterBlock, error) {
	locs := chapterHeadingRe.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, newParsingError(format, "no %q headings found", "Chapter N")
	}
	blocks := make([]chapterBlock, 0, len(locs))
	prevEnd := 0
	for i, loc := range locs {
		number, _ := strconv.Atoi(s[loc[2]:loc[3]])
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		// A part/arc header between the previous chapter and this one labels
		// this chapter only.
		partLabel := ""
		if m := partHeadingRe.FindStringSubmatch(s[prevEnd:loc[0]]); m != nil {
			partLabel = m[1]
		}
		blocks = append(blocks, chapterBlock{
			number:    number,
			partLabel: partLabel,
			title:     s[loc[4]:loc[5]],
			body:      s[loc[1]:end],
		})
		prevEnd = end
	}
	return blocks, nil
}

// fieldMap slices body text into named fields by heading, trimming each. The
// required list fails fast with a ParsingError; other captured headings are
// optional.
func fieldMap(format, s string, re *regexp.Regexp, required []string) (map[string]string, error) {
	fields := map[string]string{}
	locs := re.FindAllStringSubmatchIndex(s, -1)
	for i, loc := range locs {
		name := s[loc[2]:loc[3]]
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		fields[name] = strings.TrimSpace(s[loc[1]:end])
	}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return nil, fmt.Errorf("missing required field %q", name)
		}
	}
	return fields, nil
}

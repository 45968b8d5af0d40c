package formats

import (
	"regexp"
	"strings"
)

// Responses carry up to five top-level sections. Anything outside the
// allow-list is treated as body text of the preceding section.
var sectionDelimiters = []string{
	"# Editing Notes",
	"# Outline",
	"# FactSheet",
	"# Characters",
	"# Scene",
}

var sectionDelimiterRe = func() *regexp.Regexp {
	escaped := make([]string, len(sectionDelimiters))
	for i, d := range sectionDelimiters {
		escaped[i] = regexp.QuoteMeta(d)
	}
	return regexp.MustCompile(`(?m)^(` + strings.Join(escaped, "|") + `)\s*$`)
}()

// SectionKey converts a delimiter to its map key: "# Editing Notes" ->
// "editing_notes".
func SectionKey(delimiter string) string {
	name := strings.TrimPrefix(delimiter, "# ")
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// SplitSections breaks one model response into named sections keyed by
// lowercased, underscored delimiter names. The last section runs to EOF; a
// response with none of the delimiters yields an empty map.
func SplitSections(s string) map[string]string {
	sections := map[string]string{}
	locs := sectionDelimiterRe.FindAllStringSubmatchIndex(s, -1)
	for i, loc := range locs {
		delimiter := s[loc[2]:loc[3]]
		start := loc[1]
		end := len(s)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		sections[SectionKey(delimiter)] = strings.TrimSpace(s[start:end])
	}
	return sections
}

// RequireSections fails with a ParsingError naming the first missing key.
func RequireSections(sections map[string]string, keys ...string) error {
	for _, key := range keys {
		if _, ok := sections[key]; !ok {
			return newParsingError("sections", "missing required section %q", key)
		}
	}
	return nil
}

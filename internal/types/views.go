package types

import (
  "encoding/json"
  "github.com/yungbote/storygen-backend/internal/formats"
)

// Parsed views are computed from stored text on every call, never cached, so
// they can't drift from the raw columns.

func (s *Story) TagList() []string {
  if len(s.Tags) == 0 {
    return nil
  }
  var tags []string
  if err := json.Unmarshal(s.Tags, &tags); err != nil {
    return nil
  }
  return tags
}

// ComputedOutline returns the most refined outline text available, used as
// story context in downstream prompts.
func (o *StoryOutline) ComputedOutline() string {
  for _, candidate := range []*string{o.OutlineParagraphs, o.OutlineMaineventsImproved, o.OutlineMaineventsRaw, o.OutlineOnesentence} {
    if candidate != nil && *candidate != "" {
      return *candidate
    }
  }
  return ""
}

// ChapterList parses the authoritative structured chapter list.
func (o *StoryOutline) ChapterList() ([]formats.ChapterRecord, error) {
  return formats.ParseOutlineMedium(deref(o.OutlineParagraphs))
}

func (c *ChapterOutline) RawParsed() ([]formats.SceneRecord, error) {
  return formats.ParseChapterOutline(deref(c.Raw))
}

func (c *ChapterOutline) ImprovedParsed() ([]formats.SceneRecord, error) {
  return formats.ParseChapterOutline(deref(c.Improved))
}

func (o *SceneOutline) RawParsed() ([]formats.SceneOutlineRecord, error) {
  return formats.ParseSceneOutline(deref(o.Raw))
}

func (o *SceneOutline) ImprovedParsed() ([]formats.SceneOutlineRecord, error) {
  return formats.ParseSceneOutline(deref(o.Improved))
}

func (s *Scene) RawParsed() ([]formats.SceneSection, error) {
  return formats.ParseSceneText(deref(s.Raw))
}

func (s *Scene) ImprovedParsed() ([]formats.SceneSection, error) {
  return formats.ParseSceneText(deref(s.Improved))
}

// RawText joins the raw draft's section contents into plain prose.
func (s *Scene) RawText() (string, error) {
  sections, err := s.RawParsed()
  if err != nil {
    return "", err
  }
  return formats.JoinSectionText(sections), nil
}

// ImprovedText joins the improved draft's section contents into plain prose.
func (s *Scene) ImprovedText() (string, error) {
  sections, err := s.ImprovedParsed()
  if err != nil {
    return "", err
  }
  return formats.JoinSectionText(sections), nil
}

func deref(s *string) string {
  if s == nil {
    return ""
  }
  return *s
}

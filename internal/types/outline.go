package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// StoryOutline holds the progressively refined outline representations of a
// story. Only one non-invalidated outline exists per story; regeneration
// invalidates the previous one instead of deleting it.
type StoryOutline struct {
  ID                        uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID                  *uuid.UUID    `gorm:"type:uuid;index" json:"author_id,omitempty"`
  StoryID                   uuid.UUID     `gorm:"type:uuid;not null;index" json:"story_id"`
  Story                     *Story        `gorm:"constraint:OnDelete:CASCADE;foreignKey:StoryID;references:ID" json:"story,omitempty"`

  OutlineOnesentence        *string       `gorm:"column:outline_onesentence" json:"outline_onesentence"`
  OutlineMaineventsRaw      *string       `gorm:"column:outline_mainevents_raw" json:"outline_mainevents_raw"`
  EditingNotes              *string       `gorm:"column:editing_notes" json:"editing_notes"`
  OutlineMaineventsImproved *string       `gorm:"column:outline_mainevents_improved" json:"outline_mainevents_improved"`
  OutlineParagraphs         *string       `gorm:"column:outline_paragraphs" json:"outline_paragraphs"`
  FactSheets                *string       `gorm:"column:fact_sheets" json:"fact_sheets"`
  Characters                *string       `gorm:"column:characters" json:"characters"`

  Modified                  bool          `gorm:"column:modified;not null;default:false" json:"modified"`
  Invalidated               bool          `gorm:"column:invalidated;not null;default:false" json:"invalidated"`
  CreatedAt                 time.Time     `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt                 time.Time     `gorm:"not null;default:now()" json:"updated_at"`
}

func (StoryOutline) TableName() string { return "story_outlines" }

func (o *StoryOutline) BeforeCreate(tx *gorm.DB) error {
  if o.ID == uuid.Nil {
    o.ID = uuid.New()
  }
  return nil
}

// ChapterOutline carries the chapter fields copied down from the parent
// outline's parsed chapter list plus the generated scene-by-scene outline.
// Siblings are ordered by the previous-chapter chain, which matches
// chapter_number order among non-invalidated rows.
type ChapterOutline struct {
  ID                  uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID            *uuid.UUID        `gorm:"type:uuid;index" json:"author_id,omitempty"`
  StoryOutlineID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"story_outline_id"`
  StoryOutline        *StoryOutline     `gorm:"constraint:OnDelete:CASCADE;foreignKey:StoryOutlineID;references:ID" json:"story_outline,omitempty"`
  PreviousChapterID   *uuid.UUID        `gorm:"type:uuid;index" json:"previous_chapter_id,omitempty"`

  ChapterNumber       int               `gorm:"column:chapter_number;not null" json:"chapter_number"`
  PartLabel           string            `gorm:"column:part_label" json:"part_label"`
  Title               string            `gorm:"column:title;not null" json:"title"`
  Purpose             string            `gorm:"column:purpose" json:"purpose"`
  MainEvents          string            `gorm:"column:main_events" json:"main_events"`
  ChapterSummary      string            `gorm:"column:chapter_summary" json:"chapter_summary"`
  ChapterNotes        string            `gorm:"column:chapter_notes" json:"chapter_notes"`

  Raw                 *string           `gorm:"column:raw" json:"raw"`
  EditNotes           *string           `gorm:"column:edit_notes" json:"edit_notes"`
  Improved            *string           `gorm:"column:improved" json:"improved"`

  Modified            bool              `gorm:"column:modified;not null;default:false" json:"modified"`
  Invalidated         bool              `gorm:"column:invalidated;not null;default:false" json:"invalidated"`
  CreatedAt           time.Time         `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt           time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (ChapterOutline) TableName() string { return "chapter_outlines" }

func (o *ChapterOutline) BeforeCreate(tx *gorm.DB) error {
  if o.ID == uuid.Nil {
    o.ID = uuid.New()
  }
  return nil
}

// SceneOutline carries the scene fields copied from the parent chapter's
// parsed scene list plus the generated paragraph/dialogue outline.
type SceneOutline struct {
  ID                  uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID            *uuid.UUID        `gorm:"type:uuid;index" json:"author_id,omitempty"`
  ChapterOutlineID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"chapter_outline_id"`
  ChapterOutline      *ChapterOutline   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChapterOutlineID;references:ID" json:"chapter_outline,omitempty"`
  PreviousSceneID     *uuid.UUID        `gorm:"type:uuid;index" json:"previous_scene_id,omitempty"`

  SceneNumber         int               `gorm:"column:scene_number;not null" json:"scene_number"`
  Setting             string            `gorm:"column:setting" json:"setting"`
  PrimaryFunction     string            `gorm:"column:primary_function" json:"primary_function"`
  SecondaryFunction   string            `gorm:"column:secondary_function" json:"secondary_function"`
  Summary             string            `gorm:"column:summary" json:"summary"`
  Context             string            `gorm:"column:context" json:"context"`

  Raw                 *string           `gorm:"column:raw" json:"raw"`
  EditNotes           *string           `gorm:"column:edit_notes" json:"edit_notes"`
  Improved            *string           `gorm:"column:improved" json:"improved"`

  Modified            bool              `gorm:"column:modified;not null;default:false" json:"modified"`
  Invalidated         bool              `gorm:"column:invalidated;not null;default:false" json:"invalidated"`
  CreatedAt           time.Time         `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt           time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (SceneOutline) TableName() string { return "scene_outlines" }

func (o *SceneOutline) BeforeCreate(tx *gorm.DB) error {
  if o.ID == uuid.Nil {
    o.ID = uuid.New()
  }
  return nil
}

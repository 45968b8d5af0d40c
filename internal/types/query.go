package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Query is one logical model call: the original prompt plus every
// continuation and retry it took to finish. StoryID is always populated as a
// denormalized root pointer; at most one of the more specific links is set.
type Query struct {
  ID                  uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID            *uuid.UUID        `gorm:"type:uuid;index" json:"author_id,omitempty"`

  StoryID             *uuid.UUID        `gorm:"type:uuid;index" json:"story_id,omitempty"`
  StoryOutlineID      *uuid.UUID        `gorm:"type:uuid;index" json:"story_outline_id,omitempty"`
  ChapterOutlineID    *uuid.UUID        `gorm:"type:uuid;index" json:"chapter_outline_id,omitempty"`
  SceneOutlineID      *uuid.UUID        `gorm:"type:uuid;index" json:"scene_outline_id,omitempty"`
  SceneID             *uuid.UUID        `gorm:"type:uuid;index" json:"scene_id,omitempty"`

  Continues           int               `gorm:"column:continues;not null;default:0" json:"continues"`
  Retries             int               `gorm:"column:retries;not null;default:0" json:"retries"`
  TotalCost           float64           `gorm:"column:total_cost;not null;default:0" json:"total_cost"`

  OriginalPrompt      string            `gorm:"column:original_prompt" json:"original_prompt"`
  SystemPrompt        string            `gorm:"column:system_prompt" json:"system_prompt"`
  CompleteOutput      string            `gorm:"column:complete_output" json:"complete_output"`
  PreviousMessages    datatypes.JSON    `gorm:"column:previous_messages;type:jsonb" json:"previous_messages"`
  AllMessages         datatypes.JSON    `gorm:"column:all_messages;type:jsonb" json:"all_messages"`

  CreatedAt           time.Time         `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt           time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (Query) TableName() string { return "queries" }

func (q *Query) BeforeCreate(tx *gorm.DB) error {
  if q.ID == uuid.Nil {
    q.ID = uuid.New()
  }
  return nil
}

// ApiCall is one physical streamed exchange within a Query. Cost is nil when
// the transcript could not be token counted.
type ApiCall struct {
  ID                uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  QueryID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"query_id"`
  Query             *Query            `gorm:"constraint:OnDelete:CASCADE;foreignKey:QueryID;references:ID" json:"query,omitempty"`

  Timestamp         time.Time         `gorm:"column:timestamp;not null;default:now()" json:"timestamp"`
  Success           bool              `gorm:"column:success;not null" json:"success"`
  Error             string            `gorm:"column:error" json:"error"`
  Cost              *float64          `gorm:"column:cost" json:"cost"`

  InputMessages     datatypes.JSON    `gorm:"column:input_messages;type:jsonb" json:"input_messages"`
  Output            string            `gorm:"column:output" json:"output"`

  CreatedAt         time.Time         `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt         time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (ApiCall) TableName() string { return "api_calls" }

func (c *ApiCall) BeforeCreate(tx *gorm.DB) error {
  if c.ID == uuid.Nil {
    c.ID = uuid.New()
  }
  return nil
}

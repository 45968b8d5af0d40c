package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// Story is the root of the generation hierarchy. The description, style,
// themes and request fields are user authored; setting, main characters,
// summary and tags are filled in by the story stage.
type Story struct {
  ID              uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID        *uuid.UUID        `gorm:"type:uuid;index" json:"author_id,omitempty"`
  Author          *User             `gorm:"constraint:OnDelete:SET NULL;foreignKey:AuthorID;references:ID" json:"author,omitempty"`
  Title           string            `gorm:"column:title;not null" json:"title"`

  Description     string            `gorm:"column:description;not null" json:"description"`
  Style           string            `gorm:"column:style;not null" json:"style"`
  Themes          string            `gorm:"column:themes;not null" json:"themes"`
  Request         string            `gorm:"column:request;not null" json:"request"`

  Setting         *string           `gorm:"column:setting" json:"setting"`
  MainCharacters  *string           `gorm:"column:main_characters" json:"main_characters"`
  Summary         *string           `gorm:"column:summary" json:"summary"`
  Tags            datatypes.JSON    `gorm:"column:tags;type:jsonb" json:"tags"`

  Modified        bool              `gorm:"column:modified;not null;default:false" json:"modified"`
  IsPublic        bool              `gorm:"column:is_public;not null;default:false" json:"is_public"`
  CreatedAt       time.Time         `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt       time.Time         `gorm:"not null;default:now()" json:"updated_at"`
}

func (Story) TableName() string { return "stories" }

func (s *Story) BeforeCreate(tx *gorm.DB) error {
  if s.ID == uuid.Nil {
    s.ID = uuid.New()
  }
  return nil
}

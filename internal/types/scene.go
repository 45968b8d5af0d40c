package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

// Scene is the terminal entity. Outline freezes the scene outline text the
// scene was generated from; FinalText is set by the last scene-text step.
type Scene struct {
  ID                  uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  AuthorID            *uuid.UUID      `gorm:"type:uuid;index" json:"author_id,omitempty"`
  SceneOutlineID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"scene_outline_id"`
  SceneOutline        *SceneOutline   `gorm:"constraint:OnDelete:CASCADE;foreignKey:SceneOutlineID;references:ID" json:"scene_outline,omitempty"`
  PreviousSceneID     *uuid.UUID      `gorm:"type:uuid;index" json:"previous_scene_id,omitempty"`

  SceneNumber         int             `gorm:"column:scene_number;not null" json:"scene_number"`
  Outline             string          `gorm:"column:outline" json:"outline"`

  Raw                 *string         `gorm:"column:raw" json:"raw"`
  EditNotes           *string         `gorm:"column:edit_notes" json:"edit_notes"`
  Improved            *string         `gorm:"column:improved" json:"improved"`
  FinalText           *string         `gorm:"column:final_text" json:"final_text"`

  Modified            bool            `gorm:"column:modified;not null;default:false" json:"modified"`
  Invalidated         bool            `gorm:"column:invalidated;not null;default:false" json:"invalidated"`
  CreatedAt           time.Time       `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt           time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Scene) TableName() string { return "scenes" }

func (s *Scene) BeforeCreate(tx *gorm.DB) error {
  if s.ID == uuid.Nil {
    s.ID = uuid.New()
  }
  return nil
}

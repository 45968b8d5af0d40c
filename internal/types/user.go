package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
)

type User struct {
  ID          uuid.UUID   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Name        string      `gorm:"column:name;uniqueIndex;not null" json:"name"`
  Email       string      `gorm:"column:email;uniqueIndex;not null" json:"email"`
  Tokens      float64     `gorm:"column:tokens;not null;default:0" json:"tokens"`
  CreatedAt   time.Time   `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt   time.Time   `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
  if u.ID == uuid.Nil {
    u.ID = uuid.New()
  }
  return nil
}

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session backs an issued access token. Deleting the row revokes the token.
type Session struct {
	gorm.Model
	SID       string    `gorm:"column:sid;size:36;uniqueIndex;not null"`
	UserID    uint      `gorm:"index"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	UserAgent string    `gorm:"size:255"`
	ExpiresAt time.Time `gorm:"index"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) (err error) {
	if s.SID == "" {
		s.SID = strings.ToLower(uuid.New().String())
	}
	return nil
}

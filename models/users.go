package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Profile item types. Validation categories map onto the first three.
const (
	ItemTypeSkill        = "skill"
	ItemTypeEducation    = "education"
	ItemTypeExperience   = "experience"
	ItemTypeProfileImage = "profile_image"
)

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex:users_email_key" json:"email"`
	Name      *string   `gorm:"size:255" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DisplayName is the name when set, the email otherwise.
func (u User) DisplayName() string {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		return *u.Name
	}
	return u.Email
}

// ProfileItem is a typed freeform fact about a user. Profile images are stored
// as items of type profile_image, at most one per user.
type ProfileItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index:profile_items_user_type_idx" json:"userId"`
	ItemType  string         `gorm:"size:50;not null;index:profile_items_user_type_idx" json:"type"`
	ItemData  datatypes.JSON `gorm:"not null" json:"data"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	User      *User          `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (ProfileItem) TableName() string {
	return "profile_items"
}

func (p *ProfileItem) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type MoodBadge struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Mood      string    `gorm:"size:100;not null" json:"mood"`
	Category  string    `gorm:"size:100" json:"category"`
	Value     string    `gorm:"size:255" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (MoodBadge) TableName() string {
	return "mood_badges"
}

func (m *MoodBadge) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Migration records a named schema step that has been applied.
type Migration struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:120;uniqueIndex" json:"name"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

func (Migration) TableName() string {
	return "migrations"
}

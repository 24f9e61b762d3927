package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationDeclined ValidationStatus = "declined"
	ValidationExpired  ValidationStatus = "expired"
)

// Terminal reports whether no further transition is allowed from s.
func (s ValidationStatus) Terminal() bool {
	switch s {
	case ValidationApproved, ValidationDeclined, ValidationExpired:
		return true
	case ValidationPending:
		return false
	}
	return true
}

type ValidationCategory string

const (
	CategorySkills     ValidationCategory = "skills"
	CategoryEducation  ValidationCategory = "education"
	CategoryExperience ValidationCategory = "experience"
)

// ValidationCategories lists every category in display order.
var ValidationCategories = []ValidationCategory{CategorySkills, CategoryEducation, CategoryExperience}

func (c ValidationCategory) Valid() bool {
	switch c {
	case CategorySkills, CategoryEducation, CategoryExperience:
		return true
	}
	return false
}

// ItemType maps a category onto the profile item type it vouches for.
func (c ValidationCategory) ItemType() string {
	switch c {
	case CategorySkills:
		return ItemTypeSkill
	case CategoryEducation:
		return ItemTypeEducation
	case CategoryExperience:
		return ItemTypeExperience
	}
	return string(c)
}

type ValidationRequest struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	FromUserID   uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:validation_requests_tuple_key;check:validation_requests_no_self,from_user_id <> to_user_id" json:"fromUserId"`
	ToUserID     uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:validation_requests_tuple_key;index:validation_requests_to_status_idx" json:"toUserId"`
	Category     ValidationCategory `gorm:"size:20;not null;uniqueIndex:validation_requests_tuple_key" json:"category"`
	SpecificItem string             `gorm:"size:255;not null;uniqueIndex:validation_requests_tuple_key" json:"specificItem"`
	Status       ValidationStatus   `gorm:"size:16;not null;default:pending;index:validation_requests_to_status_idx;check:validation_requests_status_check,status IN ('pending','approved','declined','expired')" json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	ExpiresAt    time.Time          `gorm:"not null" json:"expiresAt"`
	RespondedAt  *time.Time         `json:"respondedAt"`
	FromUser     *User              `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	ToUser       *User              `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ValidationRequest) TableName() string {
	return "validation_requests"
}

func (r *ValidationRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// ValidationRecord is an append-only endorsement created by an approval. It
// outlives the request that produced it.
type ValidationRecord struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	ValidatedUserID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:validation_records_tuple_key" json:"validatedUserId"`
	ValidatorUserID uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:validation_records_tuple_key" json:"validatorUserId"`
	Category        ValidationCategory `gorm:"size:20;not null;uniqueIndex:validation_records_tuple_key" json:"category"`
	SpecificItem    string             `gorm:"size:255;not null;uniqueIndex:validation_records_tuple_key" json:"specificItem"`
	RequestID       *uuid.UUID         `gorm:"type:uuid" json:"requestId"`
	CreatedAt       time.Time          `json:"createdAt"`
	ValidatedUser   *User              `gorm:"foreignKey:ValidatedUserID;constraint:OnDelete:CASCADE" json:"-"`
	ValidatorUser   *User              `gorm:"foreignKey:ValidatorUserID;constraint:OnDelete:CASCADE" json:"-"`
	Request         *ValidationRequest `gorm:"foreignKey:RequestID;constraint:OnDelete:SET NULL" json:"-"`
}

func (ValidationRecord) TableName() string {
	return "validation_records"
}

func (r *ValidationRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// All returns every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{
		&User{},
		&ProfileItem{},
		&MoodBadge{},
		&Location{},
		&UserStatus{},
		&Ping{},
		&Connection{},
		&ValidationRequest{},
		&ValidationRecord{},
		&Migration{},
	}
}

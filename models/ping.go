package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PingCategory string

const (
	PingCategorySkill      PingCategory = "skill"
	PingCategoryEducation  PingCategory = "education"
	PingCategoryExperience PingCategory = "experience"
)

func (c PingCategory) Valid() bool {
	switch c {
	case PingCategorySkill, PingCategoryEducation, PingCategoryExperience:
		return true
	}
	return false
}

type Ping struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID     `gorm:"type:uuid;not null;index" json:"userId"`
	Message   string        `gorm:"type:text;not null" json:"message"`
	Mood      string        `gorm:"size:100;not null" json:"mood"`
	Latitude  float64       `gorm:"not null" json:"latitude"`
	Longitude float64       `gorm:"not null" json:"longitude"`
	Category  *PingCategory `gorm:"size:20" json:"category"`
	Value     *string       `gorm:"size:255" json:"value"`
	CreatedAt time.Time     `gorm:"not null;index" json:"createdAt"`
	User      *User         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Ping) TableName() string {
	return "pings"
}

func (p *Ping) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

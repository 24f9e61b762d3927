package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Location is the current position of a user, one row per user.
type Location struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:locations_user_id_key" json:"userId"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Location) TableName() string {
	return "locations"
}

func (l *Location) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

type UserStatus struct {
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	IsBroadcasting bool      `gorm:"not null;default:false" json:"isBroadcasting"`
	LastSeen       time.Time `gorm:"not null;index" json:"lastSeen"`
	User           *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (UserStatus) TableName() string {
	return "user_status"
}

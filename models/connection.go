package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConnectionStatus string

const (
	ConnectionConnected ConnectionStatus = "connected"
	ConnectionPending   ConnectionStatus = "pending"
	ConnectionBlocked   ConnectionStatus = "blocked"
)

func (s ConnectionStatus) Valid() bool {
	switch s {
	case ConnectionConnected, ConnectionPending, ConnectionBlocked:
		return true
	}
	return false
}

// Connection is stored as a directed edge but read symmetrically: a pair is
// connected when either direction carries status connected.
type Connection struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	FromUserID uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:connections_pair_key;check:connections_distinct_users,from_user_id <> to_user_id" json:"fromUserId"`
	ToUserID   uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:connections_pair_key;index" json:"toUserId"`
	Status     ConnectionStatus `gorm:"size:16;not null;default:connected;check:connections_status_check,status IN ('connected','pending','blocked')" json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	FromUser   *User            `gorm:"foreignKey:FromUserID;constraint:OnDelete:CASCADE" json:"-"`
	ToUser     *User            `gorm:"foreignKey:ToUserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Connection) TableName() string {
	return "connections"
}

func (c *Connection) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

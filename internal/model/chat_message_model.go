package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID `gorm:"type:uuid;not null;index:idx_session_msgs,priority:1"`
	Role          string    `gorm:"type:varchar(16);not null;check:role IN ('human','ai')"`
	Content       string    `gorm:"type:text;not null"`
	// Position is the 1-based insertion order within the session. Timestamps
	// alone cannot order a paired append: both turns can land in the same
	// microsecond.
	Position  int       `gorm:"not null;index:idx_session_msgs,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	ChatSession *ChatSession `gorm:"foreignKey:ChatSessionId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

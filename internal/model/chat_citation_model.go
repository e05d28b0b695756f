package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatCitation struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatMessageId uuid.UUID `gorm:"type:uuid;not null;index"`
	File          string    `gorm:"type:text;not null"`
	Page          string    `gorm:"type:varchar(64);not null;default:'N/A'"`
	Link          string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	ChatMessage *ChatMessage `gorm:"foreignKey:ChatMessageId;references:Id;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatCitation) TableName() string {
	return "chat_citations"
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

type MessageRole string

const (
	RoleHuman     MessageRole = "human"
	RoleAssistant MessageRole = "ai"
)

type ChatSession struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Messages  []*ChatMessage
}

// ChatMessage is one turn inside a session. Turns are append-only: once
// written they are never edited or reordered.
type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          MessageRole
	Content       string
	Position      int
	CreatedAt     time.Time
	Citations     []*ChatCitation
}

// ChatCitation is a source reference attached to an assistant turn. Page can
// be "N/A" when the source has no page structure.
type ChatCitation struct {
	Id            uuid.UUID
	ChatMessageId uuid.UUID
	File          string
	Page          string
	Link          string
	CreatedAt     time.Time
}

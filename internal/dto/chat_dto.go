package dto

import (
	"time"

	"github.com/google/uuid"
)

type SourceDTO struct {
	File string `json:"file"`
	Page string `json:"page"`
	Link string `json:"link,omitempty"`
}

type SaveChatRequest struct {
	UserId     string      `json:"userId" validate:"required"`
	ChatId     string      `json:"chatId,omitempty"`
	Message    string      `json:"message" validate:"required"`
	AiResponse string      `json:"aiResponse,omitempty"`
	Sources    []SourceDTO `json:"sources,omitempty"`
}

type TurnDTO struct {
	Id        uuid.UUID   `json:"id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"timestamp"`
	Sources   []SourceDTO `json:"sources,omitempty"`
}

type SessionDTO struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Turns     []TurnDTO `json:"messages,omitempty"`
}

type SessionSummaryDTO struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionGroupDTO is one recency bucket of the sidebar listing.
type SessionGroupDTO struct {
	Label string              `json:"label"`
	Chats []SessionSummaryDTO `json:"chats"`
}

type AskRequest struct {
	Question    string          `json:"question" validate:"required"`
	ChatHistory []AskHistoryDTO `json:"chat_history"`
}

type AskHistoryDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AskResponse struct {
	Answer      string          `json:"answer"`
	ChatHistory []AskHistoryDTO `json:"chat_history"`
	Sources     []SourceDTO     `json:"sources"`
}

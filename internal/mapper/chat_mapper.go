package mapper

import (
	"time"

	"docchat-be/internal/entity"
	"docchat-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) SessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ChatMapper) SessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

// Message Mappers

func (m *ChatMapper) MessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}
	return &entity.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Role:          entity.MessageRole(msg.Role),
		Content:       msg.Content,
		Position:      msg.Position,
		CreatedAt:     msg.CreatedAt,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}
	return &model.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Role:          string(msg.Role),
		Content:       msg.Content,
		Position:      msg.Position,
		CreatedAt:     msg.CreatedAt,
	}
}

// Citation Mappers

func (m *ChatMapper) CitationToEntity(c *model.ChatCitation) *entity.ChatCitation {
	if c == nil {
		return nil
	}
	return &entity.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		File:          c.File,
		Page:          c.Page,
		Link:          c.Link,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ChatMapper) CitationToModel(c *entity.ChatCitation) *model.ChatCitation {
	if c == nil {
		return nil
	}
	return &model.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		File:          c.File,
		Page:          c.Page,
		Link:          c.Link,
		CreatedAt:     c.CreatedAt,
	}
}

package contract

import (
	"context"

	"docchat-be/internal/entity"
	"docchat-be/internal/repository/specification"
)

type ChatCitationRepository interface {
	CreateBatch(ctx context.Context, citations []*entity.ChatCitation) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatCitation, error)
}

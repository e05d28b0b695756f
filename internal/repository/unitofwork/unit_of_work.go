package unitofwork

import (
	"context"

	"docchat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	ChatCitationRepository() contract.ChatCitationRepository
	GatewayExchangeRepository() contract.GatewayExchangeRepository
}

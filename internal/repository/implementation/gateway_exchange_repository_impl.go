package implementation

import (
	"context"

	"docchat-be/internal/model"
	"docchat-be/internal/repository/contract"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GatewayExchangeRepositoryImpl struct {
	db *gorm.DB
}

func NewGatewayExchangeRepository(db *gorm.DB) contract.GatewayExchangeRepository {
	return &GatewayExchangeRepositoryImpl{db: db}
}

func (r *GatewayExchangeRepositoryImpl) Record(ctx context.Context, question string, payload []byte) error {
	m := &model.GatewayExchange{
		Question: question,
		Payload:  datatypes.JSON(payload),
	}
	return r.db.WithContext(ctx).Create(m).Error
}

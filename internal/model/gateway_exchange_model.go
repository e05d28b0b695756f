package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GatewayExchange keeps the unprocessed upstream response for auditing.
// Rows here are never read on the request path.
type GatewayExchange struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Question  string         `gorm:"type:text;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (GatewayExchange) TableName() string {
	return "gateway_exchanges"
}

package contract

import "context"

type GatewayExchangeRepository interface {
	Record(ctx context.Context, question string, payload []byte) error
}

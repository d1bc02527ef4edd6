package subscription

import (
	"context"

	"github.com/nxx-sync/nxx/internal/domain/channel"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// Store defines the subscription storage contract.
type Store interface {
	AddDevice(ctx context.Context, ch channel.Channel, deviceID string) error
	RemoveDevice(ctx context.Context, ch channel.Channel, deviceID string) error
}

// Schemas resolves application schemas.
type Schemas interface {
	Get(ctx context.Context, appID string) (domschema.Application, error)
}

package fanout

import (
	"context"

	"github.com/nxx-sync/nxx/internal/domain/channel"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// Store reads channel membership and registered filters.
type Store interface {
	GetAllDevices(ctx context.Context, ch channel.Channel) ([]string, error)
	GetAllFilters(ctx context.Context, ch channel.Channel) (map[string][]byte, error)
}

// Schemas resolves application schemas.
type Schemas interface {
	Get(ctx context.Context, appID string) (domschema.Application, error)
}

// Bindings resolves the transport a device is currently connected through.
type Bindings interface {
	Current(ctx context.Context, deviceID string) (transport string, ok bool, err error)
}

// Publisher enqueues a message onto a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

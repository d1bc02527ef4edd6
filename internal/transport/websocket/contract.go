package websocket

import (
	"context"
	"time"

	"github.com/nxx-sync/nxx/internal/transport/queue"
)

// Bindings records which transport worker a device is connected to.
type Bindings interface {
	Bind(ctx context.Context, deviceID, transport string, ttl time.Duration) error
	Unbind(ctx context.Context, deviceID, transport string) error
}

// Consumer delivers messages from a named queue.
type Consumer interface {
	Consume(ctx context.Context, name string, h queue.Handler) error
}

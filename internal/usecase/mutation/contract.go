package mutation

import (
	"context"

	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// Schemas resolves application schemas.
type Schemas interface {
	Get(ctx context.Context, appID string) (domschema.Application, error)
}

// Publisher enqueues a message onto a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

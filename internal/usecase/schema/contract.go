package schema

import (
	"context"

	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// Repository defines the storage contract for application schemas.
type Repository interface {
	Save(ctx context.Context, appID string, app domschema.Application) error
	Get(ctx context.Context, appID string) (domschema.Application, error)
	Delete(ctx context.Context, appID string) error
}

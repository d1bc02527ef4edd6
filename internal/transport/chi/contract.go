package chi

import (
	"context"

	"github.com/nxx-sync/nxx/internal/domain/channel"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
	healthuc "github.com/nxx-sync/nxx/internal/usecase/health"
	subscriptionuc "github.com/nxx-sync/nxx/internal/usecase/subscription"
)

// Schemas registers and serves application schemas.
type Schemas interface {
	Register(ctx context.Context, appID string, app domschema.Application) error
	Get(ctx context.Context, appID string) (domschema.Application, error)
	Delete(ctx context.Context, appID string) error
}

// Subscriptions adds and removes devices on channels.
type Subscriptions interface {
	Subscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
	Unsubscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
}

// Mutations validates patches and enqueues mutation events.
type Mutations interface {
	ValidatePatch(ctx context.Context, ops []patch.Operation) error
	Publish(ctx context.Context, m event.Mutation) error
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

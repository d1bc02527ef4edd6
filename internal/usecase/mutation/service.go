package mutation

import (
	"context"
	"fmt"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
)

// Service validates patches and hands mutation events to the fan-out queue.
type Service struct {
	schemas   Schemas
	publisher Publisher
	queue     string
}

// New creates a mutation service publishing to the fan-out queue named queue.
func New(schemas Schemas, publisher Publisher, queue string) *Service {
	return &Service{schemas: schemas, publisher: publisher, queue: queue}
}

// ValidatePatch checks every operation against its application's schema.
// The batch is rejected as a whole on the first invalid operation.
func (s *Service) ValidatePatch(ctx context.Context, ops []patch.Operation) error {
	for i, op := range ops {
		if err := op.CheckShape(); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		app, err := s.schemas.Get(ctx, op.AppID())
		if err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if err := patch.Validate(op, app); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

// Publish validates the event envelope against the application schema and enqueues it.
func (s *Service) Publish(ctx context.Context, m event.Mutation) error {
	if err := m.Validate(); err != nil {
		return err
	}
	app, err := s.schemas.Get(ctx, m.AppID())
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if _, ok := app.Model(m.Model()); !ok {
		return fmt.Errorf("model %q of %s: %w", m.Model(), m.AppID(), domain.ErrSchemaNotFound)
	}
	if err := s.publisher.Publish(ctx, s.queue, m); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

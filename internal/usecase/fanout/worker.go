package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/event"
)

// Event outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeFatal = "fatal"
	OutcomeRetry = "retry"
)

// HandleMessage decodes a queued mutation event and dispatches it.
func (d *Dispatcher) HandleMessage(ctx context.Context, body []byte) error {
	var m event.Mutation
	if err := json.Unmarshal(body, &m); err != nil {
		return fmt.Errorf("decode event: %w: %w", domain.ErrInvalidEvent, err)
	}
	_, err := d.Dispatch(ctx, m)
	return err
}

// IsFatal reports whether redelivering the event can never succeed.
func IsFatal(err error) bool {
	return errors.Is(err, domain.ErrSchemaNotFound) || errors.Is(err, domain.ErrInvalidEvent)
}

// Outcome classifies a Dispatch result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsFatal(err):
		return OutcomeFatal
	default:
		return OutcomeRetry
	}
}

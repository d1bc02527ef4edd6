package subscription

import (
	"context"
	"fmt"
	"strings"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/channel"
	"github.com/nxx-sync/nxx/internal/domain/filter"
)

// Request names a device and the channel it joins or leaves.
type Request struct {
	DeviceID string
	AppID    string
	Model    string
	UserID   string
	Filter   map[string]any
}

// Service handles subscribe/unsubscribe requests.
type Service struct {
	store   Store
	schemas Schemas
}

// New creates a subscription service.
func New(store Store, schemas Schemas) *Service {
	return &Service{store: store, schemas: schemas}
}

// Subscribe validates the channel against the application schema and adds the device.
// An unknown model yields domain.ErrChannelNotFound; a bad filter yields a
// domain.FilterError.
func (s *Service) Subscribe(ctx context.Context, req Request) (channel.Channel, error) {
	ch, err := baseChannel(req)
	if err != nil {
		return channel.Channel{}, err
	}

	app, err := s.schemas.Get(ctx, req.AppID)
	if err != nil {
		return channel.Channel{}, fmt.Errorf("subscribe: %w", err)
	}
	if req.Model != "" {
		if _, ok := app.Model(req.Model); !ok {
			return channel.Channel{}, fmt.Errorf("model %q of %s (models: %s): %w",
				req.Model, req.AppID, strings.Join(app.ModelNames(), ", "), domain.ErrChannelNotFound)
		}
	}

	if req.Filter != nil {
		if _, err := filter.Compile(req.Filter, app, req.Model); err != nil {
			return channel.Channel{}, fmt.Errorf("subscribe: %w", err)
		}
		if ch, err = ch.WithFilter(req.Filter); err != nil {
			return channel.Channel{}, fmt.Errorf("subscribe: %w", err)
		}
	}

	if err := s.store.AddDevice(ctx, ch, req.DeviceID); err != nil {
		return channel.Channel{}, fmt.Errorf("subscribe: %w", err)
	}
	return ch, nil
}

// Unsubscribe removes the device from the channel. The schema is not consulted, so
// devices can always leave channels of a changed or deleted application.
func (s *Service) Unsubscribe(ctx context.Context, req Request) (channel.Channel, error) {
	ch, err := baseChannel(req)
	if err != nil {
		return channel.Channel{}, err
	}
	if req.Filter != nil {
		if ch, err = ch.WithFilter(req.Filter); err != nil {
			return channel.Channel{}, fmt.Errorf("unsubscribe: %w: %w", domain.ErrInvalidSubscription, err)
		}
	}

	if err := s.store.RemoveDevice(ctx, ch, req.DeviceID); err != nil {
		return channel.Channel{}, fmt.Errorf("unsubscribe: %w", err)
	}
	return ch, nil
}

func baseChannel(req Request) (channel.Channel, error) {
	if req.DeviceID == "" {
		return channel.Channel{}, fmt.Errorf("device id is required: %w", domain.ErrInvalidSubscription)
	}
	if req.Filter != nil && req.Model == "" {
		return channel.Channel{}, fmt.Errorf("filter requires a model: %w", domain.ErrInvalidSubscription)
	}
	ch, err := channel.New(req.AppID, req.Model, req.UserID)
	if err != nil {
		return channel.Channel{}, fmt.Errorf("%w: %w", domain.ErrInvalidSubscription, err)
	}
	return ch, nil
}

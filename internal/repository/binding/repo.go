package binding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nxx-sync/nxx/internal/db"
	"github.com/nxx-sync/nxx/internal/domain"
)

// store is the consumer interface for transport bindings (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DelIfEqual(ctx context.Context, key string, value []byte) (bool, error)
}

// Repo records which transport each device is currently connected through.
type Repo struct {
	store store
}

// New creates a binding repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Bind points deviceID at transport for ttl. Re-binding refreshes the ttl.
func (r *Repo) Bind(ctx context.Context, deviceID, transport string, ttl time.Duration) error {
	if err := r.store.SetWithTTL(ctx, key(deviceID), []byte(transport), ttl); err != nil {
		return fmt.Errorf("bind %s to %s: %w", deviceID, transport, err)
	}
	return nil
}

// Unbind clears deviceID's binding if it still points at transport, so a device that
// already reconnected elsewhere keeps its newer binding.
func (r *Repo) Unbind(ctx context.Context, deviceID, transport string) error {
	if _, err := r.store.DelIfEqual(ctx, key(deviceID), []byte(transport)); err != nil {
		return fmt.Errorf("unbind %s from %s: %w", deviceID, transport, err)
	}
	return nil
}

// Current returns deviceID's transport; ok is false when the device is not connected.
func (r *Repo) Current(ctx context.Context, deviceID string) (transport string, ok bool, err error) {
	data, err := r.store.Get(ctx, key(deviceID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get binding %s: %w", deviceID, err)
	}
	return string(data), true, nil
}

// Key pattern: nxx:device-transport:{deviceId}

func key(deviceID string) string {
	return fmt.Sprintf("%sdevice-transport:%s", domain.KeyPrefix, deviceID)
}

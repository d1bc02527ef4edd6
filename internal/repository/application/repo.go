package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nxx-sync/nxx/internal/db"
	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/schema"
)

// store is the consumer interface for application schemas (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) (bool, error)
}

// Repo persists application schemas as JSON documents.
type Repo struct {
	store store
}

// New creates an application repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save stores the schema of appID, replacing any previous one.
func (r *Repo) Save(ctx context.Context, appID string, app schema.Application) error {
	data, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", appID, err)
	}
	if err := r.store.Set(ctx, key(appID), data); err != nil {
		return fmt.Errorf("set schema %s: %w", appID, err)
	}
	return nil
}

// Get loads the schema of appID, or domain.ErrSchemaNotFound.
func (r *Repo) Get(ctx context.Context, appID string) (schema.Application, error) {
	data, err := r.store.Get(ctx, key(appID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return schema.Application{}, fmt.Errorf("application %s: %w", appID, domain.ErrSchemaNotFound)
		}
		return schema.Application{}, fmt.Errorf("get schema %s: %w", appID, err)
	}

	var app schema.Application
	if err := json.Unmarshal(data, &app); err != nil {
		return schema.Application{}, fmt.Errorf("unmarshal schema %s: %w", appID, err)
	}
	return app, nil
}

// Delete removes the schema of appID.
func (r *Repo) Delete(ctx context.Context, appID string) error {
	existed, err := r.store.Del(ctx, key(appID))
	if err != nil {
		return fmt.Errorf("del schema %s: %w", appID, err)
	}
	if !existed {
		return fmt.Errorf("application %s: %w", appID, domain.ErrSchemaNotFound)
	}
	return nil
}

// Key pattern: nxx:application:{appId}

func key(appID string) string {
	return fmt.Sprintf("%sapplication:%s", domain.KeyPrefix, appID)
}

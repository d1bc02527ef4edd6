package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// CheckFunc checks one named dependency.
type CheckFunc func(ctx context.Context) error

package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	SetStore
	HashStore
	KVStore
	ListStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SetStore provides set membership operations.
type SetStore interface {
	// SAdd adds members and returns how many were not already present.
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	// SRem removes members and returns how many were actually present.
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	// Del deletes key and reports whether it existed.
	Del(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DelIfEqual deletes key only while it still holds value.
	DelIfEqual(ctx context.Context, key string, value []byte) (bool, error)
	Del(ctx context.Context, key string) (bool, error)
}

// ListStore provides the list operations a reliable queue is built from.
type ListStore interface {
	LPush(ctx context.Context, key string, values ...string) error
	// BLMove pops the tail of src onto the head of dst, waiting up to timeout.
	// Returns ErrKeyNotFound when nothing arrived in time.
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error)
	// LMove is the non-blocking form of BLMove.
	LMove(ctx context.Context, src, dst string) (string, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
}

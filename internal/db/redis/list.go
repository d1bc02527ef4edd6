package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/nxx-sync/nxx/internal/db"
)

// LPush prepends values to a list.
func (s *Store) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	cmd := s.b().Lpush().Key(key).Element(values...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpLPush, Err: err}
	}
	return nil
}

// BLMove moves the tail of src to the head of dst, blocking up to timeout.
func (s *Store) BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error) {
	cmd := s.b().Blmove().Source(src).Destination(dst).Right().Left().Timeout(timeout.Seconds()).Build()
	v, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", db.ErrKeyNotFound
		}
		return "", &db.Error{Op: db.OpBLMove, Err: err}
	}
	return v, nil
}

// LMove moves the tail of src to the head of dst without blocking.
func (s *Store) LMove(ctx context.Context, src, dst string) (string, error) {
	cmd := s.b().Lmove().Source(src).Destination(dst).Right().Left().Build()
	v, err := s.do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return "", db.ErrKeyNotFound
		}
		return "", &db.Error{Op: db.OpLMove, Err: err}
	}
	return v, nil
}

// LRem removes up to count occurrences of value and returns how many went.
func (s *Store) LRem(ctx context.Context, key string, count int64, value string) (int64, error) {
	cmd := s.b().Lrem().Key(key).Count(count).Element(value).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpLRem, Err: err}
	}
	return n, nil
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/db"
)

const (
	defaultBlock      = 5 * time.Second
	defaultRetryDelay = time.Second
	defaultHeartbeat  = 30 * time.Second
)

// store is the consumer interface for queues (ISP).
type store interface {
	LPush(ctx context.Context, key string, values ...string) error
	BLMove(ctx context.Context, src, dst string, timeout time.Duration) (string, error)
	LMove(ctx context.Context, src, dst string) (string, error)
	LRem(ctx context.Context, key string, count int64, value string) (int64, error)
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Handler processes one message body. Returning a Permanent error drops the message;
// any other error hands it back to the queue for redelivery.
type Handler func(ctx context.Context, body []byte) error

// Queue is an at-least-once FIFO over Redis lists. Messages are pushed on the left and
// moved from the right into the consumer's own processing list while a handler runs.
//
// Key layout for queue {q} and consumer {id}:
//
//	{q}                        pending messages
//	{q}:processing:{id}        messages {id} is handling
//	{q}:consumers              ids of every consumer that may own a processing list
//	{q}:consumer:{id}          heartbeat, expires when {id} stops refreshing it
type Queue struct {
	store      store
	id         string
	block      time.Duration
	retryDelay time.Duration
	heartbeat  time.Duration
	logger     *zap.Logger
}

// New creates a Queue with a fresh consumer id.
func New(s store, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		store:      s,
		id:         uuid.NewString(),
		block:      defaultBlock,
		retryDelay: defaultRetryDelay,
		heartbeat:  defaultHeartbeat,
		logger:     logger,
	}
}

// WithBlock sets how long one receive waits before re-checking ctx.
func (q *Queue) WithBlock(d time.Duration) *Queue {
	if d > 0 {
		q.block = d
	}
	return q
}

// WithRetryDelay sets the pause after a failed handler or receive.
func (q *Queue) WithRetryDelay(d time.Duration) *Queue {
	if d >= 0 {
		q.retryDelay = d
	}
	return q
}

// WithHeartbeat sets how long this consumer counts as alive between refreshes.
// It must exceed the block timeout plus the longest handler run, or a live consumer's
// in-flight messages may be redelivered.
func (q *Queue) WithHeartbeat(d time.Duration) *Queue {
	if d > 0 {
		q.heartbeat = d
	}
	return q
}

// WithConsumerID replaces the generated consumer id.
func (q *Queue) WithConsumerID(id string) *Queue {
	if id != "" {
		q.id = id
	}
	return q
}

// ConsumerID returns the id this queue consumes under.
func (q *Queue) ConsumerID() string { return q.id }

// ProcessingList returns the in-flight list of consumer id on queue name.
func ProcessingList(name, id string) string { return name + ":processing:" + id }

func consumersKey(name string) string { return name + ":consumers" }

func heartbeatKey(name, id string) string { return name + ":consumer:" + id }

// Publish enqueues payload as JSON.
func (q *Queue) Publish(ctx context.Context, name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", name, err)
	}
	if err := q.store.LPush(ctx, name, string(body)); err != nil {
		return fmt.Errorf("publish to %s: %w", name, err)
	}
	return nil
}

// Recover hands the in-flight messages of every dead consumer of name back to the
// queue. A consumer is dead once its heartbeat has expired; live consumers keep theirs.
func (q *Queue) Recover(ctx context.Context, name string) (int, error) {
	ids, err := q.store.SMembers(ctx, consumersKey(name))
	if err != nil {
		return 0, fmt.Errorf("list consumers of %s: %w", name, err)
	}

	total := 0
	for _, id := range ids {
		if id == q.id {
			continue
		}
		_, err := q.store.Get(ctx, heartbeatKey(name, id))
		if err == nil {
			continue
		}
		if !errors.Is(err, db.ErrKeyNotFound) {
			return total, fmt.Errorf("heartbeat of %s on %s: %w", id, name, err)
		}

		n, err := q.requeue(ctx, name, id)
		total += n
		if err != nil {
			return total, err
		}
		if _, err := q.store.SRem(ctx, consumersKey(name), id); err != nil {
			return total, fmt.Errorf("forget consumer %s of %s: %w", id, name, err)
		}
	}
	return total, nil
}

// requeue moves everything in id's processing list back onto name.
func (q *Queue) requeue(ctx context.Context, name, id string) (int, error) {
	n := 0
	for {
		_, err := q.store.LMove(ctx, ProcessingList(name, id), name)
		if errors.Is(err, db.ErrKeyNotFound) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue %s of %s: %w", id, name, err)
		}
		n++
	}
}

func (q *Queue) beat(ctx context.Context, name string) error {
	if err := q.store.SetWithTTL(ctx, heartbeatKey(name, q.id), []byte(time.Now().UTC().Format(time.RFC3339)), q.heartbeat); err != nil {
		return fmt.Errorf("heartbeat on %s: %w", name, err)
	}
	return nil
}

// Consume runs h for every message of name until ctx is cancelled. It registers this
// consumer, recovers the messages of dead consumers, then keeps its heartbeat fresh
// while receiving.
func (q *Queue) Consume(ctx context.Context, name string, h Handler) error {
	if ctx.Err() != nil {
		return nil
	}
	if err := q.beat(ctx, name); err != nil {
		return err
	}
	if _, err := q.store.SAdd(ctx, consumersKey(name), q.id); err != nil {
		return fmt.Errorf("register consumer on %s: %w", name, err)
	}
	defer q.leave(name)

	if n, err := q.Recover(ctx, name); err != nil {
		return err
	} else if n > 0 {
		q.logger.Info("requeued in-flight messages of dead consumers", zap.String("queue", name), zap.Int("count", n))
	}

	processing := ProcessingList(name, q.id)
	lastBeat := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(lastBeat) >= q.heartbeat/3 {
			if err := q.beat(ctx, name); err != nil {
				q.logger.Warn("heartbeat failed", zap.String("queue", name), zap.Error(err))
			} else {
				lastBeat = time.Now()
			}
		}

		body, err := q.store.BLMove(ctx, name, processing, q.block)
		if errors.Is(err, db.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.logger.Warn("receive failed", zap.String("queue", name), zap.Error(err))
			q.pause(ctx)
			continue
		}

		q.handle(ctx, name, body, h)
	}
}

// leave hands back anything still in flight and deregisters the consumer.
func (q *Queue) leave(name string) {
	ctx := context.Background()
	if n, err := q.requeue(ctx, name, q.id); err != nil {
		q.logger.Error("requeue on shutdown failed", zap.String("queue", name), zap.Error(err))
		return
	} else if n > 0 {
		q.logger.Info("requeued in-flight messages on shutdown", zap.String("queue", name), zap.Int("count", n))
	}
	if _, err := q.store.SRem(ctx, consumersKey(name), q.id); err != nil {
		q.logger.Warn("deregister consumer failed", zap.String("queue", name), zap.Error(err))
	}
}

func (q *Queue) handle(ctx context.Context, name, body string, h Handler) {
	herr := h(ctx, []byte(body))
	switch {
	case herr == nil:
	case IsPermanent(herr):
		q.logger.Error("dropping message", zap.String("queue", name), zap.Error(herr))
	default:
		q.logger.Warn("handler failed, requeueing", zap.String("queue", name), zap.Error(herr))
		// Leave it in processing if the requeue fails; Recover picks it up once this
		// consumer's heartbeat expires.
		if err := q.store.LPush(context.WithoutCancel(ctx), name, body); err != nil {
			q.logger.Error("requeue failed", zap.String("queue", name), zap.Error(err))
			return
		}
		defer q.pause(ctx)
	}

	if _, err := q.store.LRem(context.WithoutCancel(ctx), ProcessingList(name, q.id), 1, body); err != nil {
		q.logger.Error("ack failed", zap.String("queue", name), zap.Error(err))
	}
}

func (q *Queue) pause(ctx context.Context) {
	if q.retryDelay == 0 {
		return
	}
	t := time.NewTimer(q.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

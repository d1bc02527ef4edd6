package nxx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/db"
	dbRedis "github.com/nxx-sync/nxx/internal/db/redis"
	"github.com/nxx-sync/nxx/internal/domain/channel"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
	applicationrepo "github.com/nxx-sync/nxx/internal/repository/application"
	bindingrepo "github.com/nxx-sync/nxx/internal/repository/binding"
	subscriptionrepo "github.com/nxx-sync/nxx/internal/repository/subscription"
	"github.com/nxx-sync/nxx/internal/transport/queue"
	fanoutuc "github.com/nxx-sync/nxx/internal/usecase/fanout"
	healthuc "github.com/nxx-sync/nxx/internal/usecase/health"
	mutationuc "github.com/nxx-sync/nxx/internal/usecase/mutation"
	schemauc "github.com/nxx-sync/nxx/internal/usecase/schema"
	subscriptionuc "github.com/nxx-sync/nxx/internal/usecase/subscription"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultFanoutQueue      = "fanout"
	defaultSchemaCacheTTL   = 30 * time.Second
)

// Internal interfaces so the services can be replaced in tests.
type schemaUseCase interface {
	Register(ctx context.Context, appID string, app domschema.Application) error
	Get(ctx context.Context, appID string) (domschema.Application, error)
	Delete(ctx context.Context, appID string) error
}

type subscriptionUseCase interface {
	Subscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
	Unsubscribe(ctx context.Context, req subscriptionuc.Request) (channel.Channel, error)
}

type mutationUseCase interface {
	ValidatePatch(ctx context.Context, ops []patch.Operation) error
	Publish(ctx context.Context, m event.Mutation) error
}

type dispatchUseCase interface {
	Dispatch(ctx context.Context, m event.Mutation) (fanoutuc.Result, error)
}

// Client is the nxx SDK entry point.
type Client struct {
	store       db.Store
	schemaSvc   schemaUseCase
	subSvc      subscriptionUseCase
	mutationSvc mutationUseCase
	dispatchSvc dispatchUseCase
	healthSvc   healthUseCase
	obs         *observer
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		fanoutQueue:    defaultFanoutQueue,
		schemaCacheTTL: defaultSchemaCacheTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("nxx: database address required (use WithRedis)")
	}
	if cfg.fanoutQueue == "" {
		return nil, errors.New("nxx: fan-out queue name must not be empty")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err != nil {
		return nil, fmt.Errorf("nxx: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("nxx: database not ready: %w", err)
	}

	return wireClient(store, cfg, obs), nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	registry := schemauc.New(applicationrepo.New(store), cfg.schemaCacheTTL)
	subs := subscriptionrepo.New(store)
	q := queue.New(store, zap.NewNop())

	return &Client{
		store:       store,
		schemaSvc:   registry,
		subSvc:      subscriptionuc.New(subs, registry),
		mutationSvc: mutationuc.New(registry, q, cfg.fanoutQueue),
		dispatchSvc: fanoutuc.New(subs, registry, bindingrepo.New(store), q, zap.NewNop()),
		healthSvc:   healthuc.New(store),
		obs:         obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// RegisterSchema validates app and stores it, replacing any previous schema for appID.
func (c *Client) RegisterSchema(ctx context.Context, appID string, app Application) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("register_schema", start, err, appAttr(appID)) }()

	return c.schemaSvc.Register(ctx, appID, app)
}

// Schema returns the registered schema of appID, or ErrSchemaNotFound.
func (c *Client) Schema(ctx context.Context, appID string) (_ Application, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_schema", start, err, appAttr(appID)) }()

	return c.schemaSvc.Get(ctx, appID)
}

// DeleteSchema removes the schema of appID.
func (c *Client) DeleteSchema(ctx context.Context, appID string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_schema", start, err, appAttr(appID)) }()

	return c.schemaSvc.Delete(ctx, appID)
}

// Subscribe adds a device to the channel described by s.
func (c *Client) Subscribe(ctx context.Context, s Subscription) (_ Channel, err error) {
	start := time.Now()
	defer func() { c.obs.observe("subscribe", start, err, subscriptionAttrs(s)...) }()

	ch, err := c.subSvc.Subscribe(ctx, s.request())
	if err != nil {
		return Channel{}, err
	}
	return channelOf(ch), nil
}

// Unsubscribe removes a device from the channel described by s.
// It returns ErrDeviceNotConnected when the device was not subscribed.
func (c *Client) Unsubscribe(ctx context.Context, s Subscription) (_ Channel, err error) {
	start := time.Now()
	defer func() { c.obs.observe("unsubscribe", start, err, subscriptionAttrs(s)...) }()

	ch, err := c.subSvc.Unsubscribe(ctx, s.request())
	if err != nil {
		return Channel{}, err
	}
	return channelOf(ch), nil
}

// ValidatePatch checks every operation against its application's schema.
// The first failure is returned as a *PatchError.
func (c *Client) ValidatePatch(ctx context.Context, ops ...PatchOperation) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("validate_patch", start, err, slog.Int("operations", len(ops))) }()

	return c.mutationSvc.ValidatePatch(ctx, ops)
}

// Publish validates e and enqueues it for the fan-out worker.
func (c *Client) Publish(ctx context.Context, e Event) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("publish", start, err, eventAttrs(e)...) }()

	return c.mutationSvc.Publish(ctx, e)
}

// Dispatch fans e out to every interested connected device without going through
// the fan-out queue.
func (c *Client) Dispatch(ctx context.Context, e Event) (_ DispatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("dispatch", start, err, eventAttrs(e)...) }()

	res, err := c.dispatchSvc.Dispatch(ctx, e)
	if err != nil {
		return DispatchResult{}, err
	}
	return DispatchResult{Channels: res.Channels, Devices: res.Devices, Notified: res.Notified}, nil
}

func (s Subscription) request() subscriptionuc.Request {
	return subscriptionuc.Request{
		DeviceID: s.DeviceID,
		AppID:    s.AppID,
		Model:    s.Model,
		UserID:   s.UserID,
		Filter:   s.Filter,
	}
}

func channelOf(ch channel.Channel) Channel {
	return Channel{Name: ch.String(), Fingerprint: ch.Fingerprint()}
}

package fanout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/channel"
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/filter"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

const bindingLookups = 16

// Metrics are the optional instruments a Dispatcher reports to. Nil fields are skipped.
type Metrics struct {
	Events            *prometheus.CounterVec // label "outcome"
	Notifications     prometheus.Counter
	Devices           prometheus.Observer
	FilterEvaluations *prometheus.CounterVec // label "result": match, miss, invalid
}

// Result summarizes one dispatched event.
type Result struct {
	Channels int
	Devices  int
	Notified int
}

// Dispatcher turns one mutation event into one notification per interested device.
type Dispatcher struct {
	store     Store
	schemas   Schemas
	bindings  Bindings
	publisher Publisher
	metrics   Metrics
	logger    *zap.Logger
}

// New creates a Dispatcher.
func New(store Store, schemas Schemas, bindings Bindings, publisher Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:     store,
		schemas:   schemas,
		bindings:  bindings,
		publisher: publisher,
		logger:    logger,
	}
}

// WithMetrics attaches instruments.
func (d *Dispatcher) WithMetrics(m Metrics) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch resolves every device interested in m and publishes one device_message per
// connected device. Nothing is published unless every lookup succeeded, so a failed
// event can be redelivered as a whole. domain.ErrSchemaNotFound and
// domain.ErrInvalidEvent are returned for events that can never succeed.
func (d *Dispatcher) Dispatch(ctx context.Context, m event.Mutation) (Result, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, m)
	d.observe(res, err)

	fields := []zap.Field{
		zap.String("app_id", m.AppID()),
		zap.String("model", m.Model()),
		zap.String("record_id", m.RecordID()),
		zap.String("event", string(m.Event)),
		zap.Int("channels", res.Channels),
		zap.Int("devices", res.Devices),
		zap.Int("notified", res.Notified),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		d.logger.Warn("dispatch failed", append(fields, zap.Error(err))...)
		return res, err
	}
	d.logger.Info("dispatched", fields...)
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, m event.Mutation) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	app, err := d.schemas.Get(ctx, m.AppID())
	if err != nil {
		return Result{}, fmt.Errorf("resolve schema: %w", err)
	}
	model, ok := app.Model(m.Model())
	if !ok {
		return Result{}, fmt.Errorf("model %q of %s: %w", m.Model(), m.AppID(), domain.ErrSchemaNotFound)
	}

	bases, err := baseChannels(m)
	if err != nil {
		return Result{}, err
	}

	devices, channels, err := d.resolveDevices(ctx, bases, model, m.Data)
	if err != nil {
		return Result{Channels: channels}, err
	}
	res := Result{Channels: channels, Devices: len(devices)}

	targets, err := d.resolveTransports(ctx, devices)
	if err != nil {
		return res, err
	}

	for _, t := range targets {
		if err := d.publisher.Publish(ctx, t.transport, event.NewNotification(t.deviceID, m)); err != nil {
			return res, fmt.Errorf("notify %s via %s: %w", t.deviceID, t.transport, err)
		}
		res.Notified++
	}
	return res, nil
}

// baseChannels lists the unfiltered channels m can belong to: the model channel and,
// when the record has an owner, that user's channel within the model.
func baseChannels(m event.Mutation) ([]channel.Channel, error) {
	modelCh, err := channel.New(m.AppID(), m.Model(), "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
	}
	bases := []channel.Channel{modelCh}

	if userID := m.UserID(); userID != "" {
		userCh, err := channel.New(m.AppID(), m.Model(), userID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
		}
		bases = append(bases, userCh)
	}
	return bases, nil
}

// resolveDevices unions, across every base channel, its unfiltered devices and the
// devices behind each registered filter the record matches. Base channels are
// resolved concurrently.
func (d *Dispatcher) resolveDevices(
	ctx context.Context, bases []channel.Channel, model domschema.Model, record map[string]any,
) ([]string, int, error) {
	perBase := make([][]string, len(bases))
	counts := make([]int, len(bases))

	g, gctx := errgroup.WithContext(ctx)
	for i, base := range bases {
		g.Go(func() error {
			devices, n, err := d.resolveBase(gctx, base, model, record)
			if err != nil {
				return err
			}
			perBase[i], counts[i] = devices, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{})
	channels := 0
	for i, devices := range perBase {
		channels += counts[i]
		for _, dev := range devices {
			seen[dev] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for dev := range seen {
		out = append(out, dev)
	}
	sort.Strings(out)
	return out, channels, nil
}

func (d *Dispatcher) resolveBase(
	ctx context.Context, base channel.Channel, model domschema.Model, record map[string]any,
) ([]string, int, error) {
	devices, err := d.store.GetAllDevices(ctx, base)
	if err != nil {
		return nil, 0, fmt.Errorf("devices of %s: %w", base, err)
	}
	channels := 1

	filters, err := d.store.GetAllFilters(ctx, base)
	if err != nil {
		return nil, 0, fmt.Errorf("filters of %s: %w", base, err)
	}

	fingerprints := make([]string, 0, len(filters))
	for fp := range filters {
		fingerprints = append(fingerprints, fp)
	}
	sort.Strings(fingerprints)

	for _, fp := range fingerprints {
		body := filters[fp]
		if !d.matches(base, fp, body, model, record) {
			continue
		}
		filtered := base.WithCanonicalFilter(body)
		matched, err := d.store.GetAllDevices(ctx, filtered)
		if err != nil {
			return nil, 0, fmt.Errorf("devices of %s: %w", filtered, err)
		}
		devices = append(devices, matched...)
		channels++
	}
	return devices, channels, nil
}

// matches evaluates one registered filter against the record. A filter that no longer
// compiles against the model (the schema changed after it was registered) matches nothing.
func (d *Dispatcher) matches(
	base channel.Channel, fp string, body []byte, model domschema.Model, record map[string]any,
) bool {
	q, err := compileRegistered(body, model)
	if err != nil {
		d.incFilter("invalid")
		d.logger.Warn("skipping unusable filter",
			zap.String("channel", base.String()), zap.String("fingerprint", fp), zap.Error(err))
		return false
	}
	if q.Matches(record) {
		d.incFilter("match")
		return true
	}
	d.incFilter("miss")
	return false
}

func compileRegistered(body []byte, model domschema.Model) (*filter.Query, error) {
	expr, err := filter.Parse(body)
	if err != nil {
		return nil, err
	}
	return filter.New(expr, model)
}

type target struct {
	deviceID  string
	transport string
}

// resolveTransports looks up every device's binding; unbound devices are dropped.
func (d *Dispatcher) resolveTransports(ctx context.Context, devices []string) ([]target, error) {
	bound := make([]target, len(devices))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bindingLookups)
	for i, dev := range devices {
		g.Go(func() error {
			transport, ok, err := d.bindings.Current(gctx, dev)
			if err != nil {
				return fmt.Errorf("transport of %s: %w", dev, err)
			}
			if ok {
				bound[i] = target{deviceID: dev, transport: transport}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := bound[:0]
	for _, t := range bound {
		if t.transport != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

func (d *Dispatcher) observe(res Result, err error) {
	if d.metrics.Events != nil {
		d.metrics.Events.WithLabelValues(Outcome(err)).Inc()
	}
	if err != nil {
		return
	}
	if d.metrics.Notifications != nil {
		d.metrics.Notifications.Add(float64(res.Notified))
	}
	if d.metrics.Devices != nil {
		d.metrics.Devices.Observe(float64(res.Devices))
	}
}

func (d *Dispatcher) incFilter(result string) {
	if d.metrics.FilterEvaluations != nil {
		d.metrics.FilterEvaluations.WithLabelValues(result).Inc()
	}
}

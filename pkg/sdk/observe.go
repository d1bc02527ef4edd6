package nxx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nxx-sync/nxx/internal/domain"
)

// Operation outcomes. A rejection is a request the engine refused on its merits
// (bad filter, unknown channel); an error is a failure to reach the store or queue.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

var rejections = []error{
	domain.ErrInvalidSchema,
	domain.ErrSchemaNotFound,
	domain.ErrChannelNotFound,
	domain.ErrDeviceNotConnected,
	domain.ErrInvalidFilterQuery,
	domain.ErrInvalidPatch,
	domain.ErrInvalidEvent,
	domain.ErrInvalidSubscription,
}

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	for _, target := range rejections {
		if errors.Is(err, target) {
			return outcomeRejected
		}
	}
	return outcomeError
}

type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nxx",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by name and outcome (ok, rejected, error).",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nxx",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points it at the collector already registered under
// the same name so several clients can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("nxx: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("nxx: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer reports every client operation. A nil observer is silent.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// observe records op. attrs identify what the operation touched (app, channel, device).
func (o *observer) observe(op string, start time.Time, err error, attrs ...slog.Attr) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, result).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	attrs = append(attrs, slog.String("op", op), slog.Duration("duration", dur))
	switch result {
	case outcomeOK:
		o.logger.LogAttrs(context.Background(), slog.LevelDebug, "operation completed", attrs...)
	case outcomeRejected:
		o.logger.LogAttrs(context.Background(), slog.LevelInfo, "operation rejected",
			append(attrs, slog.String("reason", err.Error()))...)
	default:
		o.logger.LogAttrs(context.Background(), slog.LevelWarn, "operation failed",
			append(attrs, slog.Any("error", err))...)
	}
}

func appAttr(appID string) slog.Attr { return slog.String("app_id", appID) }

func subscriptionAttrs(s Subscription) []slog.Attr {
	attrs := []slog.Attr{appAttr(s.AppID), slog.String("device_id", s.DeviceID)}
	if s.Model != "" {
		attrs = append(attrs, slog.String("model", s.Model))
	}
	if s.UserID != "" {
		attrs = append(attrs, slog.String("user_id", s.UserID))
	}
	return attrs
}

func eventAttrs(e Event) []slog.Attr {
	attrs := []slog.Attr{slog.String("event", string(e.Event))}
	if app, ok := e.Data["appId"].(string); ok {
		attrs = append(attrs, appAttr(app))
	}
	if model, ok := e.Data["type"].(string); ok {
		attrs = append(attrs, slog.String("model", model))
	}
	return attrs
}

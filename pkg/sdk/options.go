package nxx

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string
	db       int

	fanoutQueue    string
	schemaCacheTTL time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis or Valkey instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCluster configures several seed addresses of one deployment.
func WithCluster(addrs []string, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = append([]string(nil), addrs...)
		c.password = password
	})
}

// WithDB selects a logical database on a standalone server.
func WithDB(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.db = n
	})
}

// WithFanoutQueue sets the queue Publish enqueues onto. Default: "fanout".
// It must match the queue the fan-out workers consume.
func WithFanoutQueue(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.fanoutQueue = name
	})
}

// WithSchemaCacheTTL sets how long a loaded schema is served from memory.
// Default: 30s.
func WithSchemaCacheTTL(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.schemaCacheTTL = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

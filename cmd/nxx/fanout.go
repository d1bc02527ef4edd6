package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nxx-sync/nxx/internal/logger"
	"github.com/nxx-sync/nxx/internal/metrics"
	bindingrepo "github.com/nxx-sync/nxx/internal/repository/binding"
	subscriptionrepo "github.com/nxx-sync/nxx/internal/repository/subscription"
	"github.com/nxx-sync/nxx/internal/transport/queue"
	fanoutuc "github.com/nxx-sync/nxx/internal/usecase/fanout"
)

func newFanoutCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "Consume mutation events and notify interested devices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), logger.ComponentFanout)
			if err != nil {
				return err
			}
			defer rt.close()

			metrics.RegisterFanoutMetrics()

			dispatcher := fanoutuc.New(
				subscriptionrepo.New(rt.store),
				rt.schemaRegistry(),
				bindingrepo.New(rt.store),
				rt.queue,
				rt.logger,
			).WithMetrics(fanoutuc.Metrics{
				Events:            metrics.FanoutEventsTotal,
				Notifications:     metrics.FanoutNotificationsTotal,
				Devices:           metrics.FanoutDevicesPerEvent,
				FilterEvaluations: metrics.FanoutFilterEvaluationsTotal,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				rt.logger.Info("Consuming fan-out queue", zap.String("queue", rt.cfg.Queue.Fanout))
				return rt.queue.Consume(ctx, rt.cfg.Queue.Fanout, fanoutHandler(dispatcher))
			})
			if metricsAddr != "" {
				g.Go(func() error {
					return serveHTTP(ctx, rt.logger, metricsServer(metricsAddr), 5*time.Second)
				})
			}
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (disabled when empty)")
	return cmd
}

// fanoutHandler marks events that can never be dispatched as permanent so the queue
// drops them instead of redelivering.
func fanoutHandler(d *fanoutuc.Dispatcher) queue.Handler {
	return func(ctx context.Context, body []byte) error {
		err := d.HandleMessage(ctx, body)
		if fanoutuc.IsFatal(err) {
			return queue.Permanent(err)
		}
		return err
	}
}

func metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}

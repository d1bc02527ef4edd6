package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nxx-sync/nxx/internal/logger"
	"github.com/nxx-sync/nxx/internal/metrics"
	bindingrepo "github.com/nxx-sync/nxx/internal/repository/binding"
	chiTransport "github.com/nxx-sync/nxx/internal/transport/chi"
	wsTransport "github.com/nxx-sync/nxx/internal/transport/websocket"
)

func newWebsocketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "websockets",
		Short: "Hold device connections and push their notifications",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), logger.ComponentWebsockets)
			if err != nil {
				return err
			}
			defer rt.close()

			metrics.RegisterHTTPMetrics()
			metrics.RegisterWebsocketMetrics()

			wsCfg := rt.cfg.Websockets
			gateway := wsTransport.New(
				bindingrepo.New(rt.store), rt.queue, rt.cfg.Queue.TransportPrefix, rt.logger,
			).WithSettings(wsTransport.Settings{
				WriteTimeout: wsCfg.WriteTimeout(),
				BindingTTL:   wsCfg.BindingTTL(),
				PingInterval: wsCfg.BindingTTL() / 3,
			}).WithMetrics(metrics.WebsocketConnections, metrics.WebsocketMessagesTotal)

			rt.logger.Info("Transport worker ready",
				zap.String("worker_id", gateway.ID()),
				zap.String("queue", gateway.Queue()),
			)

			r := chi.NewRouter()
			r.Use(chiTransport.JSONRecoverer(rt.logger))
			r.Use(chiMiddleware.RequestID)
			r.Use(metrics.Middleware())
			r.Handle("/metrics", promhttp.Handler())
			r.With(chiTransport.BearerAuthMiddleware(rt.cfg.Auth.APIKeys)).Handle(wsCfg.Path, gateway)

			// No write timeout: connections are long-lived and carry their own deadlines.
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", wsCfg.Port),
				Handler:           r,
				ReadHeaderTimeout: time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return gateway.Run(ctx) })
			g.Go(func() error {
				return serveHTTP(ctx, rt.logger, srv, time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
			})
			return g.Wait()
		},
	}
}

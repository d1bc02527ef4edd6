package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nxx-sync/nxx/internal/logger"
	"github.com/nxx-sync/nxx/internal/metrics"
	subscriptionrepo "github.com/nxx-sync/nxx/internal/repository/subscription"
	chiTransport "github.com/nxx-sync/nxx/internal/transport/chi"
	healthuc "github.com/nxx-sync/nxx/internal/usecase/health"
	mutationuc "github.com/nxx-sync/nxx/internal/usecase/mutation"
	subscriptionuc "github.com/nxx-sync/nxx/internal/usecase/subscription"
)

func newAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Serve the edge HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), logger.ComponentAPI)
			if err != nil {
				return err
			}
			defer rt.close()

			metrics.RegisterHTTPMetrics()
			metrics.RegisterFanoutMetrics()

			registry := rt.schemaRegistry()
			subscriptions := subscriptionuc.New(subscriptionrepo.New(rt.store), registry)
			mutations := mutationuc.New(registry, rt.queue, rt.cfg.Queue.Fanout)
			health := healthuc.New(rt.store)
			rt.logger.Info("Health checks registered", zap.Strings("checks", health.Names()))

			server := chiTransport.NewServer(registry, subscriptions, mutations, health, rt.logger)
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", rt.cfg.HTTP.Port),
				Handler:      chiTransport.NewRouter(server, rt.logger, rt.cfg.Auth.APIKeys),
				ReadTimeout:  time.Duration(rt.cfg.HTTP.ReadTimeoutSec) * time.Second,
				WriteTimeout: time.Duration(rt.cfg.HTTP.WriteTimeoutSec) * time.Second,
			}

			return serveHTTP(cmd.Context(), rt.logger, srv, time.Duration(rt.cfg.HTTP.ShutdownSec)*time.Second)
		},
	}
}

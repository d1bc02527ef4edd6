package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nxx-sync/nxx/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nxx",
		Short:         "Realtime sync: edge API, fan-out worker and WebSocket gateway",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newAPICmd(), newFanoutCmd(), newWebsocketsCmd())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"storyreel/internal/daemon"
	"storyreel/internal/engine"
	"storyreel/internal/logging"
	"storyreel/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the storyreel daemon with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer st.Close()

			eng, err := engine.Build(cfg, st, logger)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, st, eng, logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "storyreel daemon listening on %s\n", d.Status().APIBind)

			<-ctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return d.Stop(stopCtx)
		},
	}
}

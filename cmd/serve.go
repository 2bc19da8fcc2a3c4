package main

import (
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/footfall/internal/app"
	"github.com/okian/footfall/pkg/logger"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API over an existing store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := c.cfg
			if addr != "" {
				cfg.Addr = addr
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Get().Error(ctx, "failed to close store", logger.Error(err))
				}
			}()

			// Never started: /stats reports store totals only.
			svc := service.New(cfg, store, service.WithLogger(logger.Get()))

			go startSystemMetricsUpdater(ctx)

			srv := newHTTPServer(ctx, cfg.Addr, store, svc)
			errc := startHTTPServer(ctx, srv)
			defer shutdownHTTPServer(ctx, srv)

			select {
			case <-ctx.Done():
				return nil
			case err := <-errc:
				if err != nil {
					return fmt.Errorf("HTTP server failed: %w", err)
				}
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Override the HTTP listen address")
	return cmd
}

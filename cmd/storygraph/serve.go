package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/storygraph"
	"github.com/aretw0/storygraph/internal/metrics"
	httpAdapter "github.com/aretw0/storygraph/pkg/adapters/http"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Starts the story engine in server mode, exposing the game and story endpoints as a JSON API over HTTP.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				c.cfg.Port, _ = cmd.Flags().GetString("port")
			}

			collector := metrics.New()
			streams := httpAdapter.NewStreamManager(c.logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := c.open(ctx,
				storygraph.WithLifecycleHooks(collector.Hooks()),
				storygraph.WithLifecycleHooks(streams.Hooks()),
			)
			if err != nil {
				return fmt.Errorf("error initializing storygraph: %w", err)
			}
			defer a.Close()

			handler := httpAdapter.NewHandler(a.sg,
				httpAdapter.WithLogger(c.logger),
				httpAdapter.WithMetrics(collector),
				httpAdapter.WithStreams(streams),
				httpAdapter.WithCORSOrigins(c.cfg.CORSOrigins...),
				httpAdapter.WithVersion(storygraph.Version),
			)

			srv := &http.Server{
				Addr:              ":" + c.cfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Channel to listen for errors coming from the listener.
			serverErrors := make(chan error, 1)
			go func() {
				c.logger.Info("Starting storygraph server", "addr", srv.Addr, "config", c.cfg)
				serverErrors <- srv.ListenAndServe()
			}()

			// Blocking main and waiting for shutdown.
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case <-ctx.Done():
				c.logger.Info("Start shutdown")

				// Give outstanding requests a deadline for completion.
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					c.logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
					if err := srv.Close(); err != nil {
						return fmt.Errorf("error killing server: %w", err)
					}
				}
				c.logger.Info("Storygraph server stopped gracefully")
				return nil
			}
		},
	}
	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	return cmd
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsearch/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(flags *rootFlags) *cobra.Command {
	var (
		addr string
		warm bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if warm {
				cfgs, err := a.store.ListCollections(ctx)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(cfgs))
				for _, c := range cfgs {
					names = append(names, c.Name)
				}
				if err := a.searcher.Warm(ctx, names...); err != nil {
					return err
				}
			}

			srv := server.New(server.Config{
				Store:    a.store,
				Searcher: a.searcher,
				Metrics:  promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
				Logger:   a.logger.With("component", "http"),
			})

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}

			hs := &http.Server{
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			a.logger.Info("listening", "addr", ln.Addr().String(), "store", cfg.Store.Driver)
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())

			errc := make(chan error, 1)
			go func() { errc <- hs.Serve(ln) }()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			a.logger.Info("shutting down")

			return hs.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8000)")
	cmd.Flags().BoolVar(&warm, "warm", false, "build every collection's index before listening")

	return cmd
}

package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"assetforge/internal/server"
	"assetforge/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build, watch and serve a live preview of the output directory",
	Long: `Builds the assets, rebuilds on change and serves the output directory over
HTTP. The fragment loader script is available at ` + server.FragmentsPath + `,
Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Flags().Changed("addr") {
			addr, _ := cmd.Flags().GetString("addr")
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return fmt.Errorf("serve: invalid --addr %q: %w", addr, err)
			}
			cfg.ServeHost, cfg.ServePort = host, port
		}

		a, err := newApp(cmd.Context(), cfg, logger, true)
		if err != nil {
			return err
		}
		defer a.close()

		w, err := startWatching(cmd.Context(), a, debounceFlag(cmd))
		if err != nil {
			return err
		}
		srv := server.New(cfg.Addr(), server.NewRouter(cfg.OutputDir, a.metrics, logger), logger)

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error { return w.Run(ctx) })
		g.Go(func() error { return srv.Run(ctx) })
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address host:port (default from config)")
	serveCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a rebuild")
}

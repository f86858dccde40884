package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tomoru1741/Bloxd-Tools/internal/api"
	"github.com/tomoru1741/Bloxd-Tools/internal/config"
	"github.com/tomoru1741/Bloxd-Tools/internal/session"
	"github.com/tomoru1741/Bloxd-Tools/internal/storage"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
	"go.uber.org/zap"
)

var (
	listenAddr      string
	refreshInterval time.Duration
	watchConfig     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the loaded session over HTTP",
	Long: `Loads the item list and the dictionary, then serves them with the coverage
report, templates and refresh history over HTTP. Prometheus metrics are
exposed at /metrics.

With --config, edits to the catalog section of the file take effect on the
next refresh.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (default from config, :8080)")
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh-interval", 0, "reload both sources periodically (0 disables)")
	serveCmd.Flags().BoolVar(&watchConfig, "watch", true, "reload the catalog when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, logger, reg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	sess := a.newSession(logger, session.WithHistory(store))

	if watchConfig && configFile != "" {
		w, err := config.Watch(ctx, configFile, logger, func(next *config.Config) {
			registry, err := next.BuildRegistry()
			if err != nil {
				logger.Warn("Catalog reload failed", zap.Error(err))
				return
			}
			a.pipeline.SetRegistry(registry)
			logger.Info("Catalog reloaded; applies from the next refresh")
		})
		if err != nil {
			logger.Warn("Config watch disabled", zap.Error(err))
		} else {
			defer w.Close()
		}
	}

	if !silent {
		printBanner()
		fmt.Printf("\n  %s loading item list and dictionary...\n", clr("cyan", "●"))
	}
	refresh(ctx, sess, a)

	if refreshInterval > 0 {
		go func() {
			ticker := time.NewTicker(refreshInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					refresh(ctx, sess, a)
				}
			}
		}()
	}

	handler := api.New(sess,
		api.WithRuns(store),
		api.WithTextures(a.pipeline),
		api.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		api.WithLogger(logger))

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if !silent {
			fmt.Printf("  %s API listening on %s\n", clr("green", "✓"), clr("cyan", cfg.Server.Listen))
			fmt.Printf("  %s Database: %s\n\n", clr("dim", "●"), cfg.Storage.Path)
		}
		logger.Info("API starting", zap.String("addr", cfg.Server.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}

// refresh reloads both sources and updates the dictionary gauges.
func refresh(ctx context.Context, sess *session.Session, a *app) {
	out, err := sess.Refresh(ctx)
	snap := sess.Snapshot()
	a.metrics.SetDictionary(len(snap.Dictionary), sess.Coverage().Coverage)

	if silent {
		return
	}
	if out.ItemsErr != nil {
		warn("item list: %s", diagnoseOrKept(out.ItemsErr, len(snap.Items)))
	}
	if out.DictErr != nil {
		warn("dictionary: %s", diagnoseOrKept(out.DictErr, len(snap.Dictionary)))
	}
	if err == nil {
		fmt.Printf("  %s %d items, %d dictionary entries\n", clr("green", "✓"), len(snap.Items), len(snap.Dictionary))
		printCoverage(sess.Coverage())
	}
}

func diagnoseOrKept(err error, kept int) string {
	msg := plugin.Diagnose(err)
	if kept > 0 {
		msg += fmt.Sprintf(" (keeping %d previous entries)", kept)
	}
	return msg
}

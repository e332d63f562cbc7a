package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lucasew/slackoffload/internal/app"
	"github.com/lucasew/slackoffload/internal/handler"
	"github.com/lucasew/slackoffload/internal/logctx"
	"github.com/lucasew/slackoffload/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs quota checks on a schedule and serves on-demand runs and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		o, cleanup, err := app.New(ctx, cfg, app.Hooks{})
		if err != nil {
			return err
		}
		defer cleanup()

		sched, err := scheduler.New(viper.GetString("schedule"), o.Run)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		if err := o.Metrics.Register(registry); err != nil {
			return err
		}

		var history handler.History
		if o.Journal != nil {
			history = o.Journal
		}

		mux := http.NewServeMux()
		handler.New(sched, history).Register(mux)
		mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

		addr := viper.GetString("listen")
		server := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		logger := logctx.FromContext(ctx)
		logger.Info().Str("addr", addr).Str("schedule", viper.GetString("schedule")).Msg("Starting server")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return sched.Start(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("schedule", scheduler.DefaultSchedule, "Cron schedule of automatic runs")
	serveCmd.Flags().String("listen", ":8080", "Address of the HTTP server")

	mustBindPFlag("schedule", serveCmd.Flags().Lookup("schedule"))
	mustBindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

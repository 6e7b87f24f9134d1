package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/server"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
)

// reloadDebounce collapses bursts of word-list writes into one rebuild.
const reloadDebounce = 500 * time.Millisecond

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the statistics and reconstruction API over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ctx := cmd.Context()
			cfg := a.cfg
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			svc, err := a.service(ctx, true)
			if err != nil {
				return err
			}
			if cfg.Metrics.Enabled {
				stopMetrics, err := metrics.StartServer(fmt.Sprintf(":%d", cfg.Metrics.Port), a.metrics)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
					defer cancel()
					if err := stopMetrics(shutdownCtx); err != nil {
						slog.Error("metrics server shutdown error", "error", err)
					}
				}()
			}

			if path := cfg.Reconstruct.WordListPath; path != "" {
				engine := svc.Engine()
				a.checker.Register("wordlist", func(context.Context) health.ComponentHealth {
					return health.ComponentHealth{Status: health.StatusUp, Message: "fingerprint " + engine.Fingerprint()}
				})
				go func() {
					err := trie.Watch(ctx, path, reloadDebounce, func(t *trie.Trie, words []string) {
						engine.SwapTrie(t, trie.Fingerprint(words))
					})
					if err != nil {
						slog.Error("word list watcher stopped", "error", err)
					}
				}()
			}

			handler := server.New(svc, a.checker, server.Options{
				RequestTimeout: cfg.Server.RequestTimeout,
				DefaultTop:     cfg.Stats.Top,
				RateLimit:      cfg.Server.RateLimit,
				CORSOrigins:    cfg.Server.CORSOrigins,
			})
			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      handler.Router(a.metrics),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			go func() {
				<-ctx.Done()
				slog.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					slog.Error("server shutdown error", "error", err)
				}
			}()

			slog.Info("groupstats server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving http: %w", err)
			}
			slog.Info("groupstats server stopped")
			return nil
		}),
	}
	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on")
	return cmd
}

// SPDX-License-Identifier: MIT

// Command streamvaultd wires the module's components into a running
// process: it loads configuration, brings up the key/value store, and
// starts the background HLS segment sweeper and the Prometheus metrics
// endpoint, blocking until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sectify/streamvault/internal/audit"
	"github.com/sectify/streamvault/internal/config"
	"github.com/sectify/streamvault/internal/hlssweep"
	"github.com/sectify/streamvault/internal/lock"
	streamlog "github.com/sectify/streamvault/internal/log"
	"github.com/sectify/streamvault/internal/store"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	hlsRoot := flag.String("hls-root", "./hls", "directory the segment sweeper scans")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for the Prometheus metrics endpoint")
	flag.Parse()

	if *showVersion {
		fmt.Printf("streamvaultd %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	streamlog.Configure(streamlog.Config{Level: "info", Service: "streamvault", Version: version})
	logger := streamlog.WithComponent("streamvaultd")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	kv, err := newStore(*cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer kv.Close()

	auditLogger := audit.NewLogger()
	sweeper := hlssweep.NewSweeper(*hlsRoot, cfg.HLSSweepAge, cfg.HLSSweepInterval, auditLogger)
	locks := lock.NewManager(kv, cfg.SecretKey, cfg.MaxConcurrentPerUser, lock.DefaultTimeout,
		time.Duration(cfg.MaxWaitSeconds)*time.Second, auditLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	sweeper.Run(ctx, g)
	runLockSweepLoop(ctx, g, locks, logger)

	metricsServer := &http.Server{
		Addr:              *metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info().Str("addr", *metricsAddr).Msg("starting metrics endpoint")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	logger.Info().Msg("streamvaultd started")
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("streamvaultd exited with error")
	}
	logger.Info().Msg("streamvaultd stopped")
}

// runLockSweepLoop periodically reclaims orphaned processing-lock records,
// the same ticker-driven background-loop shape hlssweep.Sweeper.Run uses.
func runLockSweepLoop(ctx context.Context, g *errgroup.Group, locks *lock.Manager, logger zerolog.Logger) {
	g.Go(func() error {
		ticker := time.NewTicker(lock.DefaultTimeout)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				removed, err := locks.Sweep(ctx)
				if err != nil {
					logger.Error().Err(err).Msg("lock sweep failed")
					continue
				}
				if removed > 0 {
					logger.Info().Int("removed", removed).Msg("swept expired processing locks")
				}
			}
		}
	})
}

func newStore(cfg config.Config) (store.KV, error) {
	if cfg.RedisURL == "" {
		return store.NewMemoryStore(time.Minute), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return store.NewRedisStore(store.RedisConfig{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}, streamlog.WithComponent("store"))
}

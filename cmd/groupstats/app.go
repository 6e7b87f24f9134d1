package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/analysis/snapshot"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/candidates"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/groupme"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/reconstruct"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/service"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/store"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/groupstats/internal/trie"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/groupstats/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/groupstats/pkg/redis"
)

// snapshotRetention is how many reports are kept per group.
const snapshotRetention = 100

// app holds the configuration and lazily built collaborators of one
// command invocation.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	dir     *store.Directory
	files   *store.FileStore
	checker *health.Checker
	closers []func() error
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	return &app{
		cfg:     cfg,
		metrics: metrics.NewProcess(),
		dir:     store.NewDirectory(cfg.Cache.DirectoryFile),
		files:   store.NewFileStore(cfg.Cache.DataDir),
		checker: health.NewChecker(),
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}

// client builds the GroupMe client from the configured token.
func (a *app) client() (*groupme.Client, error) {
	token, err := a.cfg.GroupMe.ResolveToken()
	if err != nil {
		return nil, err
	}
	return groupme.New(a.cfg.GroupMe, token, a.metrics)
}

// syncer returns a Syncer; without a usable token it serves the cache only.
func (a *app) syncer() *store.Syncer {
	c, err := a.client()
	if err != nil {
		slog.Debug("groupme client unavailable, using cached messages only", "error", err)
		return store.NewSyncer(nil, a.files, a.dir, a.metrics)
	}
	return store.NewSyncer(c, a.files, a.dir, a.metrics)
}

func (a *app) engine() (*reconstruct.Engine, error) {
	rc := a.cfg.Reconstruct
	t, words, err := trie.LoadFile(rc.WordListPath)
	if err != nil {
		return nil, err
	}
	slog.Debug("word list loaded", "path", rc.WordListPath, "words", t.Len(), "nodes", t.Nodes())
	return reconstruct.NewEngine(t, trie.Fingerprint(words), a.searchOptions(), a.metrics), nil
}

func (a *app) searchOptions() reconstruct.Options {
	rc := a.cfg.Reconstruct
	return reconstruct.Options{
		EarlyEmitThreshold: rc.EarlyEmitThreshold,
		MaxFrontier:        rc.MaxFrontier,
		DedupeStates:       rc.DedupeStates,
		MaxPathsPerState:   rc.MaxPathsPerState,
	}
}

// service wires every enabled backend, and the engine when withEngine is
// set. Statistics and verification work without a word list.
func (a *app) service(ctx context.Context, withEngine bool) (*service.Service, error) {
	loc, err := a.cfg.Stats.Location()
	if err != nil {
		return nil, err
	}
	var engine *reconstruct.Engine
	if withEngine {
		if engine, err = a.engine(); err != nil {
			return nil, err
		}
	}
	opts := a.searchOptions()
	sc := service.Config{
		Engine:    engine,
		Options:   &opts,
		Messages:  a.syncer(),
		Groups:    a.dir,
		Location:  loc,
		Order:     a.cfg.Reconstruct.Order,
		Wildcards: a.cfg.Reconstruct.Wildcards,
	}
	sc.WordFilter = tokenizer.Options{
		SkipStopWords: a.cfg.Stats.SkipStopWords,
		MinLength:     a.cfg.Stats.MinWordLength,
	}
	a.checker.Register("directory", health.FileCheck(a.cfg.Cache.DirectoryFile))

	if a.cfg.Redis.Enabled {
		rc, err := pkgredis.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		a.checker.Register("redis", health.PingCheck(rc))
		sc.Cache = candidates.NewCache(rc, a.cfg.Redis.CacheTTL, a.metrics)
	}
	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.CandidatesTopic)
		a.closers = append(a.closers, producer.Close)
		sc.Publisher = candidates.NewPublisher(producer, a.cfg.Kafka.BatchSize, a.cfg.Reconstruct.Wildcards, a.metrics)
	}
	if a.cfg.Postgres.Enabled {
		pg, err := postgres.New(a.cfg.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.checker.Register("postgres", health.PingCheck(pg))
		snaps := snapshot.NewStore(pg, snapshotRetention)
		if err := snaps.Migrate(ctx); err != nil {
			return nil, err
		}
		sc.Snapshots = snaps
	}
	return service.New(sc), nil
}

// withApp adapts a command body that needs an app.
func withApp(fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

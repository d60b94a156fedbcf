package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/GoSim-25-26J-441/content-writeback/config"
	"github.com/GoSim-25-26J-441/content-writeback/internal/bootstrap"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repoclient"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/repository"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/service"
	"github.com/GoSim-25-26J-441/content-writeback/internal/logging"
	"github.com/GoSim-25-26J-441/content-writeback/internal/metrics"
)

const serviceName = "content-writeback"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger, closeLog, err := logging.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		log.Fatal().Err(err).Msg("init logger")
	}
	defer closeLog()
	logging.SetDefault(logger)
	l := logging.Component("main")

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("connect session store")
	}
	defer rdb.Close()

	layouts, err := bootstrap.LoadLayouts(cfg.Planner.LayoutFile)
	if err != nil {
		l.Fatal().Err(err).Msg("load layouts")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	repos := &repoclient.Factory{
		GitHub: repoclient.GitHubConfig{
			APIURL:          cfg.GitHub.APIURL,
			Token:           cfg.GitHub.Token,
			DefaultBranch:   cfg.GitHub.Branch,
			WritesPerSecond: cfg.GitHub.WritesPerSecond,
		},
		Local: repoclient.LocalConfig{
			Root:        cfg.Local.RepoRoot,
			AuthorName:  cfg.Local.AuthorName,
			AuthorEmail: cfg.Local.AuthorEmail,
		},
	}

	opts := []service.Option{
		service.WithMetrics(m),
		service.WithDefaultTTL(cfg.Review.SessionTTL),
		service.WithStoreGrace(cfg.Review.StoreGrace),
		service.WithAppliedRetention(cfg.Review.AppliedRetention),
	}

	var ledgerDB *sql.DB
	if cfg.LedgerEnabled() {
		ledgerDB, err = bootstrap.OpenLedgerDB(ctx, bootstrap.DBOptions{DSN: cfg.Database.DSN})
		if err != nil {
			l.Fatal().Err(err).Msg("connect ledger database")
		}
		defer ledgerDB.Close()

		ledger := repository.NewLedgerRepository(ledgerDB)
		if err := ledger.EnsureSchema(ctx); err != nil {
			l.Fatal().Err(err).Msg("prepare ledger schema")
		}
		opts = append(opts, service.WithLedger(ledger))
		l.Info().Msg("apply ledger enabled")
	}

	plans := service.NewPlanService(layouts, repos, cfg.Planner.PrefetchConcurrency, cfg.Planner.DiffMaxBytes, m)
	reviews := service.NewReviewService(repository.NewSessionRepository(rdb), repos, opts...)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		Redis:          rdb,
		Ledger:         ledgerDB,
		Registry:       reg,
		Metrics:        m,
		Plans:          plans,
		Reviews:        reviews,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info().Str("addr", srv.Addr).Str("env", cfg.App.Environment).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	l.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("graceful shutdown failed")
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"crowdvault/internal/escrow/guard"
	"crowdvault/internal/escrow/handler"
	"crowdvault/internal/escrow/ledger"
	"crowdvault/internal/escrow/metrics"
	"crowdvault/internal/escrow/models"
	"crowdvault/internal/escrow/service"
	jwttoken "crowdvault/internal/jwt_token"
	"crowdvault/internal/notice"
	"crowdvault/internal/platform/config"
	"crowdvault/internal/platform/httpserver"
	"crowdvault/internal/platform/logger"
	platformpg "crowdvault/internal/platform/postgres"
	platformredis "crowdvault/internal/platform/redis"
	httptransport "crowdvault/internal/transport/http"
	"crowdvault/internal/treasury"
	"crowdvault/pkg/domain"
)

const (
	jwtIssuer   = "crowdvault"
	jwtAudience = "crowdvault-api"

	// poolAccount holds subscribed funds between collection and disbursement.
	poolAccount = domain.AccountID("escrow-pool")
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, memory otherwise.
	var ledgerStore ledger.Store
	var treasuryStore treasury.Store
	if cfg.PostgresURL != "" {
		db, err := platformpg.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		if err := platformpg.Migrate(ctx, db); err != nil {
			log.Error("postgres migration failed", "error", err.Error())
			os.Exit(1)
		}
		ledgerStore = ledger.NewPostgresStore(db)
		treasuryStore = treasury.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		ledgerStore = ledger.NewInMemoryStore()
		treasuryStore = treasury.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	m := metrics.New()

	// Notices fan out through an in-process sink for the HTTP endpoint and,
	// when configured, a Redis pub/sub channel for external observers.
	publisher := notice.NewPublisher(log, m)
	memorySink := notice.NewMemorySink(0)
	sinks := []notice.Sink{memorySink}

	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err.Error())
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
		sinks = append(sinks, notice.NewRedisSink(rdb.Client, cfg.NoticeChannel))
		log.Info("publishing notices to redis", "channel", cfg.NoticeChannel)
	}
	worker := notice.NewWorker(log, publisher.Events(), sinks...)

	params, err := models.NewParams(
		domain.AccountID(cfg.CustodianAccount),
		cfg.TargetAmount,
		cfg.MinFund,
		cfg.MaxFund,
		cfg.InterestPercent,
		cfg.MinSubscribe,
		time.Now(),
	)
	if err != nil {
		log.Error("invalid offer parameters", "error", err.Error())
		os.Exit(1)
	}

	escrowService := service.New(
		params,
		poolAccount,
		ledgerStore,
		treasury.NewService(treasuryStore),
		guard.NewCustodianGuard(params.Custodian),
		publisher,
		m,
		log,
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)
	escrowHandler := handler.New(escrowService, memorySink, log, jwtService)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(escrowHandler))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info("starting crowdvault", "addr", cfg.Addr, "custodian", params.Custodian.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err.Error())
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

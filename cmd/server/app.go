package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcadapter "github.com/simaogato/investpool-backend/internal/adapter/grpc"
	"github.com/simaogato/investpool-backend/internal/adapter/oracle"
	"github.com/simaogato/investpool-backend/internal/adapter/oracle/binance"
	badgerstore "github.com/simaogato/investpool-backend/internal/adapter/repository/badger"
	"github.com/simaogato/investpool-backend/internal/adapter/repository/memory"
	"github.com/simaogato/investpool-backend/internal/adapter/repository/postgres"
	"github.com/simaogato/investpool-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/investpool-backend/internal/adapter/rest"
	"github.com/simaogato/investpool-backend/internal/config"
	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/logger"
	"github.com/simaogato/investpool-backend/internal/scheduler"
	"github.com/simaogato/investpool-backend/internal/usecase/accountant"
	"github.com/simaogato/investpool-backend/internal/usecase/seeder"
)

// app holds the wired components shared by every command
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	accountant *accountant.AccountantService
	store      domain.PoolStore
	closers    []io.Closer
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Pretty: cfg.Logging.Pretty})
	logger.SetGlobalLogger(log)

	a := &app{cfg: cfg, log: log}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.accountant = accountant.NewAccountantService(a.store, a.buildOracle(), accountant.Config{
		PoolKey:        cfg.Pool.Key,
		MaxCASAttempts: cfg.Pool.MaxCASAttempts,
		MaxRetries:     cfg.Pool.MaxRetries,
		BackoffBase:    cfg.Pool.BackoffBase,
		BackoffMax:     cfg.Pool.BackoffMax,
		RequestTimeout: cfg.Pool.RequestTimeout,
	}, log)

	if err := seeder.NewPoolSeeder(a.store, cfg.Pool.Key, log).Seed(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed pool: %w", err)
	}
	return a, nil
}

// openStore connects the configured PoolStore
func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewDB(a.cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.closers = append(a.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.store = postgres.NewPoolStore(db)

	case config.DriverSQLite:
		db, err := sqlite.New(a.cfg.Store.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db)
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		a.store = sqlite.NewPoolStore(db)

	case config.DriverBadger:
		store, err := badgerstore.Open(badgerstore.Config{Path: a.cfg.Store.Path, SyncWrites: true}, a.log)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, store)
		a.store = store

	default:
		a.log.Warn().Msg("using in-memory store, pool state is lost on restart")
		a.store = memory.NewStore()
	}

	a.log.Info().Str("driver", a.cfg.Store.Driver).Str("pool_key", a.cfg.Pool.Key).Msg("store ready")
	return nil
}

// buildOracle returns the configured oracle behind a circuit breaker, or nil
func (a *app) buildOracle() domain.PriceOracle {
	if a.cfg.Oracle.Provider != config.OracleBinance {
		return nil
	}
	client := binance.NewClient(binance.Config{
		BaseURL:           a.cfg.Oracle.BaseURL,
		APIKey:            a.cfg.Oracle.APIKey,
		APISecret:         a.cfg.Oracle.APISecret,
		Asset:             a.cfg.Oracle.Asset,
		Timeout:           a.cfg.Oracle.Timeout,
		RequestsPerSecond: a.cfg.Oracle.RequestsPerSecond,
	})
	return oracle.NewBreaker(client, oracle.DefaultBreakerConfig(), a.log)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Error().Err(err).Msg("close failed")
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	grpcServer := grpclib.NewServer(grpclib.ChainUnaryInterceptor(
		grpcadapter.LoggingInterceptor(a.log),
		grpcadapter.AuthInterceptor(a.cfg.Server.APIToken),
	))
	grpcadapter.RegisterPoolServiceServer(grpcServer, grpcadapter.NewServer(a.accountant))
	reflection.Register(grpcServer)

	httpServer := rest.New(rest.Config{
		Addr:       a.cfg.Server.HTTPAddr,
		APIToken:   a.cfg.Server.APIToken,
		Log:        a.log,
		Accountant: a.accountant,
	})

	sched := scheduler.New(a.log)
	if a.cfg.Refresh.Enabled {
		job := scheduler.NewRefreshJob(a.accountant, a.cfg.Pool.RequestTimeout, a.log)
		if err := sched.AddJob(a.cfg.Refresh.Schedule, job); err != nil {
			return fmt.Errorf("schedule refresh: %w", err)
		}
	}

	lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.GRPCAddr, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info().Str("addr", a.cfg.Server.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(httpServer.Start)
	sched.Start()

	g.Go(func() error {
		<-gCtx.Done()
		a.log.Info().Msg("shutting down gracefully")

		sched.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpclib.ErrServerStopped) {
		return err
	}
	a.log.Info().Msg("stopped")
	return nil
}

func runRefresh(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	view, err := a.accountant.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "pool value %s, share price %s, %d members (version %d)\n",
		view.Record.CurrentValue.String(), view.Summary.SharePrice.String(),
		view.Summary.MemberCount, view.Record.Version)
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"bizadmin.org/internal/actiontype"
	"bizadmin.org/internal/auth"
	"bizadmin.org/internal/config"
	"bizadmin.org/internal/httpapi"
	"bizadmin.org/internal/obs"
	"bizadmin.org/internal/permission"
	"bizadmin.org/internal/store/cache"
	"bizadmin.org/internal/store/memory"
	"bizadmin.org/internal/store/pg"
	"bizadmin.org/internal/stream"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("BIZADMIN_CONFIG"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	logger := obs.NewLogger(obs.LogConfig{Level: cfg.Log.Level, File: cfg.Log.File})
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var (
		store auth.ConsoleStore
		ready httpapi.ReadinessChecker = httpapi.ReadyProbe{}
	)
	switch cfg.Database.Driver {
	case config.DriverMemory:
		logger.Warn("memory_store", zap.String("detail", "console data is lost on restart"))
		store = memory.New()
	default:
		pgStore, err := pg.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer pgStore.Close()
		store = pgStore
		ready = httpapi.ReadyProbe{DB: pgStore.DB()}
	}

	tracker := actiontype.NewTracker(actiontype.Catalog)
	hub := stream.New()
	hub.Attach(tracker)
	opts := []auth.Option{auth.WithTracker(tracker)}

	var finder auth.OrganizationFinder
	if cfg.Redis.Addr != "" {
		client := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		// The cache reads through to the store; the service invalidates it.
		orgs, err := cache.NewOrganizations(client, store, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("organization cache: %w", err)
		}
		finder = orgs
		opts = append(opts, auth.WithInvalidator(orgs))
	}

	console, err := auth.NewConsoleService(store, opts...)
	if err != nil {
		return err
	}
	if cfg.Bootstrap.Email != "" {
		admin, org, err := console.Bootstrap(ctx, cfg.Bootstrap.Organization, cfg.Bootstrap.Email, cfg.Bootstrap.Password)
		if err != nil {
			return fmt.Errorf("bootstrap service admin: %w", err)
		}
		logger.Info("bootstrap_ready",
			zap.String("user_id", admin.ID),
			zap.String("organization_id", org.ID))
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	navigation := permission.Default()
	if cfg.Permissions.ConsoleFile != "" {
		navigation, err = permission.LoadFile(cfg.Permissions.ConsoleFile)
		if err != nil {
			return fmt.Errorf("load permission tables: %w", err)
		}
		logger.Info("permission_tables_loaded",
			zap.String("file", cfg.Permissions.ConsoleFile),
			zap.Int("routes", len(navigation.Routes())))
	}

	api, err := httpapi.New(httpapi.Deps{
		Console:       console,
		Tokens:        tokens,
		Organizations: finder,
		Navigation:    navigation,
		Tracker:       tracker,
		Stream:        hub,
		Ready:         ready,
		Version:       version,
		RateBurst:     cfg.Rate.Burst,
		RatePerSecond: cfg.Rate.PerSecond,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthServer(ready)
	grpcSrv := grpc.NewServer()
	health.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http_listen", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	if cfg.Server.GRPCAddr != "" {
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info("grpc_listen", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			health.Run(gctx, 10*time.Second)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting_down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

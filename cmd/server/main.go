package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/rl1809/chemflo/internal/adapter/handler"
	"github.com/rl1809/chemflo/internal/adapter/storage"
	"github.com/rl1809/chemflo/internal/config"
	"github.com/rl1809/chemflo/internal/core/service"
	"github.com/rl1809/chemflo/internal/logger"
	"github.com/rl1809/chemflo/internal/port"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var envFile string

	root := &cobra.Command{
		Use:           "chemflo",
		Short:         "Chemical product registry and stock ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	root.PersistentFlags().String("store", config.StoreMySQL, "store backend: mysql|memory")
	v.BindPFlag("store", root.PersistentFlags().Lookup("store"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
	serve.Flags().String("port", "5000", "HTTP listen port")
	serve.Flags().String("grpc-addr", ":50051", "gRPC listen address")
	v.BindPFlag("port", serve.Flags().Lookup("port"))
	v.BindPFlag("grpc_addr", serve.Flags().Lookup("grpc-addr"))

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create the products and inventory tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

func openMySQL(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return storage.OpenMySQL(ctx, storage.MySQLOptions{
		Host:         cfg.DBHost,
		Port:         cfg.DBPort,
		User:         cfg.DBUser,
		Password:     cfg.DBPassword,
		Database:     cfg.DBName,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if cfg.Store != config.StoreMySQL {
		return fmt.Errorf("migrate needs the %s store, got %s", config.StoreMySQL, cfg.Store)
	}

	db, err := openMySQL(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("schema applied", zap.String("database", cfg.DBName))
	return nil
}

func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	var store port.Store
	switch cfg.Store {
	case config.StoreMemory:
		store = storage.NewMemoryAdapter()
		log.Info("using in-memory store")
	default:
		db, err := openMySQL(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		store = storage.NewMySQLAdapter(db)
		log.Info("connected to mysql",
			zap.String("host", cfg.DBHost),
			zap.String("database", cfg.DBName),
		)
	}

	var idempotency port.IdempotencyRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		idempotency = storage.NewRedisAdapter(rdb, cfg.IdempotencyTTL)
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		idempotency = storage.NewMemoryIdempotency(cfg.IdempotencyTTL)
	}

	inventoryService := service.NewInventoryService(store, idempotency, log, cfg.StoreTimeout)

	// gRPC health
	grpcServer := grpc.NewServer()
	handler.NewGRPCHandler(inventoryService, log).Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	go func() {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(lis); err != nil {
			log.Error("gRPC server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler.NewHTTPHandler(inventoryService, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-serveErr:
		log.Error("HTTP server error", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	log.Info("gRPC server stopped")

	return runErr
}

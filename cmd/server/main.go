/*
main.go - Application entry point

PURPOSE:
  Starts the payroll ledger HTTP server. Handles configuration, store
  selection, dependency wiring and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load .env if present, then config (defaults, YAML file, PAYROLL_* env,
     flags) and validate
  3. Open the journal store (memory, sqlite or postgres)
  4. Open the service: fresh ledger, or restored from the latest snapshot
  5. Start the journal auditor
  6. Configure HTTP router and serve

COMMAND-LINE FLAGS:
  --config   YAML config file (optional)
  --addr     HTTP listen address (overrides http.addr)
  --driver   Store driver: memory, sqlite, postgres
  --db       Store DSN: SQLite path or PostgreSQL URL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the auditor
  4. Close the store

EXAMPLES:
  # SQLite file, admin from the environment
  PAYROLL_ADMIN=0xAdmin PAYROLL_JWT_SECRET=dev ./server --db=./data/payroll.db

  # Throwaway in-memory ledger
  ./server --config=payroll.yaml --driver=memory

SEE ALSO:
  - config/config.go: Configuration sources and fields
  - api/server.go: Router configuration
  - service/service.go: Durable executor
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/warp/payroll-ledger/api"
	"github.com/warp/payroll-ledger/config"
	"github.com/warp/payroll-ledger/journal"
	"github.com/warp/payroll-ledger/service"
	"github.com/warp/payroll-ledger/store/postgres"
	"github.com/warp/payroll-ledger/store/sqlite"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "payroll-server: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("payroll-server", pflag.ContinueOnError)
	configPath := flags.String("config", "", "YAML config file")
	addr := flags.String("addr", "", "HTTP listen address")
	driver := flags.String("driver", "", "store driver: memory, sqlite, postgres")
	dsn := flags.String("db", "", "store DSN: SQLite path or PostgreSQL URL")
	if err := flags.Parse(args); err != nil {
		return err
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr = *addr
	}
	if flags.Changed("driver") {
		cfg.Store.Driver = *driver
	}
	if flags.Changed("db") {
		cfg.Store.DSN = *dsn
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	initialFund, _ := cfg.InitialFund()
	svc, err := service.Open(ctx, service.Config{
		Ledger:      cfg.PayrollConfig(),
		InitialFund: initialFund,
		Logger:      logger,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}

	auditor := service.NewAuditor(svc, logger)
	interval, _ := cfg.AuditInterval()
	auditor.CheckInterval = interval
	auditor.Enabled = interval > 0
	auditor.Start()
	defer auditor.Stop()

	handler := api.NewHandler(svc, auditor, logger)
	handler.Company = cfg.Payslip.Company
	handler.Currency = cfg.Payslip.Currency

	router := api.NewRouter(handler, api.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.HTTP.Addr, "driver", cfg.Store.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-quit:
		logger.Info("shutting down server", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (journal.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return journal.NewMemory(), func() {}, nil
	case config.DriverSQLite:
		store, err := sqlite.New(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

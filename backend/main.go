package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/api"
	"medstore/m/internal/config"
	"medstore/m/internal/database"
	"medstore/m/internal/export"
	"medstore/m/internal/inventory"
	"medstore/m/internal/logger"
	"medstore/m/internal/metrics"
	"medstore/m/internal/migrations"
	"medstore/m/internal/ocr"
	"medstore/m/internal/report"
	"medstore/m/internal/repository/memory"
	"medstore/m/internal/repository/sqlstore"
	"medstore/m/internal/seed"
	"medstore/m/internal/storage"
)

func main() {
	os.Exit(start())
}

// start returns the process exit code so every deferred call, including
// the logger flush, runs before the process exits.
func start() int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// The logger is configured from cfg, so this one goes to stderr.
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		return 1
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	return exitCode(log, run(cfg, log))
}

// exitCode logs a fatal run error and flushes the logger.
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server stopped", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	inv := inventory.NewService(store, log, inventory.Options{
		LotPolicy:       inventory.LotPolicy(cfg.Inventory.LotPolicy),
		DefaultMinStock: cfg.Inventory.DefaultMinStock,
		ExpiryAlertDays: cfg.Inventory.ExpiryAlertDays,
		DefaultGSTRate:  cfg.Inventory.GSTRate(),
		Observer:        m,
	})
	reports := report.NewService(store, log, cfg.Inventory.ExpiryAlertDays, nil)

	files, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}

	var ocrClient *ocr.Client
	if cfg.OCR.Endpoint != "" {
		if ocrClient, err = ocr.New(cfg.OCR.Endpoint, cfg.OCR.APIKey, cfg.OCR.Timeout, log); err != nil {
			return err
		}
	} else {
		log.Info("ocr endpoint not set, OCR import disabled")
	}

	formatter, err := export.NewFormatter(cfg.Export.Locale, cfg.Export.CurrencySymbol)
	if err != nil {
		return err
	}

	if err := seed.LoadMedicines(ctx, inv, cfg.Seed.CatalogPath, log); err != nil {
		return err
	}

	handler := api.New(api.Deps{
		Store:          store,
		Inventory:      inv,
		Reports:        reports,
		OCR:            ocrClient,
		Files:          files,
		Formatter:      formatter,
		Metrics:        m,
		Logger:         log,
		Secret:         cfg.Auth.Secret,
		TokenTTL:       cfg.Auth.TokenTTL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Defaults: domain.AppSettings{
			DefaultGSTRate:       cfg.Inventory.GSTRate(),
			DefaultMinStockLevel: cfg.Inventory.DefaultMinStock,
			ExpiryAlertDays:      cfg.Inventory.ExpiryAlertDays,
			CurrencySymbol:       cfg.Export.CurrencySymbol,
			Locale:               cfg.Export.Locale,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("medstore server starting", zap.String("addr", srv.Addr), zap.String("lot_policy", cfg.Inventory.LotPolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}

// openStore returns the configured repositories. The memory driver keeps
// everything in process and is meant for demos.
func openStore(cfg config.DatabaseConfig, log *zap.Logger) (domain.Store, func(), error) {
	if cfg.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		return memory.New(), func() {}, nil
	}
	db, err := database.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.Run(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return sqlstore.New(db), func() { _ = db.Close() }, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Store, error) {
	if cfg.Backend != "s3" {
		return storage.NewLocalStore(cfg.LocalDir, log)
	}
	s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
		Bucket:       cfg.Bucket,
		Endpoint:     cfg.Endpoint,
		Region:       cfg.Region,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		UsePathStyle: cfg.UsePathStyle,
		Prefix:       "prescriptions/",
	}, storage.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := s3Store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return s3Store, nil
}

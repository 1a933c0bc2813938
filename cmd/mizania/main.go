package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/omarfs/mizania/internal/config"
	"github.com/omarfs/mizania/internal/database"
	"github.com/omarfs/mizania/internal/database/repository"
	"github.com/omarfs/mizania/internal/logger"
	"github.com/omarfs/mizania/internal/prefs"
	"github.com/omarfs/mizania/internal/scheduler"
	"github.com/omarfs/mizania/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zlog, err := logger.New(cfg.Logging.Mode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		zlog.Fatal("mkdir db dir", zap.Error(err))
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	store := prefs.NewStore("")
	schema := database.NewSchema(db, zlog)
	txRepo := repository.NewTransactionRepo(db)
	debtRepo := repository.NewDebtRepo(db)
	alertRepo := repository.NewAlertRepo(db)

	ledger := service.NewLedger(db, zlog)
	materializer := service.NewMaterializer(db, ledger, txRepo, zlog)
	autopay := service.NewAutoPay(db, ledger, debtRepo, zlog)
	reconciler := service.NewReconciler(db, txRepo, zlog)
	currency := service.NewCurrencyMigrator(db, store, cfg.Currency.Canonical, zlog)

	maintenance := service.NewMaintenance(
		db, schema, materializer, autopay, reconciler, currency, alertRepo, store, zlog)

	// an unbootable schema is the one failure the host must surface; every
	// other pass degrades quietly
	if err := maintenance.Run(ctx); err != nil {
		zlog.Fatal("startup maintenance", zap.Error(err))
	}

	zlog.Info("ledger engine ready", zap.String("db", cfg.Database.Path))

	scheduler.New(materializer, autopay, cfg.Maintenance.Interval, zlog).Run(ctx)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"warehouse-service/config"
	"warehouse-service/internal/importer"
	"warehouse-service/internal/repository"
	"warehouse-service/internal/service"
	"warehouse-service/pkg/database"
	"warehouse-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	var (
		file   string
		dryRun bool
	)
	flag.StringVar(&file, "file", "", "путь к CSV с остатками")
	flag.StringVar(&file, "f", "", "сокращение для --file")
	flag.BoolVar(&dryRun, "dry-run", false, "только разобрать и проверить файл, ничего не записывать")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: import --file stock.csv [--dry-run]")
		os.Exit(2)
	}

	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	code := run(logger.L(), file, dryRun)
	logger.Sync()
	os.Exit(code)
}

func run(log *zap.Logger, file string, dryRun bool) int {
	f, err := os.Open(file)
	if err != nil {
		log.Error("Не удалось открыть файл", zap.String("file", file), zap.Error(err))
		return 1
	}
	defer f.Close()

	batch, err := importer.Parse(f)
	if err != nil {
		var verr *importer.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems {
				log.Error("Ошибка в файле", zap.String("problem", p))
			}
			log.Error("Файл не прошёл проверку, импорт не выполнен", zap.Int("problems", len(verr.Problems)))
			return 1
		}
		log.Error("Не удалось разобрать файл", zap.Error(err))
		return 1
	}

	dbCfg := config.LoadDB(log)
	impCfg := config.LoadImport()
	ledgerCfg := config.LoadLedger()

	db := database.ConnectDB(&dbCfg, log)
	defer database.CloseDB(db, log)

	txOpts := repository.DefaultTxOptions()
	txOpts.LockTimeout = ledgerCfg.LockTimeout
	txOpts.MaxRetries = ledgerCfg.MaxRetries
	repos := repository.NewWithOptions(db, txOpts)

	catalog := importer.NewRepoCatalog(repos, impCfg.DefaultWarehouse, impCfg.DefaultLocation)
	ledger := service.NewInventoryService(repos, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sum, err := importer.New(catalog, ledger, log).Run(ctx, batch, importer.Options{DryRun: dryRun})
	if err != nil {
		log.Error("Импорт прерван", zap.Error(err))
		return 1
	}

	for _, fl := range sum.Failed {
		log.Warn("Товар не импортирован", zap.String("sku", fl.SKU), zap.String("code", string(fl.Code)), zap.String("error", fl.Err))
	}
	log.Info("Импорт завершён",
		zap.Bool("dry_run", sum.DryRun),
		zap.Int("rows", sum.Rows),
		zap.Int("products", sum.Products),
		zap.Int("adjustments", sum.Adjustments),
		zap.Int("cleanups", sum.Cleanups),
		zap.Int("failed", len(sum.Failed)),
	)
	if len(sum.Failed) > 0 {
		return 1
	}
	return 0
}

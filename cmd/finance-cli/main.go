package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ptm-finance-backend/internal/bootstrap"
	"github.com/angelmondragon/ptm-finance-backend/internal/commands"
	"github.com/angelmondragon/ptm-finance-backend/pkg/config"
	"github.com/angelmondragon/ptm-finance-backend/pkg/db"
	"github.com/angelmondragon/ptm-finance-backend/pkg/logger"
	"github.com/angelmondragon/ptm-finance-backend/pkg/storage"
)

func main() {
	_ = godotenv.Load()

	if err := commands.NewRootCommand(open).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func open(ctx context.Context) (*commands.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logg := logger.New(logger.Options{
		ServiceName: "finance-cli",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting database: %w", err)
	}
	closeDB := func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}

	files, err := storage.NewLocal(cfg.Storage, cfg.App.PublicURL)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("preparing storage: %w", err)
	}

	services, err := bootstrap.Build(bootstrap.Params{Config: cfg, Logger: logg, DB: dbClient, Files: files})
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	return &commands.App{CashBalance: services.CashBalance, DuesImport: services.DuesImport}, closeDB, nil
}

package main

import (
	"fmt"
	"strings"

	"eco_api/internal/config"
	"eco_api/internal/logger"
	"eco_api/internal/repository"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.AppEnv, cfg.LogLevel)

			pets, err := repository.NewPetRepo(cfg.PetStoreDSN)
			if err != nil {
				return fmt.Errorf("migrate pet store: %w", err)
			}
			pets.Close()
			logger.Info("pet store migrated", "dsn", cfg.PetStoreDSN)

			url := cfg.StateStoreURL
			if url == "" || strings.HasPrefix(url, "redis://") || strings.HasPrefix(url, "rediss://") {
				logger.Info("state store needs no migration", "url_set", url != "")
				return nil
			}
			store, err := repository.NewSQLiteRepo(url)
			if err != nil {
				return fmt.Errorf("migrate state store: %w", err)
			}
			store.Close()
			logger.Info("state store migrated")
			return nil
		},
	}
}

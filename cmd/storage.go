package cmd

import (
	"context"
	"fmt"

	"github.com/kyleking/gen-console/internal/config"
	"github.com/kyleking/gen-console/internal/logging"
	"github.com/kyleking/gen-console/internal/storage"
)

// initializeStorage opens the account store and applies pending migrations
func initializeStorage(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	repo, err := storage.NewDuckDBRepositoryFromConfig(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}

	err = logging.WithField("path", cfg.Database.Path).Track("initialize account store", func() error {
		return repo.Initialize(ctx)
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	return repo, nil
}

package storage

import (
	"github.com/kyleking/gen-console/internal/config"
)

// NewDuckDBRepositoryFromConfig creates a DuckDB account store with pool and
// timeout settings from config
func NewDuckDBRepositoryFromConfig(cfg *config.DatabaseConfig) (*DuckDBRepository, error) {
	return NewDuckDBRepositoryWithOptions(config.ExpandPath(cfg.Path), Options{
		MaxOpenConns:    cfg.MaxConnections,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: config.Duration(cfg.ConnMaxLifetime),
		QueryTimeout:    config.Duration(cfg.QueryTimeout),
	})
}

package storage

import (
	"context"

	"github.com/kyleking/gen-console/internal/account"
)

// DefaultListLimit is used when a caller lists without a positive limit
const DefaultListLimit = 50

// Repository defines the account store operations behind /user-center
type Repository interface {
	Initialize(ctx context.Context) error
	CreateAccount(ctx context.Context, form account.Form) (*account.Record, error)
	UpdateAccount(ctx context.Context, form account.Form) (*account.Record, error)
	DeleteAccount(ctx context.Context, id string) error
	GetAccount(ctx context.Context, id string) (*account.Record, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]account.Record, error)
	GetStats(ctx context.Context) (*Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats represents account store statistics
type Stats struct {
	TotalAccounts   int               `json:"total_accounts"`
	EnabledAccounts int               `json:"enabled_accounts"`
	SchemaVersion   int               `json:"schema_version"`
	DatabaseSizeMB  float64           `json:"database_size_mb"`
	Migrations      []MigrationStatus `json:"migrations"`
}

package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"golang.org/x/crypto/bcrypt"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/errors"
	"github.com/kyleking/gen-console/internal/logging"
)

const accountColumns = "id, account, name, mobile, email, enabled, created_at, updated_at"

// Options tunes the connection pool and per-query deadline
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultOptions mirrors the database config defaults
func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
	}
}

// DuckDBRepository implements the Repository interface using DuckDB
type DuckDBRepository struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
	hashCost     int
	logger       *logging.Logger

	// writeMu makes the uniqueness check and the write that follows it atomic
	writeMu sync.Mutex
}

// NewDuckDBRepository creates a new DuckDB account store with default pooling
func NewDuckDBRepository(dbPath string) (*DuckDBRepository, error) {
	return NewDuckDBRepositoryWithOptions(dbPath, DefaultOptions())
}

// NewDuckDBRepositoryWithOptions creates a new DuckDB account store
func NewDuckDBRepositoryWithOptions(dbPath string, opts Options) (*DuckDBRepository, error) {
	defaults := DefaultOptions()
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaults.MaxOpenConns
	}

	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = defaults.MaxIdleConns
	}

	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = defaults.ConnMaxLifetime
	}

	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaults.QueryTimeout
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeFileSystem, "failed to create database directory").
			WithSuggestion("Check permissions on " + dir)
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database")
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to ping database").
			WithSuggestion("Another process may hold a lock on " + dbPath)
	}

	return &DuckDBRepository{
		db:           db,
		path:         dbPath,
		queryTimeout: opts.QueryTimeout,
		hashCost:     bcrypt.DefaultCost,
		logger:       logging.GetLogger().WithField("component", "storage"),
	}, nil
}

// Initialize creates the database schema using migrations
func (r *DuckDBRepository) Initialize(ctx context.Context) error {
	migrationManager := NewMigrationManager(r.db, r.logger)

	needsMigration, currentVersion, latestVersion, err := migrationManager.NeedsMigration(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to check migration status")
	}

	if needsMigration {
		r.logger.WithFields(map[string]interface{}{
			"from": currentVersion,
			"to":   latestVersion,
		}).Info("Database schema update required")
	}

	return migrationManager.MigrateUp(ctx)
}

func (r *DuckDBRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.queryTimeout)
}

// CreateAccount stores a new account with a fresh id and a bcrypt hash of
// its password
func (r *DuckDBRepository) CreateAccount(ctx context.Context, form account.Form) (*account.Record, error) {
	if err := account.Validate(form); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), r.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to hash password")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	if err := ensureAccountUnique(ctx, tx, form.Account, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	rec := account.Record{
		ID:        uuid.New().String(),
		Account:   form.Account,
		Name:      form.Name,
		Mobile:    form.Mobile,
		Email:     form.Email,
		Enabled:   form.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	insertSQL := `
	INSERT INTO accounts (
		id, account, password_hash, name, mobile, email, enabled, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insertSQL,
		rec.ID, rec.Account, string(hash), rec.Name, rec.Mobile, rec.Email, rec.Enabled,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to insert account")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to commit account")
	}

	return &rec, nil
}

// UpdateAccount replaces every editable field of the account named by
// form.ID, re-hashing the password
func (r *DuckDBRepository) UpdateAccount(ctx context.Context, form account.Form) (*account.Record, error) {
	if strings.TrimSpace(form.ID) == "" {
		return nil, errors.NewValidationError("id", "is required")
	}

	if err := account.Validate(form); err != nil {
		return nil, err
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), r.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeInternal, "failed to hash password")
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to begin transaction")
	}

	defer func() { _ = tx.Rollback() }()

	existing, err := scanAccount(tx.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", form.ID))
	if err != nil {
		return nil, notFoundOr(err, form.ID)
	}

	if err := ensureAccountUnique(ctx, tx, form.Account, form.ID); err != nil {
		return nil, err
	}

	existing.Account = form.Account
	existing.Name = form.Name
	existing.Mobile = form.Mobile
	existing.Email = form.Email
	existing.Enabled = form.Enabled
	existing.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	updateSQL := `
	UPDATE accounts SET
		account = ?, password_hash = ?, name = ?, mobile = ?, email = ?, enabled = ?, updated_at = ?
	WHERE id = ?`

	_, err = tx.ExecContext(ctx, updateSQL,
		existing.Account, string(hash), existing.Name, existing.Mobile, existing.Email,
		existing.Enabled, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to update account")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to commit account")
	}

	return existing, nil
}

// DeleteAccount removes an account by id
func (r *DuckDBRepository) DeleteAccount(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	result, err := r.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to delete account")
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return accountNotFound(id)
	}

	return nil
}

// GetAccount retrieves an account by id; the password hash is never read
func (r *DuckDBRepository) GetAccount(ctx context.Context, id string) (*account.Record, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rec, err := scanAccount(r.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
	if err != nil {
		return nil, notFoundOr(err, id)
	}

	return rec, nil
}

// ListAccounts returns accounts newest first
func (r *DuckDBRepository) ListAccounts(ctx context.Context, limit, offset int) ([]account.Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if offset < 0 {
		offset = 0
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
	SELECT ` + accountColumns + `
	FROM accounts
	ORDER BY created_at DESC, account
	LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to query accounts")
	}
	defer rows.Close()

	records := []account.Record{}

	for rows.Next() {
		rec, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to scan account")
		}

		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to iterate accounts")
	}

	return records, nil
}

// GetStats returns account counts, the applied schema version and the
// database file size
func (r *DuckDBRepository) GetStats(ctx context.Context) (*Stats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	stats := &Stats{}

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE enabled) FROM accounts",
	).Scan(&stats.TotalAccounts, &stats.EnabledAccounts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to count accounts")
	}

	migrations := NewMigrationManager(r.db, r.logger)

	version, err := migrations.GetCurrentVersion(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to read schema version")
	}

	stats.SchemaVersion = version

	stats.Migrations, err = migrations.GetMigrationStatus(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to read migration status")
	}

	if info, err := os.Stat(r.path); err == nil {
		stats.DatabaseSizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return stats, nil
}

// Clear deletes every account
func (r *DuckDBRepository) Clear(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, "DELETE FROM accounts"); err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to clear accounts")
	}

	return nil
}

// Close closes the database connection
func (r *DuckDBRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*account.Record, error) {
	var rec account.Record

	var name, mobile sql.NullString

	err := row.Scan(
		&rec.ID, &rec.Account, &name, &mobile, &rec.Email, &rec.Enabled,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Name = name.String
	rec.Mobile = mobile.String

	return &rec, nil
}

// ensureAccountUnique fails with a conflict when another row already uses
// the login name
func ensureAccountUnique(ctx context.Context, tx *sql.Tx, login, exceptID string) error {
	var count int

	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM accounts WHERE account = ? AND id <> ?", login, exceptID,
	).Scan(&count)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeDatabase, "failed to check account uniqueness")
	}

	if count > 0 {
		return errors.Newf(errors.ErrTypeConflict, "account %q already exists", login).
			WithSuggestion("Choose a different account name")
	}

	return nil
}

func accountNotFound(id string) error {
	return errors.Newf(errors.ErrTypeNotFound, "account not found: %s", id)
}

func notFoundOr(err error, id string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return accountNotFound(id)
	}

	return errors.Wrap(err, errors.ErrTypeDatabase, "failed to read account")
}

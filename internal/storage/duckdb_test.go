package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kyleking/gen-console/internal/account"
	"github.com/kyleking/gen-console/internal/config"
	"github.com/kyleking/gen-console/internal/errors"
)

func testForm(login string) account.Form {
	return account.Form{
		Account:  login,
		Password: "pw-" + login,
		Name:     "Test " + login,
		Mobile:   "13800138000",
		Email:    login + "@example.com",
		Enabled:  true,
	}
}

func passwordHash(t *testing.T, repo *DuckDBRepository, id string) string {
	t.Helper()

	var hash string

	err := repo.db.QueryRow("SELECT password_hash FROM accounts WHERE id = ?", id).Scan(&hash)
	require.NoError(t, err)

	return hash
}

func TestDuckDBRepository(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	var created *account.Record

	t.Run("CreateAccount", func(t *testing.T) {
		var err error

		created, err = repo.CreateAccount(ctx, testForm("alice"))
		require.NoError(t, err)

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "alice", created.Account)
		assert.Equal(t, "13800138000", created.Mobile)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		hash := passwordHash(t, repo, created.ID)
		assert.NotEqual(t, "pw-alice", hash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw-alice")))
	})

	t.Run("GetAccount", func(t *testing.T) {
		got, err := repo.GetAccount(ctx, created.ID)
		require.NoError(t, err)

		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "alice@example.com", got.Email)
		assert.True(t, got.Enabled)
		assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("DuplicateAccountConflicts", func(t *testing.T) {
		_, err := repo.CreateAccount(ctx, testForm("alice"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
	})

	t.Run("UpdateAccount", func(t *testing.T) {
		form := testForm("alice2")
		form.ID = created.ID
		form.Password = "rotated"
		form.Enabled = false
		form.Mobile = ""

		updated, err := repo.UpdateAccount(ctx, form)
		require.NoError(t, err)

		assert.Equal(t, created.ID, updated.ID)
		assert.Equal(t, "alice2", updated.Account)
		assert.False(t, updated.Enabled)
		assert.Empty(t, updated.Mobile)
		assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

		hash := passwordHash(t, repo, created.ID)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("rotated")))
	})

	t.Run("UpdateKeepsOwnAccountName", func(t *testing.T) {
		form := testForm("alice2")
		form.ID = created.ID

		_, err := repo.UpdateAccount(ctx, form)
		assert.NoError(t, err)
	})

	t.Run("UpdateToTakenNameConflicts", func(t *testing.T) {
		_, err := repo.CreateAccount(ctx, testForm("bob"))
		require.NoError(t, err)

		form := testForm("bob")
		form.ID = created.ID

		_, err = repo.UpdateAccount(ctx, form)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConflict))
	})

	t.Run("ListAccounts", func(t *testing.T) {
		records, err := repo.ListAccounts(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "bob", records[0].Account, "newest first")

		page, err := repo.ListAccounts(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, records[1].ID, page[0].ID)
	})

	t.Run("GetStats", func(t *testing.T) {
		stats, err := repo.GetStats(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.TotalAccounts)
		assert.Equal(t, 1, stats.EnabledAccounts)
		assert.Equal(t, NewMigrationManager(repo.db, nil).LatestVersion(), stats.SchemaVersion)

		require.Len(t, stats.Migrations, len(NewMigrationManager(repo.db, nil).GetMigrations()))
		for _, m := range stats.Migrations {
			assert.True(t, m.Applied, "migration %d", m.Version)
		}
	})

	t.Run("DeleteAccount", func(t *testing.T) {
		require.NoError(t, repo.DeleteAccount(ctx, created.ID))

		_, err := repo.GetAccount(ctx, created.ID)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

		err = repo.DeleteAccount(ctx, created.ID)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, repo.Clear(ctx))

		records, err := repo.ListAccounts(ctx, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestWritesValidateForms(t *testing.T) {
	repo := NewTestDB(t)
	ctx := context.Background()

	bad := testForm("carol")
	bad.Email = "not-an-email"

	_, err := repo.CreateAccount(ctx, bad)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	_, err = repo.UpdateAccount(ctx, testForm("carol"))
	require.Error(t, err, "update without id")
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

	missing := testForm("carol")
	missing.ID = "does-not-exist"

	_, err = repo.UpdateAccount(ctx, missing)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestListAccountsDefaults(t *testing.T) {
	forms := make([]account.Form, 0, DefaultListLimit+5)
	for i := 0; i < DefaultListLimit+5; i++ {
		forms = append(forms, testForm(fmt.Sprintf("user%02d", i)))
	}

	repo, _ := NewTestDBWithData(t, forms)

	records, err := repo.ListAccounts(context.Background(), 0, -3)
	require.NoError(t, err)
	assert.Len(t, records, DefaultListLimit)
}

func TestListAccountsEmptyIsNotNil(t *testing.T) {
	repo := NewTestDB(t)

	records, err := repo.ListAccounts(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestNewDuckDBRepositoryFromConfig(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "nested", "accounts.duckdb"),
		MaxConnections:  2,
		MaxIdleConns:    1,
		ConnMaxLifetime: "1m",
		QueryTimeout:    "5s",
	}

	repo, err := NewDuckDBRepositoryFromConfig(cfg)
	require.NoError(t, err)
	defer repo.Close()

	assert.Equal(t, 5*time.Second, repo.queryTimeout)
	require.NoError(t, repo.Initialize(context.Background()))
}

func TestQueriesHonourCancelledContext(t *testing.T) {
	repo := NewTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListAccounts(ctx, 10, 0)
	assert.Error(t, err)
}

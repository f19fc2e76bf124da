package storage

import (
	"context"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kyleking/gen-console/internal/account"
)

// NewTestDB creates a temporary account store that is closed when the test
// ends. Passwords are hashed at the minimum bcrypt cost.
func NewTestDB(t *testing.T) *DuckDBRepository {
	t.Helper()

	repo, err := NewDuckDBRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	repo.hashCost = bcrypt.MinCost

	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close test repository: %v", err)
		}
	})

	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize test repository: %v", err)
	}

	return repo
}

// NewTestDBWithData creates a temporary account store pre-seeded with forms
func NewTestDBWithData(t *testing.T, forms []account.Form) (*DuckDBRepository, []account.Record) {
	t.Helper()

	repo := NewTestDB(t)
	records := make([]account.Record, 0, len(forms))

	for _, f := range forms {
		rec, err := repo.CreateAccount(context.Background(), f)
		if err != nil {
			t.Fatalf("failed to seed account %s: %v", f.Account, err)
		}

		records = append(records, *rec)
	}

	return repo, records
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/expirywatch/expirywatch/internal/directory"
	"github.com/expirywatch/expirywatch/internal/model"
)

// directoryRepository serves account records from a SQL table, for dev and
// test deployments without a live LDAP tree.
type directoryRepository struct {
	BaseRepository
}

func NewDirectoryRepository(base BaseRepository) directory.Service {
	return &directoryRepository{base}
}

func (r *directoryRepository) Search(ctx context.Context, scope string) ([]model.Account, error) {
	// Stable ordering keeps runs reproducible.
	query := `
		SELECT id, name, given_name, email, enabled,
		       password_last_set, password_never_expires, password_expired
		FROM accounts
		WHERE org_unit = $1
		ORDER BY id
	`

	var accounts []model.Account
	if err := r.db.SelectContext(ctx, &accounts, query, scope); err != nil {
		return nil, fmt.Errorf("failed to search accounts under %s: %w", scope, err)
	}

	return accounts, nil
}

func (r *directoryRepository) Lookup(ctx context.Context, id string) (*model.Account, error) {
	query := `
		SELECT id, name, given_name, email, enabled,
		       password_last_set, password_never_expires, password_expired
		FROM accounts
		WHERE id = $1
	`

	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %s not found", id)
		}
		return nil, fmt.Errorf("failed to look up account %s: %w", id, err)
	}

	return &account, nil
}

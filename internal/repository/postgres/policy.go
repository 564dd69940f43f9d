package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/expirywatch/expirywatch/internal/directory"
	"github.com/expirywatch/expirywatch/internal/model"
)

type policyRepository struct {
	BaseRepository
}

func NewPolicyRepository(base BaseRepository) directory.PolicyService {
	return &policyRepository{base}
}

// policyRow carries max_age as whole days, the unit the table stores.
type policyRow struct {
	Name       string `db:"name"`
	MaxAgeDays int64  `db:"max_age_days"`
}

func (p policyRow) toModel() *model.PasswordPolicy {
	return &model.PasswordPolicy{
		Name:   p.Name,
		MaxAge: time.Duration(p.MaxAgeDays) * 24 * time.Hour,
	}
}

func (r *policyRepository) DefaultPolicy(ctx context.Context) (*model.PasswordPolicy, error) {
	query := `
		SELECT name, max_age_days FROM password_policies
		WHERE is_default = TRUE
	`

	var row policyRow
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("failed to get default policy: %w", err)
	}

	return row.toModel(), nil
}

func (r *policyRepository) AccountPolicy(ctx context.Context, id string) (*model.PasswordPolicy, error) {
	query := `
		SELECT p.name, p.max_age_days
		FROM password_policies p
		JOIN account_policies ap ON ap.policy_name = p.name
		WHERE ap.account_id = $1
	`

	var row policyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get policy for %s: %w", id, err)
	}

	return row.toModel(), nil
}

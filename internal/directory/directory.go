package directory

import (
	"context"

	"github.com/expirywatch/expirywatch/internal/model"
)

// Service answers account queries against the directory. Search order is not
// semantically significant but must be stable within a run.
type Service interface {
	// Search returns the accounts under the given organizational scope.
	Search(ctx context.Context, scope string) ([]model.Account, error)

	// Lookup returns a single account by identifier, for preview mode.
	Lookup(ctx context.Context, id string) (*model.Account, error)
}

// PolicyService answers password-policy queries.
type PolicyService interface {
	// DefaultPolicy returns the domain-wide maximum password age.
	DefaultPolicy(ctx context.Context) (*model.PasswordPolicy, error)

	// AccountPolicy returns the fine-grained policy override applying to the
	// account, or (nil, nil) when the account has none.
	AccountPolicy(ctx context.Context, id string) (*model.PasswordPolicy, error)
}

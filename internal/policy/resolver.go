// Package policy resolves the effective maximum password age for an account
// and computes its days until expiry. Resolution is a pure function of its
// inputs; it holds no state across accounts.
package policy

import (
	"math"
	"time"

	"github.com/expirywatch/expirywatch/internal/model"
)

// PreviewDays is the sentinel days-until-expiry used in preview mode, so the
// rendered notice is always visible regardless of the target's real state.
const PreviewDays = 1

// Resolve returns the expiry decision for one account, or ok=false when the
// account is indeterminate: no last-set timestamp, or no effective policy
// that actually expires passwords.
//
// A fine-grained override is preferred over the domain default only when it
// is present with a non-zero max age; a zero max age means the policy is
// disabled, not "expires immediately".
//
// Days until expiry is (lastSet + maxAge - now) rounded to the nearest whole
// day, with halves rounding away from zero (math.Round).
func Resolve(acct model.Account, def, override *model.PasswordPolicy, now time.Time, preview bool) (model.ExpiryDecision, bool) {
	if acct.PasswordLastSet == nil {
		return model.ExpiryDecision{}, false
	}

	effective := def
	if override.Expires() {
		effective = override
	}
	if !effective.Expires() {
		return model.ExpiryDecision{}, false
	}

	expiresAt := acct.PasswordLastSet.Add(effective.MaxAge)
	days := roundDays(expiresAt.Sub(now))
	if preview {
		days = PreviewDays
	}

	return model.ExpiryDecision{
		AccountID:       acct.ID,
		DaysUntilExpiry: days,
		ExpiresAt:       expiresAt,
		MaxAge:          effective.MaxAge,
		PolicyName:      effective.Name,
	}, true
}

func roundDays(d time.Duration) int {
	return int(math.Round(d.Hours() / 24))
}

package model

import (
	"time"
)

// Account is a read-only snapshot of a directory account, taken once per run.
type Account struct {
	ID                   string     `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	GivenName            string     `json:"given_name" db:"given_name"`
	Email                string     `json:"email" db:"email"`
	Enabled              bool       `json:"enabled" db:"enabled"`
	PasswordLastSet      *time.Time `json:"password_last_set" db:"password_last_set"`
	PasswordNeverExpires bool       `json:"password_never_expires" db:"password_never_expires"`
	PasswordExpired      bool       `json:"password_expired" db:"password_expired"`
}

// DisplayName returns the account's preferred form of address for notices.
func (a *Account) DisplayName() string {
	if a.GivenName != "" {
		return a.GivenName
	}
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
